package pksources

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// OSP serves per-study PK rows from the open-systems-pharmacology export.
// Columns: Analyte, Reference, AUC Avg, AUC AvgUnit, AUC Var, AUC VarType,
// AUC VarUnit, Cmax Avg, Cmax AvgUnit, Cmax Var, Cmax VarType, Cmax VarUnit.
type OSP struct {
	rows []map[string]string
}

// cvVarTypes are the variability annotations that denote a coefficient of
// variation. Anything else (SD, SE, range) never substitutes for CV.
var cvVarTypes = map[string]bool{
	"CV": true, "CV%": true, "%CV": true,
	"arith. CV": true, "geo. CV": true, "geom. CV": true, "gCV": true,
}

func NewOSP(path string) (*OSP, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}
	return &OSP{rows: rows}, nil
}

func (s *OSP) Name() string { return "osp" }

func (s *OSP) Observations(inn string) (pkfusion.Candidate, []pkfusion.Observation, bool) {
	matched, cand := s.matchRows(inn)
	if len(matched) == 0 {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, nil, false
	}

	var obs []pkfusion.Observation
	for _, row := range matched {
		o := pkfusion.Observation{Source: s.Name(), Values: map[string]*pkfusion.PKValue{}}
		if v, ok := parseFloat(row["AUC Avg"]); ok {
			unit := row["AUC AvgUnit"]
			if conv, converted := pkfusion.ConvertAUC(v, unit); converted {
				o.Values[pkfusion.SlotAUC] = &pkfusion.PKValue{
					Value: conv, Unit: "ng·h/mL", Source: s.Name(),
					RawText: fmt.Sprintf("AUC %s %s | %s", row["AUC Avg"], unit, row["Reference"]),
				}
			}
		}
		if v, ok := parseFloat(row["Cmax Avg"]); ok {
			unit := row["Cmax AvgUnit"]
			if conv, converted, molar := pkfusion.ConvertCmax(v, unit); converted {
				o.Values[pkfusion.SlotCmax] = &pkfusion.PKValue{
					Value: conv, Unit: "ng/mL", Source: s.Name(),
					RawText: fmt.Sprintf("Cmax %s %s | %s", row["Cmax Avg"], unit, row["Reference"]),
				}
			} else if molar {
				o.CmaxMolar = &pkfusion.PKValue{
					Value: v, Unit: unit, Source: s.Name(),
					RawText: fmt.Sprintf("Cmax %s %s | %s", row["Cmax Avg"], unit, row["Reference"]),
				}
			}
		}
		obs = append(obs, o)
	}

	if cv := s.medianCV(matched); cv != nil {
		// Attach the aggregate CV to the most populated row so the
		// engine's best-row pick carries it forward.
		best := 0
		for i := range obs {
			if obs[i].FilledCount() > obs[best].FilledCount() {
				best = i
			}
		}
		obs[best].Values[pkfusion.SlotCVIntraPct] = cv
	}
	return cand, obs, true
}

// medianCV aggregates within-subject CV annotations across all matched
// study rows: the median of the Cmax CVs when any exist, otherwise the
// median of the AUC CVs.
func (s *OSP) medianCV(rows []map[string]string) *pkfusion.PKValue {
	var cmaxCVs, aucCVs []float64
	refs := map[string]bool{}
	for _, row := range rows {
		for prefix, acc := range map[string]*[]float64{"Cmax": &cmaxCVs, "AUC": &aucCVs} {
			vtype := strings.TrimSpace(row[prefix+" VarType"])
			vunit := row[prefix+" VarUnit"]
			v, ok := parseFloat(row[prefix+" Var"])
			if ok && cvVarTypes[vtype] && pkfusion.IsPercentUnit(vunit) {
				*acc = append(*acc, v)
				refs[row["Reference"]] = true
			}
		}
	}
	chosen, param := cmaxCVs, "Cmax"
	if len(chosen) == 0 {
		chosen, param = aucCVs, "AUC"
	}
	if len(chosen) == 0 {
		return nil
	}
	median, err := stats.Median(chosen)
	if err != nil {
		return nil
	}
	median = math.Round(median*10) / 10

	refList := make([]string, 0, len(refs))
	for r := range refs {
		refList = append(refList, r)
	}
	sort.Strings(refList)
	if len(refList) > 3 {
		refList = refList[:3]
	}
	return &pkfusion.PKValue{
		Value: median, Unit: "%", Source: s.Name(),
		RawText: fmt.Sprintf("%s CV median=%.1f%% (n=%d) | %s", param, median, len(chosen), strings.Join(refList, "; ")),
	}
}

func (s *OSP) matchRows(inn string) ([]map[string]string, pkfusion.Candidate) {
	var matched []map[string]string
	for _, row := range s.rows {
		if equalFold(row["Analyte"], inn) {
			matched = append(matched, row)
		}
	}
	if len(matched) > 0 {
		return matched, pkfusion.Candidate{Name: matched[0]["Analyte"], Kind: pkfusion.MatchExact, Score: 1}
	}

	names := make([]string, len(s.rows))
	for i, row := range s.rows {
		names[i] = row["Analyte"]
	}
	idx, score := bestFuzzy(inn, names)
	if idx < 0 {
		return nil, pkfusion.Candidate{Kind: pkfusion.MatchNone}
	}
	best := names[idx]
	for _, row := range s.rows {
		if equalFold(row["Analyte"], best) {
			matched = append(matched, row)
		}
	}
	return matched, pkfusion.Candidate{Name: best, Kind: pkfusion.MatchFuzzy, Score: score}
}
