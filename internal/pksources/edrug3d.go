package pksources

import (
	"fmt"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// EDrug3D serves structured Cmax/Tmax/T1/2 rows from the e-Drug3D export.
// Columns: name, cmax, cmax_unit, tmax_h, t_half_h.
type EDrug3D struct {
	rows []map[string]string
}

func NewEDrug3D(path string) (*EDrug3D, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}
	return &EDrug3D{rows: rows}, nil
}

func (s *EDrug3D) Name() string { return "edrug3d" }

func (s *EDrug3D) Observations(inn string) (pkfusion.Candidate, []pkfusion.Observation, bool) {
	idx, cand := s.match(inn)
	if idx < 0 {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, nil, false
	}
	row := s.rows[idx]
	obs := pkfusion.Observation{Source: s.Name(), Values: map[string]*pkfusion.PKValue{}}

	if v, ok := parseFloat(row["tmax_h"]); ok {
		obs.Values[pkfusion.SlotTmaxH] = &pkfusion.PKValue{
			Value: v, Unit: "h", Source: s.Name(),
			RawText: fmt.Sprintf("tmax_h = %s", row["tmax_h"]),
		}
	}
	if v, ok := parseFloat(row["t_half_h"]); ok {
		obs.Values[pkfusion.SlotTHalfH] = &pkfusion.PKValue{
			Value: v, Unit: "h", Source: s.Name(),
			RawText: fmt.Sprintf("t_half_h = %s", row["t_half_h"]),
		}
	}
	if v, ok := parseFloat(row["cmax"]); ok {
		unit := row["cmax_unit"]
		raw := fmt.Sprintf("cmax = %s %s", row["cmax"], unit)
		if conv, converted, molar := pkfusion.ConvertCmax(v, unit); converted {
			obs.Values[pkfusion.SlotCmax] = &pkfusion.PKValue{
				Value: conv, Unit: "ng/mL", Source: s.Name(), RawText: raw,
			}
		} else if molar {
			obs.CmaxMolar = &pkfusion.PKValue{
				Value: v, Unit: unit, Source: s.Name(), RawText: raw,
			}
		}
	}
	return cand, []pkfusion.Observation{obs}, true
}

func (s *EDrug3D) match(inn string) (int, pkfusion.Candidate) {
	names := make([]string, len(s.rows))
	for i, row := range s.rows {
		names[i] = row["name"]
		if equalFold(row["name"], inn) {
			return i, pkfusion.Candidate{Name: row["name"], Kind: pkfusion.MatchExact, Score: 1}
		}
	}
	idx, score := bestFuzzy(inn, names)
	if idx < 0 {
		return -1, pkfusion.Candidate{Kind: pkfusion.MatchNone}
	}
	return idx, pkfusion.Candidate{Name: names[idx], Kind: pkfusion.MatchFuzzy, Score: score}
}
