package pksources

import (
	"fmt"
	"strings"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// CVIntraPMC serves pooled within-subject CVs from the Park et al. 2020
// bioequivalence meta-analysis (Transl Clin Pharmacol 28(1):52-62).
// Columns: active_ingredient, cvintra_cmax_pct, cvintra_auc_pct, n_studies,
// sample_size_80pwr, sample_size_90pwr.
type CVIntraPMC struct {
	rows []map[string]string
}

func NewCVIntraPMC(path string) (*CVIntraPMC, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}
	return &CVIntraPMC{rows: rows}, nil
}

func (s *CVIntraPMC) Name() string { return "cvintra_pmc" }

func (s *CVIntraPMC) Observations(inn string) (pkfusion.Candidate, []pkfusion.Observation, bool) {
	names := make([]string, len(s.rows))
	idx, cand := -1, pkfusion.Candidate{Kind: pkfusion.MatchNone}
	for i, row := range s.rows {
		names[i] = row["active_ingredient"]
		if idx < 0 && equalFold(row["active_ingredient"], inn) {
			idx = i
			cand = pkfusion.Candidate{Name: names[i], Kind: pkfusion.MatchExact, Score: 1}
		}
	}
	if idx < 0 {
		fi, score := bestFuzzy(inn, names)
		if fi < 0 {
			return cand, nil, false
		}
		idx = fi
		cand = pkfusion.Candidate{Name: names[fi], Kind: pkfusion.MatchFuzzy, Score: score}
	}

	row := s.rows[idx]
	cvCmax, okCmax := parseFloat(row["cvintra_cmax_pct"])
	cvAUC, okAUC := parseFloat(row["cvintra_auc_pct"])

	// Cmax CV rules the design decision; AUC CV is the fallback.
	val, param := 0.0, ""
	switch {
	case okCmax && cvCmax > 0:
		val, param = cvCmax, "Cmax"
	case okAUC && cvAUC > 0:
		val, param = cvAUC, "AUC"
	default:
		return cand, nil, false
	}

	var parts []string
	if okCmax && cvCmax > 0 {
		parts = append(parts, fmt.Sprintf("Cmax CV=%g%%", cvCmax))
	}
	if okAUC && cvAUC > 0 {
		parts = append(parts, fmt.Sprintf("AUC CV=%g%%", cvAUC))
	}
	if n := row["n_studies"]; n != "" {
		parts = append(parts, fmt.Sprintf("n=%s BE studies", n))
	}
	parts = append(parts, "Park et al. Transl Clin Pharmacol. 2020;28(1):52-62")

	obs := pkfusion.Observation{
		Source: s.Name(),
		Values: map[string]*pkfusion.PKValue{
			pkfusion.SlotCVIntraPct: {
				Value: val, Unit: "%", Source: s.Name(),
				RawText:   strings.Join(parts, " | "),
				Reasoning: fmt.Sprintf("pooled within-subject %s CV", param),
			},
		},
	}
	return cand, []pkfusion.Observation{obs}, true
}
