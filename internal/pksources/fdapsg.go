package pksources

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// PSGRecord is one FDA product-specific guidance entry. Only the
// regulatory flags reach the fusion engine; the rest feeds the synopsis.
type PSGRecord struct {
	Substance          string
	FormRoute          string
	DosageForm         string
	NumStudies         int
	DesignFasting      string
	DesignFed          string
	Strength           string
	Subjects           string
	Analytes           string
	BEBasedOn          string
	Waiver             string
	AdditionalComments string
	IsReplicated       bool
	IsHVD              bool
	IsNTI              bool
	CVIntraThreshold   int // 0 when the guidance names no threshold
	DissolutionInfo    string
	PDFURL             string
}

var (
	psgSaltRe  = regexp.MustCompile(`\s+(hydrochloride|hcl|sodium|calcium|besylate|mesylate|hemifumarate|sulfate|maleate|tartrate|acetate|phosphate|fumarate|citrate|succinate|bitartrate|bromide|chloride)\b`)
	psgParenRe = regexp.MustCompile(`\s*\(.*?\)`)
	psgComboRe = regexp.MustCompile(`[;,:].*`)
)

// normPSGName lowercases and strips salt suffixes, parentheticals and
// trailing combination components so that "Amlodipine Besylate; Valsartan"
// matches a query for "amlodipine".
func normPSGName(name string) string {
	name = strings.ToLower(name)
	name = psgSaltRe.ReplaceAllString(name, "")
	name = psgParenRe.ReplaceAllString(name, "")
	name = psgComboRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// FDAPSG serves FDA product-specific guidance rows keyed by substance.
// Several rows can share a substance (per strength and dosage form); the
// most informative one wins, preferring rows matching the dosage form.
type FDAPSG struct {
	rows []map[string]string
	norm []string
}

func NewFDAPSG(path string) (*FDAPSG, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}
	norm := make([]string, len(rows))
	for i, row := range rows {
		norm[i] = normPSGName(row["substance"])
	}
	return &FDAPSG{rows: rows, norm: norm}, nil
}

func (s *FDAPSG) Name() string { return "fda_psg" }

// Flags implements pkfusion.FlagSource. The trade name is unused: FDA
// guidances are filed by substance.
func (s *FDAPSG) Flags(_, inn string) (pkfusion.RegulatoryFlags, pkfusion.Candidate, bool) {
	rec, cand, ok := s.Guidance(inn, "")
	if !ok {
		return pkfusion.RegulatoryFlags{}, pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	flags := pkfusion.RegulatoryFlags{
		IsReplicated: rec.IsReplicated,
		IsHVD:        rec.IsHVD,
		IsNTI:        rec.IsNTI,
	}
	if rec.CVIntraThreshold > 0 {
		cv := float64(rec.CVIntraThreshold)
		flags.CVThreshold = &cv
	}
	return flags, cand, true
}

// Guidance returns the best-matching guidance record for a substance.
// dosageForm, when set, prefers rows whose form or route mentions it.
func (s *FDAPSG) Guidance(inn, dosageForm string) (PSGRecord, pkfusion.Candidate, bool) {
	query := normPSGName(inn)
	if query == "" {
		return PSGRecord{}, pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}

	var exact []int
	for i, n := range s.norm {
		if n == query {
			exact = append(exact, i)
		}
	}
	if len(exact) > 0 {
		best := s.pickBest(exact, dosageForm)
		return s.record(best), pkfusion.Candidate{
			Name: s.rows[best]["substance"], Kind: pkfusion.MatchExact, Score: 1,
		}, true
	}

	idxs, top := s.fuzzyWindow(query)
	if len(idxs) == 0 {
		return PSGRecord{}, pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	best := s.pickBest(idxs, dosageForm)
	return s.record(best), pkfusion.Candidate{
		Name: s.rows[best]["substance"], Kind: pkfusion.MatchFuzzy, Score: top,
	}, true
}

// GuidanceAll returns every qualifying record, one per strength or form.
func (s *FDAPSG) GuidanceAll(inn string) []PSGRecord {
	query := normPSGName(inn)
	var out []PSGRecord
	var exact []int
	for i, n := range s.norm {
		if n == query {
			exact = append(exact, i)
		}
	}
	idxs := exact
	if len(idxs) == 0 {
		idxs, _ = s.fuzzyWindow(query)
	}
	for _, i := range idxs {
		out = append(out, s.record(i))
	}
	return out
}

// fuzzyWindow collects rows scoring within 0.05 of the best fuzzy hit.
func (s *FDAPSG) fuzzyWindow(query string) ([]int, float64) {
	top := 0.0
	scores := make([]float64, len(s.norm))
	for i, n := range s.norm {
		if n == "" {
			continue
		}
		sc := strutil.Similarity(query, n, similarity)
		scores[i] = sc
		if sc > top {
			top = sc
		}
	}
	if top < FuzzyThreshold {
		return nil, 0
	}
	var idxs []int
	for i, sc := range scores {
		if sc >= top-0.05 && sc >= FuzzyThreshold {
			idxs = append(idxs, i)
		}
	}
	return idxs, top
}

// pickBest prefers rows matching the dosage form, then the row carrying
// the most design information.
func (s *FDAPSG) pickBest(idxs []int, dosageForm string) int {
	if df := strings.ToLower(strings.TrimSpace(dosageForm)); df != "" {
		var filtered []int
		for _, i := range idxs {
			row := s.rows[i]
			if strings.Contains(strings.ToLower(row["dosage_form"]), df) ||
				strings.Contains(strings.ToLower(row["form_route"]), df) {
				filtered = append(filtered, i)
			}
		}
		if len(filtered) > 0 {
			idxs = filtered
		}
	}

	weight := func(row map[string]string) int {
		w := 0
		if parseBool(row["is_hvd"]) {
			w += 10
		}
		if parseBool(row["is_replicated"]) {
			w += 5
		}
		if row["design_fasting"] != "" {
			w += 3
		}
		if row["additional_comments"] != "" {
			w += 2
		}
		if row["pdf_url"] != "" {
			w++
		}
		return w
	}

	best, bestW := idxs[0], -1
	for _, i := range idxs {
		if w := weight(s.rows[i]); w > bestW {
			best, bestW = i, w
		}
	}
	return best
}

func (s *FDAPSG) record(i int) PSGRecord {
	row := s.rows[i]
	rec := PSGRecord{
		Substance:          row["substance"],
		FormRoute:          row["form_route"],
		DosageForm:         row["dosage_form"],
		DesignFasting:      row["design_fasting"],
		DesignFed:          row["design_fed"],
		Strength:           row["strength"],
		Subjects:           row["subjects"],
		Analytes:           row["analytes"],
		BEBasedOn:          row["be_based_on"],
		Waiver:             row["waiver"],
		AdditionalComments: row["additional_comments"],
		IsReplicated:       parseBool(row["is_replicated"]),
		IsHVD:              parseBool(row["is_hvd"]),
		IsNTI:              parseBool(row["is_nti"]),
		DissolutionInfo:    row["dissolution_info"],
		PDFURL:             row["pdf_url"],
	}
	if v, ok := parseFloat(row["num_studies"]); ok {
		rec.NumStudies = int(v)
	}
	if v, ok := parseFloat(row["cvintra_threshold"]); ok {
		rec.CVIntraThreshold = int(v)
	}
	return rec
}
