package pksources

import (
	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// drugbankTextFields are the narrative PK columns fed to extraction.
var drugbankTextFields = []string{
	"half_life", "absorption", "protein_binding",
	"volume_of_distribution", "clearance", "metabolism",
	"route_of_elimination",
}

// DrugBank serves substance-level PK narratives. Columns: drugbank_id,
// name, inn, plus the narrative fields above. Lookup order: exact INN,
// exact name, fuzzy name.
type DrugBank struct {
	rows []map[string]string
}

func NewDrugBank(path string) (*DrugBank, error) {
	rows, err := loadCSV(path)
	if err != nil {
		return nil, err
	}
	return &DrugBank{rows: rows}, nil
}

func (s *DrugBank) Name() string { return "drugbank" }

func (s *DrugBank) SearchSubstance(inn string) (pkfusion.Candidate, bool) {
	for _, row := range s.rows {
		if equalFold(row["inn"], inn) {
			return pkfusion.Candidate{Name: row["name"], Kind: pkfusion.MatchExact, Score: 1}, true
		}
	}
	names := make([]string, len(s.rows))
	for i, row := range s.rows {
		names[i] = row["name"]
		if equalFold(row["name"], inn) {
			return pkfusion.Candidate{Name: row["name"], Kind: pkfusion.MatchExact, Score: 1}, true
		}
	}
	idx, score := bestFuzzy(inn, names)
	if idx < 0 {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	return pkfusion.Candidate{Name: names[idx], Kind: pkfusion.MatchFuzzy, Score: score}, true
}

func (s *DrugBank) Texts(c pkfusion.Candidate) []pkfusion.TaggedText {
	for _, row := range s.rows {
		if row["name"] != c.Name {
			continue
		}
		var out []pkfusion.TaggedText
		for _, f := range drugbankTextFields {
			if t := row[f]; len(t) > pkfusion.MinUsefulTextChars {
				out = append(out, pkfusion.TaggedText{Tag: "substance/drugbank/" + f, Text: t})
			}
		}
		return out
	}
	return nil
}
