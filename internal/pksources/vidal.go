package pksources

import (
	"regexp"
	"strings"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// Vidal serves two monograph levels: trade-name product pages and active
// substance pages. Product catalog columns: name, molecule_name,
// pharmacokinetics. Molecule catalog columns: name, name_latin,
// pharmacokinetics.
type Vidal struct {
	drugs     []map[string]string
	molecules []map[string]string
}

func NewVidal(drugsPath, moleculesPath string) (*Vidal, error) {
	drugs, err := loadCSV(drugsPath)
	if err != nil {
		return nil, err
	}
	molecules, err := loadCSV(moleculesPath)
	if err != nil {
		return nil, err
	}
	return &Vidal{drugs: drugs, molecules: molecules}, nil
}

var nameNoise = regexp.MustCompile(`[®™\s()\-]+`)

// cleanName strips trademark glyphs and dosage punctuation so "Drug® 20 mg"
// and "drug 20mg" compare equal.
func cleanName(s string) string {
	return strings.ToLower(strings.TrimSpace(nameNoise.ReplaceAllString(s, " ")))
}

// --- product level ---

type VidalDrugs struct{ v *Vidal }

// ProductLevel exposes the trade-name catalog as a product source.
func (v *Vidal) ProductLevel() *VidalDrugs { return &VidalDrugs{v: v} }

func (s *VidalDrugs) Name() string { return "vidal_drug" }

func (s *VidalDrugs) SearchProduct(tradeName string) (pkfusion.Candidate, bool) {
	qClean := cleanName(tradeName)
	if qClean == "" {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	names := make([]string, len(s.v.drugs))
	for i, row := range s.v.drugs {
		names[i] = cleanName(row["name"])
		if equalFold(row["name"], tradeName) || names[i] == qClean {
			return pkfusion.Candidate{
				Name: row["name"], Kind: pkfusion.MatchExact, Score: 1,
				Payload: map[string]string{"molecule": row["molecule_name"]},
			}, true
		}
	}
	idx, score := bestFuzzy(qClean, names)
	if idx < 0 {
		return pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
	}
	return pkfusion.Candidate{
		Name: s.v.drugs[idx]["name"], Kind: pkfusion.MatchFuzzy, Score: score,
		Payload: map[string]string{"molecule": s.v.drugs[idx]["molecule_name"]},
	}, true
}

func (s *VidalDrugs) Texts(c pkfusion.Candidate) []pkfusion.TaggedText {
	for _, row := range s.v.drugs {
		if row["name"] == c.Name {
			if pk := row["pharmacokinetics"]; pk != "" {
				return []pkfusion.TaggedText{{Tag: "product/vidal_drug", Text: pk}}
			}
			return nil
		}
	}
	return nil
}

// --- substance level ---

type VidalMolecules struct{ v *Vidal }

// SubstanceLevel exposes the molecule catalog as a substance text source.
func (v *Vidal) SubstanceLevel() *VidalMolecules { return &VidalMolecules{v: v} }

func (s *VidalMolecules) Name() string { return "vidal_mol" }

func (s *VidalMolecules) SearchSubstance(inn string) (pkfusion.Candidate, bool) {
	names := make([]string, len(s.v.molecules))
	for i, row := range s.v.molecules {
		names[i] = row["name"]
		if equalFold(row["name"], inn) || equalFold(row["name_latin"], inn) {
			return pkfusion.Candidate{
				Name: row["name"], Kind: pkfusion.MatchExact, Score: 1,
				Payload: map[string]string{"name_latin": row["name_latin"]},
			}, true
		}
	}
	idx, score := bestFuzzy(inn, names)
	if idx < 0 {
		// Latin names get their own pass; the catalogs mix both.
		latin := make([]string, len(s.v.molecules))
		for i, row := range s.v.molecules {
			latin[i] = row["name_latin"]
		}
		idx, score = bestFuzzy(inn, latin)
		if idx < 0 {
			return pkfusion.Candidate{Kind: pkfusion.MatchNone}, false
		}
	}
	row := s.v.molecules[idx]
	return pkfusion.Candidate{
		Name: row["name"], Kind: pkfusion.MatchFuzzy, Score: score,
		Payload: map[string]string{"name_latin": row["name_latin"]},
	}, true
}

func (s *VidalMolecules) Texts(c pkfusion.Candidate) []pkfusion.TaggedText {
	for _, row := range s.v.molecules {
		if row["name"] == c.Name {
			if pk := row["pharmacokinetics"]; pk != "" {
				return []pkfusion.TaggedText{{Tag: "substance/vidal_mol", Text: pk}}
			}
			return nil
		}
	}
	return nil
}

// LatinName resolves the Latin spelling of a substance, used by the
// synopsis header.
func (v *Vidal) LatinName(inn string) string {
	sub := v.SubstanceLevel()
	c, ok := sub.SearchSubstance(inn)
	if !ok {
		return ""
	}
	return c.Payload["name_latin"]
}
