package pksources

import "strings"

// vidalDrugDataFields and vidalMolDataFields are the monograph columns
// forwarded to the synopsis narrative prompts.
var (
	vidalDrugDataFields = []string{"pharmacokinetics", "pharmacology", "form_details", "composition"}
	vidalMolDataFields  = []string{"pharmacokinetics", "pharmacology", "indications", "contraindications"}
)

// minDataFragmentChars drops one-word leftovers from the prompt pool.
const minDataFragmentChars = 20

// CollectSourceData gathers the raw monograph fragments the synopsis
// narrative calls draw on, keyed "<source>_<field>". Any repository may be
// nil; a missing match contributes nothing.
func CollectSourceData(tradeName, inn, dosageForm string, v *Vidal, o *OHLP, db *DrugBank, psg *FDAPSG) map[string]string {
	data := map[string]string{}

	if v != nil {
		if c, ok := v.ProductLevel().SearchProduct(tradeName); ok {
			var parts []string
			for _, row := range v.drugs {
				if row["name"] != c.Name {
					continue
				}
				for _, f := range vidalDrugDataFields {
					if t := row[f]; t != "" {
						parts = append(parts, f+": "+t)
					}
				}
				break
			}
			if len(parts) > 0 {
				data["vidal_drug"] = strings.Join(parts, "\n\n")
			}
		}
		if c, ok := v.SubstanceLevel().SearchSubstance(inn); ok {
			for _, row := range v.molecules {
				if row["name"] != c.Name {
					continue
				}
				for _, f := range vidalMolDataFields {
					if t := row[f]; t != "" {
						data["vidal_mol_"+f] = t
					}
				}
				break
			}
		}
	}

	if o != nil {
		c, ok := o.SearchProduct(tradeName)
		if !ok {
			c, ok = o.SearchSubstance(inn)
		}
		if ok {
			for _, f := range ohlpTextFields {
				if t := o.Section(c, f); len(t) > minDataFragmentChars {
					data["ohlp_"+f] = t
				}
			}
		}
	}

	if db != nil {
		if c, ok := db.SearchSubstance(inn); ok {
			for _, row := range db.rows {
				if row["name"] != c.Name {
					continue
				}
				for _, f := range drugbankTextFields {
					if t := row[f]; t != "" {
						data["drugbank_"+f] = t
					}
				}
				break
			}
		}
	}

	if psg != nil {
		if rec, _, ok := psg.Guidance(inn, dosageForm); ok {
			for key, val := range map[string]string{
				"design_fasting":      rec.DesignFasting,
				"design_fed":          rec.DesignFed,
				"strength":            rec.Strength,
				"subjects":            rec.Subjects,
				"analytes":            rec.Analytes,
				"be_based_on":         rec.BEBasedOn,
				"waiver":              rec.Waiver,
				"additional_comments": rec.AdditionalComments,
				"dissolution_info":    rec.DissolutionInfo,
			} {
				if val != "" {
					data["fda_psg_"+key] = val
				}
			}
		}
	}

	return data
}
