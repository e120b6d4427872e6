package synopsis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// narrativeCall describes one LLM pass: which synopsis fields it produces
// and which source-data keys feed its prompt.
type narrativeCall struct {
	id       string
	fields   []string
	dataKeys []string
}

var narrativeCalls = []narrativeCall{
	{
		id:     "study_design_analysis",
		fields: []string{"tasks", "study_design"},
		dataKeys: []string{
			"ohlp_dosing_text", "ohlp_pk_text", "ohlp_form_text",
			"vidal_drug", "vidal_mol_pharmacokinetics",
			"fda_psg_design_fasting", "fda_psg_design_fed",
			"fda_psg_additional_comments", "fda_psg_strength",
		},
	},
	{
		id:     "criteria",
		fields: []string{"inclusion_criteria", "exclusion_criteria", "withdrawal_criteria"},
		dataKeys: []string{
			"ohlp_contra_text", "ohlp_precautions_text", "ohlp_pregnancy_text",
			"ohlp_interactions_text", "ohlp_adverse_text", "ohlp_indications_text",
			"vidal_mol_contraindications", "vidal_mol_indications",
		},
	},
	{
		id:     "drug_safety",
		fields: []string{"test_drug_details", "reference_drug_details", "safety_analysis"},
		dataKeys: []string{
			"vidal_drug", "ohlp_composition_text", "ohlp_form_text",
			"ohlp_excipients_text", "ohlp_storage_text", "ohlp_shelf_life_text",
			"ohlp_adverse_text", "ohlp_overdose_text", "ohlp_precautions_text",
			"drugbank_metabolism", "drugbank_route_of_elimination",
			"fda_psg_strength",
		},
	},
}

const maxFragmentChars = 3000

// Generator builds the complete synopsis. A nil caller skips the narrative
// calls and every section keeps its deterministic template text.
type Generator struct {
	exec *pkfusion.StageExecutor
	now  func() time.Time
}

func NewGenerator(caller pkfusion.LLMCaller) *Generator {
	g := &Generator{now: time.Now}
	if caller != nil {
		g.exec = pkfusion.NewStageExecutor(caller)
	}
	return g
}

func (g *Generator) Generate(ctx context.Context, inp Input) (Result, error) {
	if strings.TrimSpace(inp.INN) == "" {
		return Result{}, fmt.Errorf("INN is required")
	}
	derived := ComputeDerived(inp)
	syn := buildProgrammatic(inp, derived, g.now())

	res := Result{Synopsis: syn, Derived: derived, Fusion: inp.Fusion, Sources: collectSources(inp)}
	if g.exec == nil {
		return res, nil
	}

	for _, call := range narrativeCalls {
		rec := g.runCall(ctx, call, inp, derived, &res.Synopsis)
		res.Calls = append(res.Calls, rec)
	}
	return res, nil
}

type designAnalysisOutput struct {
	Tasks       string `json:"tasks"`
	StudyDesign string `json:"study_design"`
}

type criteriaOutput struct {
	InclusionCriteria  string `json:"inclusion_criteria"`
	ExclusionCriteria  string `json:"exclusion_criteria"`
	WithdrawalCriteria string `json:"withdrawal_criteria"`
}

type drugSafetyOutput struct {
	TestDrugDetails      string `json:"test_drug_details"`
	ReferenceDrugDetails string `json:"reference_drug_details"`
	SafetyAnalysis       string `json:"safety_analysis"`
}

// runCall executes one narrative pass. Failures degrade: the synopsis
// keeps its template text and the record notes the fallback.
func (g *Generator) runCall(ctx context.Context, call narrativeCall, inp Input, d Derived, syn *Synopsis) CallRecord {
	rec := CallRecord{CallID: call.id, Fields: call.fields}
	prompt := g.buildPrompt(call, inp, d, syn)

	nonEmpty := func(vals ...string) error {
		for _, v := range vals {
			if len(strings.TrimSpace(v)) < 20 {
				return fmt.Errorf("a requested section is missing or too short")
			}
		}
		return nil
	}

	var err error
	var metrics pkfusion.StageAttemptMetrics
	switch call.id {
	case "study_design_analysis":
		var out designAnalysisOutput
		metrics, err = g.exec.Run(ctx, call.id, prompt, &out, func() error {
			return nonEmpty(out.Tasks, out.StudyDesign)
		})
		if err == nil {
			syn.Tasks = out.Tasks
			syn.StudyDesign = out.StudyDesign
		}
	case "criteria":
		var out criteriaOutput
		metrics, err = g.exec.Run(ctx, call.id, prompt, &out, func() error {
			return nonEmpty(out.InclusionCriteria, out.ExclusionCriteria, out.WithdrawalCriteria)
		})
		if err == nil {
			syn.InclusionCriteria = out.InclusionCriteria
			syn.ExclusionCriteria = out.ExclusionCriteria
			syn.WithdrawalCriteria = out.WithdrawalCriteria
		}
	case "drug_safety":
		var out drugSafetyOutput
		metrics, err = g.exec.Run(ctx, call.id, prompt, &out, func() error {
			return nonEmpty(out.TestDrugDetails, out.ReferenceDrugDetails, out.SafetyAnalysis)
		})
		if err == nil {
			syn.TestDrugDetails = out.TestDrugDetails
			syn.ReferenceDrugDetails = out.ReferenceDrugDetails
			syn.SafetyAnalysis = out.SafetyAnalysis
		}
	}

	rec.Attempts = metrics.Attempts
	rec.ContentRetries = metrics.ContentRetries
	if err != nil {
		rec.FellBack = true
		rec.Err = err.Error()
		log.Printf("[synopsis] %s failed (%v), keeping template text", call.id, err)
	}
	return rec
}

func (g *Generator) buildPrompt(call narrativeCall, inp Input, d Derived, syn *Synopsis) string {
	var b strings.Builder
	b.WriteString("You are an expert in bioequivalence clinical trials.\n\n## Study context\n")
	b.WriteString(commonContext(inp, d))
	b.WriteString("\n\n## Instructions\n")
	b.WriteString(callInstructions(call.id, inp, d, syn))

	b.WriteString("\n\n## Source data\n")
	wrote := false
	for _, key := range call.dataKeys {
		txt := inp.SourceData[key]
		if txt == "" {
			continue
		}
		if len(txt) > maxFragmentChars {
			txt = txt[:maxFragmentChars] + "..."
		}
		fmt.Fprintf(&b, "\n### [%s]\n%s\n", key, txt)
		wrote = true
	}
	if !wrote {
		b.WriteString("(no additional source data)\n")
	}

	if inp.AdditionalNotes != "" {
		b.WriteString("\n## Additional sponsor requirements\n")
		b.WriteString(inp.AdditionalNotes)
		b.WriteString("\n")
	}

	b.WriteString("\n## Task\nGenerate a JSON object with these string fields:\n")
	for i, f := range call.fields {
		fmt.Fprintf(&b, "%d. %q\n", i+1, f)
	}
	b.WriteString("\nWrite in professional regulatory English, grounded in the source data for this specific product. Respond with only a valid JSON object, no markdown fences.")
	return b.String()
}

func commonContext(inp Input, d Derived) string {
	sampleSize := "?"
	if d.SampleSize != nil {
		sampleSize = fmt.Sprintf("%d", d.SampleSize.NTotal)
	}
	schedule := "?"
	if d.Timepoints != nil {
		schedule = d.Timepoints.ScheduleText
	}
	return fmt.Sprintf(
		"INN: %s (%s)\nReference product: %s (%s)\nTest product (generic): %s\n"+
			"Dosage form: %s\nStrength: %s\nDosing condition: %s\n"+
			"Volunteers: %s, age %s\nDosing: %s dose\n\n"+
			"Design: %s. %s\nBE limits: %s\nNTI: %t, HVD: %t\n"+
			"T1/2 = %.3g h, Tmax = %.3g h, CVintra = %.1f%%\n"+
			"Washout: %d days, vomiting criterion: %.1f h\n"+
			"Sample size: %s volunteers\nSampling schedule: %s",
		inp.INN, inp.INNLatin, inp.ReferenceDrugName, inp.ReferenceHolder, inp.TestDrugName,
		inp.DosageForm, inp.Strength, d.FastingText,
		d.GenderText, d.AgeRange, d.DoseText,
		d.Design.Design, d.Design.Rationale, d.Design.BELimitsText, d.IsNTI, d.IsHVD,
		d.THalfH, d.TmaxH, d.CVIntraPct,
		d.WashoutDays, d.VomitCriterionH,
		sampleSize, schedule)
}

func callInstructions(callID string, inp Input, d Derived, syn *Synopsis) string {
	switch callID {
	case "study_design_analysis":
		return fmt.Sprintf(
			"Two tasks.\n\n### Task 1: field \"tasks\" — study tasks\nCurrent template text:\n---\n%s\n---\n\n"+
				"Improve it with clinically grounded detail for %s from the monograph data.\n\n"+
				"Dosing frequency check. Current setting: %s dose.\n"+
				"From the dosing and PK monograph sections decide whether REPEATED dosing is required. It applies ONLY if:\n"+
				"1) a single dose is poorly tolerated by healthy volunteers, or\n"+
				"2) concentrations after a single dose are too low to quantify, or\n"+
				"3) a modified-release form requires steady state.\n"+
				"If none holds, keep single-dose. If you switch to repeated dosing, state the reason in the tasks text.\n\n"+
				"### Task 2: field \"study_design\" — design rationale\nCurrent template text:\n---\n%s\n---\n\n"+
				"Strengthen the rationale using the FDA guidance excerpts and the monograph PK data: why this design (%s) rather than another, the washout of >= %d days from T1/2 = %.3g h, and the variability situation (CVintra = %.1f%%). Keep every fact from the template text.",
			syn.Tasks, inp.INN, d.DoseText, syn.StudyDesign, d.Design.Design, d.WashoutDays, d.THalfH, d.CVIntraPct)
	case "criteria":
		return fmt.Sprintf(
			"Generate the three criteria sections as numbered lists, adapted to this product.\n"+
				"- Volunteers: %s; drop mentions of the other sex if the product is sex-restricted.\n"+
				"- Age: %s years.\n"+
				"- If the product is contraindicated in pregnancy, add a pregnancy test to the exclusion criteria.\n"+
				"- Vomiting withdrawal criterion: %.1f h (twice Tmax = %.3g h).\n"+
				"- Use the specific contraindications from the monograph data.\n"+
				"Inclusion: about 10-15 items. Exclusion: about 15-20 items including product-specific contraindications. Withdrawal: include the vomiting criterion.",
			d.GenderText, d.AgeRange, d.VomitCriterionH, d.TmaxH)
	case "drug_safety":
		return fmt.Sprintf(
			"Generate three sections.\n\n"+
				"test_drug_details — the test product: dosage form %s, strength %s; composition and excipients from the monograph data; dosing scheme (\"each volunteer takes a %s dose %s of ... per the randomized sequence\"); storage conditions.\n\n"+
				"reference_drug_details — the reference product %s: INN %s, same structure, marketing authorization holder %s. State that %s is the originator product and that the compared products contain the same active substance in the same dosage form.\n\n"+
				"safety_analysis — safety monitoring: AE/SAE incidence, laboratory data, ECG, physical examination and vital signs, plus product-specific concerns from the adverse-reaction and overdose sections.",
			inp.DosageForm, inp.Strength, d.DoseText, d.FastingText,
			inp.ReferenceDrugName, inp.INN, inp.ReferenceHolder, inp.ReferenceDrugName)
	}
	return ""
}
