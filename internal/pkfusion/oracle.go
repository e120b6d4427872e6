package pkfusion

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const extractionPromptContext = `Extract pharmacokinetic parameters for the named substance from the tagged
source texts below. Target population: healthy adult volunteers after a
single oral dose, unless only steady-state data exists.

Rules:
- cmax in ng/mL. Convert if needed (1 µg/mL = 1000 ng/mL, 1 mg/L = 1000 ng/mL).
  A molar Cmax (nM, µM) may be converted only when the text states the
  molecular weight; otherwise leave cmax null.
- auc in ng·h/mL (AUC0-t or AUC0-inf, prefer AUC0-inf). Same mass conversions.
- tmax_h and t_half_h in hours. Convert minutes to hours.
- cvintra_pct is the WITHIN-SUBJECT (intra-individual) coefficient of
  variation in percent, ideally for Cmax. A standard deviation, a total CV,
  or a between-subject CV is NOT acceptable: return null instead.
- A range collapses to its arithmetic mean ("2-4 h" becomes 3.0).
- When product-level and substance-level blocks disagree, prefer the
  product-level block: it describes the exact formulation under study.
- For every extracted value quote the exact supporting fragment in raw_text,
  name the [tag] of the block it came from in source_tag, and explain the
  choice in reasoning.
- Return null for any parameter the texts do not support. Never guess.`

const extractionSchemaPrompt = `Required JSON schema (each parameter is an object or null):
{
  "cmax":        {"value": "float", "unit": "ng/mL", "source_tag": "string", "raw_text": "string", "reasoning": "string"},
  "auc":         {"value": "float", "unit": "ng·h/mL", "source_tag": "string", "raw_text": "string", "reasoning": "string"},
  "tmax_h":      {"value": "float", "unit": "h", "source_tag": "string", "raw_text": "string", "reasoning": "string"},
  "t_half_h":    {"value": "float", "unit": "h", "source_tag": "string", "raw_text": "string", "reasoning": "string"},
  "cvintra_pct": {"value": "float", "unit": "%", "source_tag": "string", "raw_text": "string", "reasoning": "string"}
}`

const validationSchemaPrompt = `Required JSON schema:
{
  "is_same": "boolean",
  "confidence": "float (0.0-1.0)",
  "reason": "string (min 10 chars)"
}`

// Oracle wraps the LLM for the two fusion decisions: free-text parameter
// extraction and same-substance validation of fuzzy catalog hits.
type Oracle struct {
	exec *StageExecutor
}

func NewOracle(caller LLMCaller) *Oracle {
	return &Oracle{exec: NewStageExecutor(caller)}
}

type extractionOutput struct {
	Cmax       *extractedValue `json:"cmax"`
	AUC        *extractedValue `json:"auc"`
	TmaxH      *extractedValue `json:"tmax_h"`
	THalfH     *extractedValue `json:"t_half_h"`
	CVIntraPct *extractedValue `json:"cvintra_pct"`
}

type extractedValue struct {
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	SourceTag string  `json:"source_tag"`
	RawText   string  `json:"raw_text"`
	Reasoning string  `json:"reasoning"`
}

func (o *Oracle) ExtractParameters(ctx context.Context, substance string, texts []TaggedText, structuredLines []string) (PKParams, StageAttemptMetrics, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\nSubstance: %s\n\n", extractionPromptContext, substance)
	if len(structuredLines) > 0 {
		sb.WriteString("Structured values already on file (for cross-checking and molar conversion):\n")
		for _, line := range structuredLines {
			fmt.Fprintf(&sb, "  %s\n", line)
		}
		sb.WriteString("\n")
	}
	for _, t := range texts {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", t.Tag, t.Text)
	}
	sb.WriteString(extractionSchemaPrompt)

	var out extractionOutput
	metrics, err := o.exec.Run(ctx, "extraction", sb.String(), &out, func() error {
		for _, v := range []*extractedValue{out.Cmax, out.AUC, out.TmaxH, out.THalfH, out.CVIntraPct} {
			if v != nil && strings.TrimSpace(v.RawText) == "" {
				return fmt.Errorf("extracted value missing raw_text evidence")
			}
		}
		if out.CVIntraPct != nil && (out.CVIntraPct.Value <= 0 || out.CVIntraPct.Value > 150) {
			return fmt.Errorf("cvintra_pct %.2f outside plausible range", out.CVIntraPct.Value)
		}
		return nil
	})
	if err != nil {
		return PKParams{}, metrics, err
	}

	var params PKParams
	fill := func(slot, unit string, v *extractedValue) {
		if v == nil {
			return
		}
		source := "llm/combined"
		if tag := strings.TrimSpace(v.SourceTag); tag != "" {
			source = "llm/" + strings.Trim(tag, "[]")
		}
		params.Set(slot, &PKValue{
			Value:     v.Value,
			Unit:      unit,
			Source:    source,
			RawText:   v.RawText,
			Reasoning: v.Reasoning,
		})
	}
	fill(SlotCmax, "ng/mL", out.Cmax)
	fill(SlotAUC, "ng·h/mL", out.AUC)
	fill(SlotTmaxH, "h", out.TmaxH)
	fill(SlotTHalfH, "h", out.THalfH)
	fill(SlotCVIntraPct, "%", out.CVIntraPct)
	return params, metrics, nil
}

type validationOutput struct {
	IsSame     bool    `json:"is_same"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ValidateSameSubstance asks whether a fuzzy catalog hit refers to the
// queried substance. The check fails open: when the oracle is unavailable
// or errors out, the hit is accepted, because a false rejection silently
// starves the parameter pool while a false acceptance is still caught by
// the provenance trace.
func (o *Oracle) ValidateSameSubstance(ctx context.Context, queried, found string) ValidationResult {
	if o == nil || o.exec == nil {
		return ValidationResult{Accepted: true, Score: 0, Reason: "oracle unavailable, accepted by policy"}
	}
	prompt := fmt.Sprintf(`Do these two names refer to the same active pharmaceutical substance?
Salts, esters and hydrates of the same moiety count as the same substance;
different substances that merely share a drug class do not.

Queried: %s
Found in catalog: %s

%s`, queried, found, validationSchemaPrompt)

	var out validationOutput
	_, err := o.exec.Run(ctx, "validation", prompt, &out, func() error {
		if len(strings.TrimSpace(out.Reason)) < 10 {
			return fmt.Errorf("reason too short")
		}
		return nil
	})
	if err != nil {
		log.Printf("[fusion] validation oracle failed (%v), accepting %q by fail-open policy", err, found)
		return ValidationResult{Accepted: true, Score: 0, Reason: "oracle error, accepted by policy"}
	}
	return ValidationResult{Accepted: out.IsSame, Score: out.Confidence, Reason: out.Reason}
}
