package pkfusion

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractParametersFillsTaggedSources(t *testing.T) {
	caller := &scriptedCaller{responses: []string{`{
		"cmax": {"value": 54.0, "unit": "ng/mL", "source_tag": "product/vidal_drug", "raw_text": "Cmax of 54 ng/mL", "reasoning": "stated directly"},
		"auc": null,
		"tmax_h": {"value": 1.5, "unit": "h", "source_tag": "substance/ohlp", "raw_text": "peak at 1.5 h", "reasoning": "stated directly"},
		"t_half_h": null,
		"cvintra_pct": {"value": 24.0, "unit": "%", "source_tag": "substance/drugbank/half_life", "raw_text": "intra-subject CV 24%", "reasoning": "within-subject CV for Cmax"}
	}`}}
	oracle := NewOracle(caller)

	texts := []TaggedText{
		{Tag: "product/vidal_drug", Text: "After a single oral dose the Cmax of 54 ng/mL is reached at 1.5 h."},
	}
	params, metrics, err := oracle.ExtractParameters(context.Background(), "metoprolol", texts, []string{"osp: auc = 900 ng·h/mL"})
	if err != nil {
		t.Fatal(err)
	}
	if metrics.Attempts != 1 {
		t.Errorf("attempts = %d", metrics.Attempts)
	}
	cmax := params.Get(SlotCmax)
	if cmax == nil || cmax.Value != 54 || cmax.Source != "llm/product/vidal_drug" {
		t.Errorf("cmax = %+v", cmax)
	}
	if tm := params.Get(SlotTmaxH); tm == nil || tm.Source != "llm/substance/ohlp" {
		t.Errorf("tmax = %+v", tm)
	}
	if params.Get(SlotAUC) != nil {
		t.Error("null auc must stay empty")
	}

	prompt := caller.prompts[0]
	for _, want := range []string{"Substance: metoprolol", "[product/vidal_drug]", "osp: auc = 900"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestExtractParametersRejectsMissingEvidence(t *testing.T) {
	noEvidence := `{"cmax": {"value": 54.0, "unit": "ng/mL", "source_tag": "product/x", "raw_text": "", "reasoning": "guess"},
		"auc": null, "tmax_h": null, "t_half_h": null, "cvintra_pct": null}`
	fixed := `{"cmax": {"value": 54.0, "unit": "ng/mL", "source_tag": "product/x", "raw_text": "Cmax 54 ng/mL", "reasoning": "stated"},
		"auc": null, "tmax_h": null, "t_half_h": null, "cvintra_pct": null}`
	caller := &scriptedCaller{responses: []string{noEvidence, fixed}}
	oracle := NewOracle(caller)

	params, metrics, err := oracle.ExtractParameters(context.Background(), "x", []TaggedText{{Tag: "t", Text: "Cmax 54 ng/mL"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if metrics.ContentRetries != 1 {
		t.Errorf("content retries = %d, want 1", metrics.ContentRetries)
	}
	if params.Get(SlotCmax) == nil {
		t.Error("corrected response must fill cmax")
	}
}

func TestExtractParametersRejectsImplausibleCV(t *testing.T) {
	bad := `{"cmax": null, "auc": null, "tmax_h": null, "t_half_h": null,
		"cvintra_pct": {"value": 400.0, "unit": "%", "source_tag": "t", "raw_text": "CV 400%", "reasoning": "typo in source"}}`
	caller := &scriptedCaller{responses: []string{bad, bad, bad}}
	oracle := NewOracle(caller)

	_, _, err := oracle.ExtractParameters(context.Background(), "x", []TaggedText{{Tag: "t", Text: "CV 400%"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "plausible range") {
		t.Errorf("err = %v, want plausibility rejection", err)
	}
}

func TestValidateSameSubstance(t *testing.T) {
	caller := &scriptedCaller{responses: []string{
		`{"is_same": true, "confidence": 0.97, "reason": "metoprolol tartrate is a salt of metoprolol"}`,
	}}
	oracle := NewOracle(caller)

	v := oracle.ValidateSameSubstance(context.Background(), "metoprolol", "metoprolol tartrate")
	if !v.Accepted || v.Score != 0.97 {
		t.Errorf("result = %+v", v)
	}
}

func TestValidateSameSubstanceRejects(t *testing.T) {
	caller := &scriptedCaller{responses: []string{
		`{"is_same": false, "confidence": 0.92, "reason": "different beta blockers, not the same moiety"}`,
	}}
	oracle := NewOracle(caller)

	v := oracle.ValidateSameSubstance(context.Background(), "metoprolol", "bisoprolol")
	if v.Accepted {
		t.Errorf("result = %+v, want rejection", v)
	}
}

func TestValidateSameSubstanceFailsOpen(t *testing.T) {
	caller := &scriptedCaller{errs: []error{
		errors.New("status code: 401"),
	}}
	oracle := NewOracle(caller)

	v := oracle.ValidateSameSubstance(context.Background(), "a", "b")
	if !v.Accepted || !strings.Contains(v.Reason, "policy") {
		t.Errorf("result = %+v, want fail-open acceptance", v)
	}

	var nilOracle *Oracle
	if v := nilOracle.ValidateSameSubstance(context.Background(), "a", "b"); !v.Accepted {
		t.Errorf("nil oracle must accept, got %+v", v)
	}
}
