package synopsis

import (
	"math"
	"strings"
	"testing"

	"github.com/joelkehle/bioeq/internal/pkfusion"
	"github.com/joelkehle/bioeq/internal/pksources"
	"github.com/joelkehle/bioeq/internal/studydesign"
)

func fusionWith(tHalf, tmax, cv float64) pkfusion.FusionResult {
	res := pkfusion.FusionResult{Substance: "metoprolol"}
	if tHalf > 0 {
		res.Params.THalfH = &pkfusion.PKValue{Value: tHalf, Unit: "h", Source: "structured/edrug3d"}
	}
	if tmax > 0 {
		res.Params.TmaxH = &pkfusion.PKValue{Value: tmax, Unit: "h", Source: "structured/edrug3d"}
	}
	if cv > 0 {
		res.Params.CVIntraPct = &pkfusion.PKValue{Value: cv, Unit: "%", Source: "structured/cvintra_pmc"}
	}
	return res
}

func TestComputeDerivedStandardCrossover(t *testing.T) {
	d := ComputeDerived(Input{INN: "metoprolol", Fusion: fusionWith(3.5, 2.0, 25)})

	if !d.HasPK || !d.HasCV {
		t.Fatalf("HasPK=%t HasCV=%t, want both true", d.HasPK, d.HasCV)
	}
	if d.Design.Design != studydesign.Design2x2 {
		t.Fatalf("design = %s, want 2x2", d.Design.Design)
	}
	if d.UseRSABE || d.RSABE != nil {
		t.Fatalf("RSABE engaged at CV 25%%")
	}
	if d.WashoutDays != 1 {
		t.Errorf("washout = %d days, want 1 (5 x 3.5 h)", d.WashoutDays)
	}
	if d.VomitCriterionH != 4.0 {
		t.Errorf("vomit criterion = %.1f h, want 4.0", d.VomitCriterionH)
	}
	if d.SamplingEndH != 24 {
		t.Errorf("sampling end = %.1f h, want 24", d.SamplingEndH)
	}
	if d.PKPeriodDays != 3 {
		t.Errorf("pk period = %d days, want 3", d.PKPeriodDays)
	}
	// 14 screening + 2 periods x 3 days + 1 washout day + 7 follow-up.
	if d.StudyDurationDays != 28 {
		t.Errorf("duration = %d days, want 28", d.StudyDurationDays)
	}
	if d.SampleSize == nil {
		t.Fatal("sample size missing despite known CV")
	}
	if d.SampleSize.NEvaluable < studydesign.MinSubjects {
		t.Errorf("evaluable = %d, below regulatory floor", d.SampleSize.NEvaluable)
	}
	if d.Timepoints == nil || d.Timepoints.NSamples < 10 {
		t.Errorf("timepoints = %+v, want a dense schedule", d.Timepoints)
	}
}

func TestComputeDerivedCVPrecedence(t *testing.T) {
	threshold := 40.0
	fusion := fusionWith(3.5, 2.0, 25)
	fusion.Flags.CVThreshold = &threshold

	// Sponsor's explicit value beats everything.
	d := ComputeDerived(Input{INN: "x", Fusion: fusion, CVIntraUser: 18})
	if d.CVIntraPct != 18 {
		t.Errorf("CV = %.1f, want sponsor's 18", d.CVIntraPct)
	}

	// Without an override the fused estimate wins over the guidance threshold.
	d = ComputeDerived(Input{INN: "x", Fusion: fusion})
	if d.CVIntraPct != 25 {
		t.Errorf("CV = %.1f, want fused 25", d.CVIntraPct)
	}

	// Guidance threshold is the last resort.
	fusion.Params.CVIntraPct = nil
	d = ComputeDerived(Input{INN: "x", Fusion: fusion})
	if d.CVIntraPct != 40 {
		t.Errorf("CV = %.1f, want guidance 40", d.CVIntraPct)
	}
}

func TestComputeDerivedHighVariabilityEngagesRSABE(t *testing.T) {
	d := ComputeDerived(Input{INN: "x", Fusion: fusionWith(3.5, 2.0, 35)})

	if d.Design.Design != studydesign.DesignReplicated {
		t.Fatalf("design = %s, want replicated at CV 35%%", d.Design.Design)
	}
	if !d.UseRSABE || d.RSABE == nil {
		t.Fatal("RSABE not engaged at CV 35%")
	}
	if d.RSABE.LowerPct != 77.23 || d.RSABE.UpperPct != 129.48 {
		t.Errorf("limits = %.2f–%.2f, want 77.23–129.48", d.RSABE.LowerPct, d.RSABE.UpperPct)
	}
	if math.Abs(d.RSABE.SwR-0.3399) > 1e-4 {
		t.Errorf("swR = %.4f, want 0.3399", d.RSABE.SwR)
	}
}

func TestComputeDerivedUseRSABEForcesReplicated(t *testing.T) {
	d := ComputeDerived(Input{INN: "x", Fusion: fusionWith(3.5, 2.0, 22), UseRSABE: true})

	if d.Design.Design != studydesign.DesignReplicated {
		t.Errorf("design = %s, want replicated when RSABE requested", d.Design.Design)
	}
	if !d.UseRSABE {
		t.Error("UseRSABE lost")
	}
	// Scaling itself still needs CV above 30.
	if d.RSABE != nil {
		t.Errorf("scaled limits computed at CV 22%%: %+v", d.RSABE)
	}
}

func TestComputeDerivedExplicitPreferenceBeatsRSABEDefault(t *testing.T) {
	d := ComputeDerived(Input{
		INN:              "x",
		Fusion:           fusionWith(3.5, 2.0, 22),
		UseRSABE:         true,
		DesignPreference: studydesign.DesignParallel,
	})
	if d.Design.Design != studydesign.DesignParallel {
		t.Errorf("design = %s, want the sponsor's parallel preference", d.Design.Design)
	}
}

func TestComputeDerivedNTIDominates(t *testing.T) {
	fusion := fusionWith(3.5, 2.0, 45)
	fusion.Flags.IsNTI = true
	fusion.Flags.IsHVD = true

	d := ComputeDerived(Input{INN: "x", Fusion: fusion})
	if d.Design.Design != studydesign.Design2x2 {
		t.Errorf("design = %s, want 2x2 for NTI regardless of CV", d.Design.Design)
	}
	if d.Design.Theta != studydesign.ThetaNarrow {
		t.Errorf("theta = %.4f, want %.4f", d.Design.Theta, studydesign.ThetaNarrow)
	}
	if !strings.Contains(d.Design.BELimitsText, "90.00") {
		t.Errorf("limits = %q, want tightened", d.Design.BELimitsText)
	}
}

func TestComputeDerivedMissingPKDegrades(t *testing.T) {
	d := ComputeDerived(Input{INN: "x", Fusion: fusionWith(0, 0, 0)})

	if d.HasPK || d.HasCV {
		t.Fatalf("HasPK=%t HasCV=%t, want both false", d.HasPK, d.HasCV)
	}
	if d.Timepoints != nil || d.SampleSize != nil || d.RSABE != nil {
		t.Fatal("derived artifacts present without PK data")
	}
	if d.SamplingEndH != 24 {
		t.Errorf("sampling end = %.1f, want the 24 h default", d.SamplingEndH)
	}
	if d.PKPeriodDays != 3 {
		t.Errorf("pk period = %d, want 3", d.PKPeriodDays)
	}
	// Crossover without a washout estimate cannot be summed.
	if d.StudyDurationDays != 0 {
		t.Errorf("duration = %d, want 0 when washout unknown", d.StudyDurationDays)
	}
}

func TestResolveFasting(t *testing.T) {
	cases := []struct {
		name     string
		override FastingCode
		guidance *pksources.PSGRecord
		want     FastingCode
	}{
		{"default", "", nil, FastingOnly},
		{"sponsor override", FedOnly, &pksources.PSGRecord{DesignFasting: "yes"}, FedOnly},
		{"guidance both", "", &pksources.PSGRecord{DesignFasting: "single-dose fasting", DesignFed: "single-dose fed"}, FastingFed},
		{"guidance fed only", "", &pksources.PSGRecord{DesignFed: "single-dose fed"}, FedOnly},
		{"guidance fasting only", "", &pksources.PSGRecord{DesignFasting: "single-dose fasting"}, FastingOnly},
	}
	for _, tc := range cases {
		got := resolveFasting(Input{FastingFed: tc.override, Guidance: tc.guidance})
		if got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestComputeDerivedDefaults(t *testing.T) {
	d := ComputeDerived(Input{INN: "x", Fusion: fusionWith(3.5, 2.0, 25)})
	if d.AgeRange != "18-45" {
		t.Errorf("age = %q, want the 18-45 default", d.AgeRange)
	}
	if d.GenderText != "male and female volunteers" {
		t.Errorf("gender = %q", d.GenderText)
	}
	if d.DoseText != "single" {
		t.Errorf("dose = %q, want single", d.DoseText)
	}

	d = ComputeDerived(Input{INN: "x", Fusion: fusionWith(3.5, 2.0, 25), MultipleDose: true, Gender: "male", AgeRange: "18-55"})
	if d.DoseText != "repeated" || d.GenderText != "male volunteers" || d.AgeRange != "18-55" {
		t.Errorf("overrides ignored: dose=%q gender=%q age=%q", d.DoseText, d.GenderText, d.AgeRange)
	}
}
