package synopsis

import (
	"github.com/joelkehle/bioeq/internal/pkfusion"
	"github.com/joelkehle/bioeq/internal/studydesign"
)

// ComputeDerived turns the fusion result and the study parameters into the
// numbers every synopsis section draws on. Missing PK values degrade the
// dependent quantities instead of failing the whole document.
func ComputeDerived(inp Input) Derived {
	d := Derived{
		AgeRange: inp.AgeRange,
	}
	if d.AgeRange == "" {
		d.AgeRange = "18-45"
	}
	d.GenderText = genderText(inp.Gender)
	d.DoseText = "single"
	if inp.MultipleDose {
		d.DoseText = "repeated"
	}

	params := inp.Fusion.Params
	if v := params.Get(pkfusion.SlotTHalfH); v != nil {
		d.THalfH = v.Value
	}
	if v := params.Get(pkfusion.SlotTmaxH); v != nil {
		d.TmaxH = v.Value
	}
	d.HasPK = d.THalfH > 0 && d.TmaxH > 0

	d.CVIntraPct = resolveCV(inp)
	d.HasCV = d.CVIntraPct > 0

	flags := studydesign.DesignFlags{
		IsNTI:           inp.Fusion.Flags.IsNTI,
		IsHVD:           inp.Fusion.Flags.IsHVD,
		IsReplicatedFDA: inp.Fusion.Flags.IsReplicated,
	}
	d.IsNTI, d.IsHVD = flags.IsNTI, flags.IsHVD

	forced := inp.DesignPreference
	if inp.UseRSABE && forced == "" {
		forced = studydesign.DesignReplicated
	}
	d.Design = studydesign.DetermineDesign(d.CVIntraPct, flags, forced)
	d.Layout = studydesign.LayoutFor(d.Design.Design)

	d.UseRSABE = inp.UseRSABE ||
		(d.Design.Design == studydesign.DesignReplicated && d.CVIntraPct > studydesign.HighVariabilityCVPct)
	if d.UseRSABE {
		d.RSABE = studydesign.CalcRSABELimits(d.CVIntraPct)
	}

	if d.HasCV {
		if res, err := studydesign.CalcSampleSize(studydesign.SampleSizeInput{
			CVPct:  d.CVIntraPct,
			Theta:  d.Design.Theta,
			Design: d.Design.Design,
			IsNTI:  d.Design.IsNTI,
		}); err == nil {
			d.SampleSize = &res
		}
	}

	d.SamplingEndH = 24
	if d.HasPK {
		if tp, err := studydesign.GenerateTimepoints(d.TmaxH, d.THalfH, studydesign.MaxSamplingHours); err == nil {
			d.Timepoints = &tp
			d.SamplingEndH = tp.EndTimeH
		}
		d.WashoutDays = studydesign.WashoutDays(d.THalfH)
		d.VomitCriterionH = studydesign.VomitCriterionHours(d.TmaxH)
	}
	d.PKPeriodDays = studydesign.PKPeriodDays(d.SamplingEndH)
	d.StudyDurationDays = studydesign.StudyDurationDays(d.Layout, d.PKPeriodDays, d.WashoutDays)

	d.Fasting = resolveFasting(inp)
	d.FastingText = fastingText(d.Fasting)
	return d
}

// resolveCV picks the within-subject CV: the sponsor's explicit value wins,
// then the fused estimate, then the guidance threshold as the last resort.
func resolveCV(inp Input) float64 {
	if inp.CVIntraUser > 0 {
		return inp.CVIntraUser
	}
	if v := inp.Fusion.Params.Get(pkfusion.SlotCVIntraPct); v != nil && v.Value > 0 {
		return v.Value
	}
	if t := inp.Fusion.Flags.CVThreshold; t != nil && *t > 0 {
		return *t
	}
	return 0
}

// resolveFasting follows the sponsor's choice, then the FDA guidance
// (fasting and fed studies requested means both), defaulting to fasting.
func resolveFasting(inp Input) FastingCode {
	if inp.FastingFed != "" {
		return inp.FastingFed
	}
	if g := inp.Guidance; g != nil {
		switch {
		case g.DesignFasting != "" && g.DesignFed != "":
			return FastingFed
		case g.DesignFed != "" && g.DesignFasting == "":
			return FedOnly
		}
	}
	return FastingOnly
}

func fastingText(c FastingCode) string {
	switch c {
	case FedOnly:
		return "after a high-calorie meal"
	case FastingFed:
		return "under fasting conditions and after a high-calorie meal"
	default:
		return "under fasting conditions"
	}
}

func genderText(code string) string {
	switch code {
	case "male":
		return "male volunteers"
	case "female":
		return "female volunteers"
	default:
		return "male and female volunteers"
	}
}
