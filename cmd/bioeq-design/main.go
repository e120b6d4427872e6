package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/joelkehle/bioeq/internal/studydesign"
)

// Standalone design calculator: every input given on the command line, no
// catalogs and no LLM.
func main() {
	cv := flag.Float64("cv", 0, "Within-subject CV, percent (required)")
	tmax := flag.Float64("tmax", 0, "Tmax, hours (enables the sampling schedule)")
	thalf := flag.Float64("thalf", 0, "T1/2, hours (enables the sampling schedule)")
	power := flag.Float64("power", studydesign.DefaultPower, "Target power")
	alpha := flag.Float64("alpha", studydesign.DefaultAlpha, "One-sided alpha")
	nti := flag.Bool("nti", false, "Narrow therapeutic index product")
	hvd := flag.Bool("hvd", false, "Highly variable product flag")
	replicated := flag.Bool("replicated", false, "FDA guidance requests a replicated design")
	forced := flag.String("design", "", "Force design: 2x2_crossover, replicated_crossover or parallel")
	flag.Parse()

	if *cv <= 0 {
		log.Fatal("missing required -cv")
	}

	flags := studydesign.DesignFlags{IsNTI: *nti, IsHVD: *hvd, IsReplicatedFDA: *replicated}
	design := studydesign.DetermineDesign(*cv, flags, studydesign.DesignType(*forced))
	layout := studydesign.LayoutFor(design.Design)

	fmt.Printf("Design: %s\n", design.Design)
	fmt.Printf("  %s\n", design.Rationale)
	fmt.Printf("  BE limits: %s (theta %.4f)\n", design.BELimitsText, design.Theta)
	fmt.Printf("  Layout: %d periods, sequences %s\n\n", layout.NPeriods, strings.Join(layout.Sequences, "/"))

	ss, err := studydesign.CalcSampleSize(studydesign.SampleSizeInput{
		CVPct:  *cv,
		Power:  *power,
		Alpha:  *alpha,
		Theta:  design.Theta,
		Design: design.Design,
		IsNTI:  design.IsNTI,
	})
	if err != nil {
		log.Fatalf("sample size: %v", err)
	}
	fmt.Printf("Sample size (CV %.1f%%, power %.0f%%, alpha %.2f):\n", ss.CVUsed, ss.PowerUsed*100, ss.AlphaUsed)
	fmt.Printf("  evaluable %d, enrolled %d (%d per group), screened %d\n", ss.NEvaluable, ss.NTotal, ss.NPerGroup, ss.NToScreen)
	fmt.Printf("  %s\n\n", ss.FormulaNote)

	if rs := studydesign.CalcRSABELimits(*cv); rs != nil && design.Design == studydesign.DesignReplicated {
		fmt.Printf("RSABE limits for Cmax: %.2f%% – %.2f%% (swR %.4f, k %.3f)\n\n", rs.LowerPct, rs.UpperPct, rs.SwR, rs.K)
	}

	if *tmax > 0 && *thalf > 0 {
		tp, err := studydesign.GenerateTimepoints(*tmax, *thalf, studydesign.MaxSamplingHours)
		if err != nil {
			log.Fatalf("timepoints: %v", err)
		}
		fmt.Printf("Sampling schedule (%d samples to %.0f h):\n  %s\n", tp.NSamples, tp.EndTimeH, tp.ScheduleText)
		fmt.Printf("  Blood: %.1f mL per sample, %.1f mL over two periods\n", tp.BloodPerSampleML, tp.TotalBlood2PeriodsML)
		fmt.Printf("  %s\n\n", tp.Rationale)

		washout := studydesign.WashoutDays(*thalf)
		pkDays := studydesign.PKPeriodDays(tp.EndTimeH)
		fmt.Printf("Washout: %d days; vomiting criterion: %.1f h\n", washout, studydesign.VomitCriterionHours(*tmax))
		fmt.Printf("Study duration: %d days per volunteer\n", studydesign.StudyDurationDays(layout, pkDays, washout))
	}
}
