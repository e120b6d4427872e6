package synopsis

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// buildProgrammatic fills every template-driven section. The three
// narrative sections get their deterministic fallback text here too, so a
// failed LLM call still leaves a complete document.
func buildProgrammatic(inp Input, d Derived, now time.Time) Synopsis {
	s := Synopsis{
		Phase:             "Bioequivalence study",
		Sponsor:           orDefault(inp.Sponsor, "Sponsor TBD"),
		ResearchCenter:    inp.ResearchCenter,
		BioanalyticalLab:  inp.BioanalyticalLab,
		TestDrugName:      inp.TestDrugName,
		INN:               inp.INN,
		INNLatin:          inp.INNLatin,
		DosageForm:        inp.DosageForm,
		Strength:          inp.Strength,
		ReferenceDrugName: inp.ReferenceDrugName,
		ReferenceHolder:   inp.ReferenceHolder,
	}

	s.ProtocolID = inp.INN + "-BE"
	s.ProtocolVersion = "1.0 of " + now.Format("2 January 2006")
	s.ProtocolTitle = genTitle(inp, d)
	s.StudyObjectives = genObjectives(inp, d)
	s.Tasks = genTasks(inp, d)
	s.StudyDesign = genStudyDesign(inp, d)
	s.Methodology = genMethodology(inp, d)
	s.SampleSizeText = genSampleSizeText(d)
	s.StudyPeriods = genStudyPeriods(d)
	s.StudyDuration = genStudyDuration(d)
	s.PKParameters = genPKParameters(inp)
	s.AnalyticalMethod = genAnalyticalMethod(inp)
	s.BECriteria = genBECriteria(inp, d)
	s.SampleSizeCalculation = genSampleSizeCalculation(d)
	s.StatisticalMethods = genStatisticalMethods(inp, d)
	s.Blinding = genBlinding(d)
	s.EthicalAspects = genEthicalAspects(inp)

	if d.Timepoints != nil {
		s.TimepointsSchedule = d.Timepoints.ScheduleText
		s.NSamples = d.Timepoints.NSamples
		s.BloodTotalML = d.Timepoints.TotalBlood2PeriodsML
	}
	return s
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// testDrugFull appends the dosage form and strength when they are not
// already part of the name.
func testDrugFull(inp Input) string {
	out := inp.TestDrugName
	if inp.DosageForm != "" && !strings.Contains(strings.ToLower(out), strings.ToLower(inp.DosageForm)) {
		out += ", " + inp.DosageForm
	}
	if inp.Strength != "" && !strings.Contains(out, inp.Strength) {
		out += ", " + inp.Strength
	}
	return out
}

func referencePart(inp Input) string {
	part := "the reference product"
	if inp.ReferenceDrugName != "" {
		part = "the reference product " + inp.ReferenceDrugName
	}
	if inp.ReferenceHolder != "" {
		part += " (" + inp.ReferenceHolder + ")"
	}
	return part
}

func genTitle(inp Input, d Derived) string {
	sponsor := orDefault(inp.Sponsor, "Sponsor TBD")
	return fmt.Sprintf(
		"An open-label, randomized %s comparing the pharmacokinetics and bioequivalence of %s (%s) and %s %s in healthy volunteers.",
		d.Layout.NameFull, testDrugFull(inp), sponsor, referencePart(inp), d.FastingText)
}

func genObjectives(inp Input, d Derived) string {
	doseWord := "single"
	if d.DoseText == "repeated" {
		doseWord = "repeated"
	}
	return fmt.Sprintf(
		"Primary objective:\nTo assess the comparative pharmacokinetics and bioequivalence of %s and %s %s in healthy volunteers.\n\n"+
			"Secondary objective:\nTo compare the safety of %s-dose administration of %s and %s in healthy volunteers.",
		testDrugFull(inp), referencePart(inp), d.FastingText,
		doseWord, testDrugFull(inp), referencePart(inp))
}

func genTasks(inp Input, d Derived) string {
	return fmt.Sprintf(
		"1. Determine the plasma concentration of %s in volunteers after %s-dose administration of the compared products %s.\n"+
			"2. Assess the pharmacokinetic parameters and relative bioavailability of the compared products.\n"+
			"3. Assess the bioequivalence of the compared products based on statistical analysis of the pharmacokinetic data.\n"+
			"4. Assess the safety profile of the compared products under %s-dose administration (incidence of adverse events (AE) and serious adverse events (SAE), changes in laboratory findings, physical examination, vital signs and ECG).",
		inp.INN, d.DoseText, testDrugFull(inp), d.DoseText)
}

func genStudyDesign(inp Input, d Derived) string {
	washout := ""
	if d.WashoutDays > 0 && d.THalfH > 0 {
		washout = fmt.Sprintf(
			" Treatment periods are separated by a washout of at least five elimination half-lives of the active substance (>= 5 x %.3g h = %d days).",
			d.THalfH, d.WashoutDays)
	}
	return fmt.Sprintf(
		"Under the applicable bioequivalence rules, the standard design for the comparative pharmacokinetic assessment of the test product %s and %s is an %s.%s\n\n%s",
		inp.TestDrugName, referencePart(inp), d.Layout.NameFull, washout, d.Design.Rationale)
}

func genMethodology(inp Input, d Derived) string {
	layout := d.Layout
	nPerGroup := "N/2"
	if d.SampleSize != nil {
		nPerGroup = fmt.Sprintf("%d", d.SampleSize.NPerGroup)
	}
	schedule := "defined individually"
	if d.Timepoints != nil {
		schedule = d.Timepoints.ScheduleText
	}

	periods := make([]string, layout.NPeriods)
	for i := range periods {
		periods[i] = fmt.Sprintf("Period %d", i+1)
	}

	var groups strings.Builder
	for gi, seq := range layout.Sequences {
		fmt.Fprintf(&groups, "Group %d (n = %s): sequence %s\n", gi+1, nPerGroup, seq)
		for pi, letter := range seq {
			label := "reference product (R)"
			if letter == 'T' {
				label = "test product (T)"
			}
			fmt.Fprintf(&groups, "  Period %d: %s\n", pi+1, label)
		}
	}

	washoutSection := ""
	if layout.NWashouts > 0 && d.WashoutDays > 0 {
		washoutSection = fmt.Sprintf(
			"\nThe washout between PK periods will last at least %d days (>= 5 x T1/2) from dosing.", d.WashoutDays)
	}
	fedSection := ""
	if d.Fasting == FedOnly || d.Fasting == FastingFed {
		fedSection = "\n\nFed condition: volunteers receive a standard high-calorie breakfast (800-1000 kcal, about 50% fat) starting 30 minutes before dosing; the breakfast must be finished within 30 minutes."
	}
	withWashout := ""
	if layout.NWashouts > 0 {
		withWashout = " separated by washout intervals"
	}

	return fmt.Sprintf(
		"The study enrolls healthy volunteers who meet the eligibility criteria and have signed the informed consent form.\n\n"+
			"The study consists of a screening period, %d PK period(s) (%s)%s, and a follow-up period.\n\n"+
			"Screening lasts 1 to 14 days; each PK period lasts %d days.\n\n"+
			"Volunteers are randomized into %d groups at a %s ratio:\n\n%s\n"+
			"PK periods: volunteers are hospitalized the evening before dosing (at least 10 hours before). On Day 1 of each PK period volunteers receive a %s dose of the test or reference product %s with 200 mL of still water at room temperature.\n\n"+
			"Volunteers remain at the site for at least %.0f hours after dosing for PK sampling.\n\n"+
			"Blood samples are collected at: %s.\n\n"+
			"Restrictions: no fluids from 1 hour before to 2 hours after dosing (except the water taken with the dose); no food for 4 hours after dosing; standard meals follow the site schedule.%s%s\n\n"+
			"Follow-up: 7 days after the last dose volunteers return to the site for a health assessment.",
		layout.NPeriods, strings.Join(periods, ", "), withWashout,
		d.PKPeriodDays, layout.NGroups, layout.Ratio, groups.String(),
		d.DoseText, d.FastingText, d.SamplingEndH, schedule,
		washoutSection, fedSection)
}

func genSampleSizeText(d Derived) string {
	if d.SampleSize == nil || !d.HasCV {
		return "The within-subject CV could not be established. Regulatory minimum applies: 12 volunteers evaluable for analysis."
	}
	ss := d.SampleSize
	return fmt.Sprintf(
		"The sample size was computed from the within-subject coefficient of variation of the pharmacokinetic parameters (CVintra) = %.1f%% for Cmax/AUC(0-t).\n\n%s\n\n"+
			"Allowing for early withdrawal of up to %.0f%% of enrolled volunteers, %d volunteers will be enrolled.\n"+
			"Allowing for a %.0f%% screening failure rate, up to %d volunteers will be screened.\n"+
			"Volunteers who withdraw early will not be replaced.",
		ss.CVUsed, ss.FormulaNote, ss.DropoutPct, ss.NTotal, ss.ScreenFailPct, ss.NToScreen)
}

func genStudyPeriods(d Derived) string {
	var b strings.Builder
	b.WriteString(
		"Screening period:\nVisit 1 (Day -14 to Day -1).\n" +
			"All clinical, laboratory and other assessments must be available to confirm eligibility.")

	sDays := int(math.Ceil(d.SamplingEndH / 24))
	visit := 2
	dayCursor := 0
	for p := 0; p < d.Layout.NPeriods; p++ {
		hosp := dayCursor
		dose := dayCursor + 1
		sampleEnd := dose + sDays
		randNote := ""
		if p == 0 {
			randNote = " and randomization"
		}
		fmt.Fprintf(&b,
			"\n\nPK period %d:\nVisit %d. Day %d to Day %d (hospitalization)\n"+
				"  Admission%s: Day %d\n  Dosing: Day %d\n  Blood sampling: Day %d to Day %d\n  Discharge: Day %d",
			p+1, visit, hosp, sampleEnd, randNote, hosp, dose, dose, sampleEnd, sampleEnd)
		visit++

		if p < d.Layout.NPeriods-1 && d.WashoutDays > 0 {
			// A short washout can be fully consumed by the sampling stay.
			washEnd := dose + d.WashoutDays
			if washEnd > sampleEnd {
				fmt.Fprintf(&b,
					"\n\nWashout: Day %d to Day %d (%d days from dosing in period %d).",
					sampleEnd+1, washEnd, d.WashoutDays, p+1)
			}
			if washEnd < sampleEnd {
				washEnd = sampleEnd
			}
			dayCursor = washEnd
		} else {
			dayCursor = sampleEnd
		}
	}

	fmt.Fprintf(&b,
		"\n\nFollow-up period:\nVisit %d. Day %d (visit window +2 days)\n"+
			"Volunteers return 7 days after the last dose for a health assessment.",
		visit, dayCursor+7)
	b.WriteString(
		"\n\nUnscheduled visit:\nPerformed when needed; any study procedure may be repeated at the investigator's discretion.")
	return b.String()
}

func genStudyDuration(d Derived) string {
	if d.StudyDurationDays <= 0 {
		return "The study duration is determined individually."
	}
	parts := []string{
		fmt.Sprintf("The maximum duration of participation for one volunteer is %d days.", d.StudyDurationDays),
		"Screening lasts 1 to 14 days.",
		fmt.Sprintf("Each PK period lasts %d days (including hospitalization the evening before dosing, at least 10 hours before the dose).", d.PKPeriodDays),
	}
	if d.WashoutDays > 0 && d.Layout.NWashouts > 0 {
		parts = append(parts, fmt.Sprintf("The washout between PK periods lasts %d days from dosing.", d.WashoutDays))
	}
	parts = append(parts, "The follow-up visit takes place 7 days after the last dose.")
	return strings.Join(parts, " ")
}

func genPKParameters(inp Input) string {
	return fmt.Sprintf(
		"The study characterizes the pharmacokinetics of %s measured as the parent compound in plasma.\n\n"+
			"1. Primary pharmacokinetic parameters of %s:\n"+
			"  - Cmax: maximum plasma concentration\n"+
			"  - AUC(0-t): area under the concentration-time curve from dosing to the last quantifiable concentration.\n\n"+
			"2. Secondary pharmacokinetic parameters of %s:\n"+
			"  - AUC(0-inf): area under the curve extrapolated to infinity\n"+
			"  - Tmax: time to maximum concentration\n"+
			"  - T1/2: plasma elimination half-life\n"+
			"  - kel: terminal elimination rate constant.",
		inp.INN, inp.INN, inp.INN)
}

func genAnalyticalMethod(inp Input) string {
	return fmt.Sprintf(
		"Analyte concentrations in plasma will be measured by high-performance liquid chromatography with tandem mass-spectrometric detection (HPLC-MS/MS). "+
			"Full validation of the bioanalytical method for %s in plasma will be performed per the applicable guidelines and the laboratory's standard procedures.",
		inp.INN)
}

func genBECriteria(inp Input, d Derived) string {
	base := fmt.Sprintf(
		"Bioequivalence will be concluded from 90%% confidence intervals for the ratios of geometric means (test over reference) of AUC(0-t) and Cmax of %s.",
		inp.INN)

	if d.RSABE != nil {
		r := d.RSABE
		return fmt.Sprintf(
			"%s\n\nFor AUC(0-t): the products are bioequivalent if the 90%% CI lies within 80.00-125.00%% (alpha = 0.05).\n\n"+
				"For Cmax: given the high within-subject variability (CVintra = %.1f%% > 30%%), reference-scaled average bioequivalence (RSABE) applies.\n"+
				"  swR = sqrt(ln(1 + CV^2)) = sqrt(ln(1 + %.4f^2)) = %.4f\n"+
				"  k = %.3f\n"+
				"  Limits: exp(+/- k*swR) = exp(+/- %.3f x %.4f) = [%.2f%%; %.2f%%]",
			base, r.CVPct, r.CVPct/100, r.SwR, r.K, r.K, r.SwR, r.LowerPct, r.UpperPct)
	}
	return fmt.Sprintf(
		"%s\n\nThe products are bioequivalent if the confidence intervals for AUC(0-t) and Cmax lie within %s (alpha = 0.05).",
		base, d.Design.BELimitsText)
}

func genSampleSizeCalculation(d Derived) string {
	if d.SampleSize == nil || !d.HasCV {
		return "The within-subject CV could not be established. Regulatory minimum applies: 12 volunteers."
	}
	ss := d.SampleSize
	cvFrac := ss.CVUsed / 100
	sigma2 := math.Log(1 + cvFrac*cvFrac)
	delta := math.Log(ss.ThetaUsed)
	return fmt.Sprintf(
		"Sample size calculation:\n\nDesign: %s\nCVintra = %.1f%%\n"+
			"sigma_w^2 = ln(1 + CV^2) = ln(1 + %.4f^2) = %.4f\n"+
			"delta = ln(theta) = ln(%.4f) = %.4f\n"+
			"alpha = %.2f, power = %.0f%%\n\n"+
			"Evaluable minimum: %d volunteers\n"+
			"With the %.0f%% dropout allowance: %d volunteers (%d per group)\n\n"+
			"Method: %s",
		ss.DesignUsed, ss.CVUsed, cvFrac, sigma2, ss.ThetaUsed, delta,
		ss.AlphaUsed, ss.PowerUsed*100,
		ss.NEvaluable, ss.DropoutPct, ss.NTotal, ss.NPerGroup, ss.Method)
}

func genStatisticalMethods(inp Input, d Derived) string {
	hypothesis := "H0: GT/GR <= 0.80 or GT/GR >= 1.25"
	rsabeSection := ""
	if d.RSABE != nil {
		r := d.RSABE
		hypothesis = fmt.Sprintf(
			"For AUC(0-t): H0: GT/GR <= 0.80 or GT/GR >= 1.25\n"+
				"For Cmax (RSABE): H0: GT/GR <= %.4f or GT/GR >= %.4f",
			r.LowerPct/100, r.UpperPct/100)
		rsabeSection = fmt.Sprintf(
			"\n\nFor Cmax the reference-scaled approach (RSABE) applies:\n"+
				"swR = sqrt(ln(1 + CV^2)) = %.4f, k = %.3f\n"+
				"Limits: exp(+/- k*swR) = [%.2f%%; %.2f%%]",
			r.SwR, r.K, r.LowerPct, r.UpperPct)
	}
	return fmt.Sprintf(
		"The statistical analysis follows the applicable bioequivalence guidance.\n\n"+
			"The bioequivalence hypothesis tested is:\n%s\n\n"+
			"where GT and GR are the geometric means of the PK parameter of %s for the test and reference product.\n\n"+
			"Descriptive statistics (median, arithmetic mean, geometric mean, minimum, maximum, standard deviation, coefficient of variation) are computed for the primary and secondary PK parameters.\n\n"+
			"AUC(0-t) and Cmax of %s are assumed log-normal; after log transformation the parameters are analyzed by ANOVA.\n\n"+
			"The ANOVA model includes fixed effects for:\n  - product\n  - period\n  - sequence\n  - subject nested within sequence\n\n"+
			"90%% confidence intervals for the ratio of geometric means (T/R) are derived from the ANOVA results.%s",
		hypothesis, inp.INN, inp.INN, rsabeSection)
}

func genBlinding(d Derived) string {
	nPerGroup := "N/2"
	if d.SampleSize != nil {
		nPerGroup = fmt.Sprintf("%d", d.SampleSize.NPerGroup)
	}
	return fmt.Sprintf(
		"The study is open-label. The bioanalytical laboratory is blinded: laboratory staff have no access to the randomization list until the bioanalytical stage is complete.\n\n"+
			"Volunteers are assigned to one of %d groups by block randomization without stratification at a %s ratio.\n\n"+
			"Each randomization number determines the sequence of test (T) and reference (R) product administration: %s.\n\n"+
			"Each group enrolls %s volunteers; in every period volunteers receive the product their assigned sequence dictates.",
		d.Layout.NGroups, d.Layout.Ratio, strings.Join(d.Layout.Sequences, "/"), nPerGroup)
}

func genEthicalAspects(inp Input) string {
	sponsor := orDefault(inp.Sponsor, "the sponsor")
	return "The study will be conducted per the protocol and in strict accordance with:\n" +
		"- the ethical principles of the World Medical Association Declaration of Helsinki (1964, as last amended);\n" +
		"- the applicable Good Clinical Practice rules;\n" +
		"- the applicable bioequivalence study rules;\n" +
		"and the requirements of national legislation.\n\n" +
		"Life and health insurance for the volunteers is provided by " + sponsor + "."
}
