package synopsis

import (
	"fmt"
	"strings"

	"github.com/joelkehle/bioeq/internal/studydesign"
)

// Rows returns the synopsis as an ordered list of labeled sections, the
// shape both the markdown and the workbook renderers consume.
func (s *Synopsis) Rows() []Row {
	return []Row{
		{"Protocol title", s.ProtocolTitle},
		{"Protocol ID", s.ProtocolID},
		{"Sponsor", s.Sponsor},
		{"Research center", s.ResearchCenter},
		{"Bioanalytical laboratory", s.BioanalyticalLab},
		{"Phase", s.Phase},
		{"Test product", s.TestDrugName},
		{"Active substance", activeSubstance(s)},
		{"Dosage form / strength", joinNonEmpty(s.DosageForm, s.Strength)},
		{"Reference product", joinNonEmpty(s.ReferenceDrugName, s.ReferenceHolder)},
		{"Study objectives", s.StudyObjectives},
		{"Study tasks", s.Tasks},
		{"Study design", s.StudyDesign},
		{"Methodology", s.Methodology},
		{"Number of volunteers", s.SampleSizeText},
		{"Inclusion criteria", s.InclusionCriteria},
		{"Exclusion criteria", s.ExclusionCriteria},
		{"Withdrawal criteria", s.WithdrawalCriteria},
		{"Test product (T)", s.TestDrugDetails},
		{"Reference product (R)", s.ReferenceDrugDetails},
		{"Study periods", s.StudyPeriods},
		{"Study duration", s.StudyDuration},
		{"PK parameters", s.PKParameters},
		{"Analytical method", s.AnalyticalMethod},
		{"Bioequivalence criteria", s.BECriteria},
		{"Safety assessment", s.SafetyAnalysis},
		{"Sample size calculation", s.SampleSizeCalculation},
		{"Statistical methods", s.StatisticalMethods},
		{"Blinding and randomization", s.Blinding},
		{"Ethical aspects", s.EthicalAspects},
		{"Protocol version", s.ProtocolVersion},
	}
}

func activeSubstance(s *Synopsis) string {
	if s.INNLatin != "" {
		return fmt.Sprintf("%s (%s)", s.INN, s.INNLatin)
	}
	return s.INN
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// RenderMarkdown builds the protocol synopsis document.
func RenderMarkdown(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Protocol Synopsis\n\n")
	fmt.Fprintf(&b, "**%s**\n\n", res.Synopsis.ProtocolTitle)

	for _, row := range res.Synopsis.Rows() {
		if strings.TrimSpace(row.Value) == "" {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", row.Label, row.Value)
	}

	if res.Derived.Timepoints != nil {
		tp := res.Derived.Timepoints
		fmt.Fprintf(&b, "## Blood sampling\n\n")
		fmt.Fprintf(&b, "- Timepoints: %s\n", tp.ScheduleText)
		fmt.Fprintf(&b, "- Samples per period: %d\n", tp.NSamples)
		fmt.Fprintf(&b, "- Blood per sample: %.1f mL (plus %.1f mL line discard)\n",
			tp.BloodPerSampleML, studydesign.DeadVolumeML)
		fmt.Fprintf(&b, "- Total over two periods: %.1f mL\n\n", tp.TotalBlood2PeriodsML)
		fmt.Fprintf(&b, "%s\n\n", tp.Rationale)
	}

	if len(res.Sources) > 0 {
		fmt.Fprintf(&b, "## Data sources\n\n")
		for _, src := range res.Sources {
			if strings.HasPrefix(src.URL, "http") {
				fmt.Fprintf(&b, "- %s — %s\n", src.Name, src.URL)
			} else {
				fmt.Fprintf(&b, "- %s\n", src.Name)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
