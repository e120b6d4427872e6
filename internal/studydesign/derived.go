package studydesign

import "math"

// DesignLayout describes the administrative shape of a design.
type DesignLayout struct {
	NPeriods  int      `json:"n_periods"`
	NGroups   int      `json:"n_groups"`
	Ratio     string   `json:"ratio"`
	Sequences []string `json:"sequences"`
	NWashouts int      `json:"n_washouts"`
	NameFull  string   `json:"name_full"`
}

var layouts = map[DesignType]DesignLayout{
	Design2x2: {
		NPeriods: 2, NGroups: 2, Ratio: "1:1",
		Sequences: []string{"TR", "RT"}, NWashouts: 1,
		NameFull: "open-label randomized two-period crossover study in two groups with a single dose",
	},
	DesignReplicated: {
		NPeriods: 4, NGroups: 2, Ratio: "1:1",
		Sequences: []string{"TRTR", "RTRT"}, NWashouts: 3,
		NameFull: "open-label randomized four-period replicated crossover study in two groups",
	},
	DesignParallel: {
		NPeriods: 1, NGroups: 2, Ratio: "1:1",
		Sequences: []string{"T", "R"}, NWashouts: 0,
		NameFull: "open-label randomized parallel-group study",
	},
}

// LayoutFor returns the layout for a design, defaulting to the standard
// crossover for unknown values.
func LayoutFor(d DesignType) DesignLayout {
	if l, ok := layouts[d]; ok {
		return l
	}
	return layouts[Design2x2]
}

// WashoutDays is the between-period washout: five half-lives rounded up to
// whole days.
func WashoutDays(tHalfH float64) int {
	if tHalfH <= 0 {
		return 0
	}
	return int(math.Ceil(5 * tHalfH / 24))
}

// VomitCriterionHours is the post-dose window in which vomiting excludes a
// subject's period data: twice the expected Tmax.
func VomitCriterionHours(tmaxH float64) float64 {
	if tmaxH <= 0 {
		return 0
	}
	return math.Round(2*tmaxH*10) / 10
}

// PKPeriodDays is the in-clinic stay per period: the sampling window in
// whole days plus admission and discharge days.
func PKPeriodDays(samplingEndH float64) int {
	if samplingEndH <= 0 {
		samplingEndH = 24
	}
	return int(math.Ceil(samplingEndH/24)) + 2
}

// StudyDurationDays estimates per-subject participation: 14 days of
// screening, the hospitalization periods, the washouts between them, and a
// 7-day follow-up. Returns 0 when a multi-period design lacks a washout
// estimate.
func StudyDurationDays(layout DesignLayout, pkPeriodDays, washoutDays int) int {
	if layout.NPeriods == 1 {
		return 14 + pkPeriodDays + 7
	}
	if washoutDays <= 0 {
		return 0
	}
	return 14 + layout.NPeriods*pkPeriodDays + layout.NWashouts*washoutDays + 7
}
