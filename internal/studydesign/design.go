package studydesign

import "fmt"

type DesignType string

const (
	Design2x2        DesignType = "2x2_crossover"
	DesignReplicated DesignType = "replicated_crossover"
	DesignParallel   DesignType = "parallel"
)

const (
	// ThetaStandard is the upper acceptance bound for ordinary products.
	ThetaStandard = 1.25
	// ThetaNarrow is the upper acceptance bound for narrow-therapeutic-index
	// products (1/0.90).
	ThetaNarrow = 1.1111

	// HighVariabilityCVPct is the within-subject CV above which a product is
	// treated as highly variable.
	HighVariabilityCVPct = 30.0
)

// DesignFlags carries the regulatory signals that steer design selection.
type DesignFlags struct {
	IsNTI           bool
	IsHVD           bool
	IsReplicatedFDA bool
}

type DesignResult struct {
	Design       DesignType `json:"design"`
	Theta        float64    `json:"theta"`
	BELimitsText string     `json:"be_limits"`
	Rationale    string     `json:"rationale"`
	IsNTI        bool       `json:"is_nti"`
}

// DetermineDesign selects the study layout and acceptance bounds. A narrow
// therapeutic index dominates every other signal: such products stay on a
// standard crossover with tightened limits no matter how variable they are.
// A forced design overrides the layout only; the theta rule still applies.
func DetermineDesign(cvPct float64, flags DesignFlags, forced DesignType) DesignResult {
	res := DesignResult{IsNTI: flags.IsNTI}

	switch {
	case flags.IsNTI:
		res.Design = Design2x2
		res.Theta = ThetaNarrow
		res.BELimitsText = "90.00–111.11%"
		res.Rationale = "Narrow therapeutic index: standard crossover with tightened acceptance limits 90.00–111.11%."
	case flags.IsHVD || flags.IsReplicatedFDA || cvPct >= HighVariabilityCVPct:
		res.Design = DesignReplicated
		res.Theta = ThetaStandard
		res.BELimitsText = "80.00–125.00% (Cmax widening permissible with justification)"
		res.Rationale = fmt.Sprintf("Highly variable product (CVintra %.1f%%, hvd=%t, fda_replicated=%t): replicated crossover enabling reference scaling.",
			cvPct, flags.IsHVD, flags.IsReplicatedFDA)
	default:
		res.Design = Design2x2
		res.Theta = ThetaStandard
		res.BELimitsText = "80.00–125.00%"
		res.Rationale = fmt.Sprintf("Ordinary variability (CVintra %.1f%%): standard two-period crossover with limits 80.00–125.00%%.", cvPct)
	}

	if forced != "" && forced != res.Design {
		res.Rationale += fmt.Sprintf(" Design forced to %s by request; acceptance limits unchanged.", forced)
		res.Design = forced
	}
	return res
}
