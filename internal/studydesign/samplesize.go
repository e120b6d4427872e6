package studydesign

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultPower = 0.80
	DefaultAlpha = 0.05

	// MinSubjects is the regulatory floor on the total crossover sample.
	MinSubjects = 12

	// Dropout and screen-failure allowances applied on top of the
	// power-driven evaluable count.
	DropoutPct    = 15.0
	ScreenFailPct = 20.0

	// Replicated designs need fewer subjects for the same power because each
	// subject contributes twice per treatment.
	replicatedFraction = 0.75

	maxSubjectsSearch = 600
)

const (
	MethodNoncentralT  = "noncentral_t"
	MethodNormalApprox = "normal_approx"
)

type SampleSizeInput struct {
	CVPct  float64
	Power  float64
	Alpha  float64
	Theta  float64
	Design DesignType
	IsNTI  bool
}

type SampleSizeResult struct {
	NPerGroup     int        `json:"n_per_group"`
	NTotal        int        `json:"n_total"`
	NEvaluable    int        `json:"n_evaluable"`
	NToScreen     int        `json:"n_to_screen"`
	CVUsed        float64    `json:"cv_used"`
	PowerUsed     float64    `json:"power_used"`
	AlphaUsed     float64    `json:"alpha_used"`
	ThetaUsed     float64    `json:"theta_used"`
	DesignUsed    DesignType `json:"design_used"`
	IsNTI         bool       `json:"is_nti"`
	DropoutPct    float64    `json:"dropout_pct"`
	ScreenFailPct float64    `json:"screen_fail_pct"`
	Method        string     `json:"method"`
	FormulaNote   string     `json:"formula_note"`
}

// CalcSampleSize sizes a two-one-sided-tests bioequivalence study. The
// evaluable count comes from an iterative power search over the noncentral
// t distribution; enrollment and screening counts add the dropout and
// screen-failure allowances, each rounded up to an even total.
func CalcSampleSize(in SampleSizeInput) (SampleSizeResult, error) {
	if in.CVPct <= 0 {
		return SampleSizeResult{}, fmt.Errorf("cv must be positive, got %.2f", in.CVPct)
	}
	if in.Power == 0 {
		in.Power = DefaultPower
	}
	if in.Alpha == 0 {
		in.Alpha = DefaultAlpha
	}
	if in.Theta == 0 {
		in.Theta = ThetaStandard
	}
	if in.Power <= 0 || in.Power >= 1 {
		return SampleSizeResult{}, fmt.Errorf("power must be in (0,1), got %.2f", in.Power)
	}
	if in.Alpha <= 0 || in.Alpha >= 0.5 {
		return SampleSizeResult{}, fmt.Errorf("alpha must be in (0,0.5), got %.3f", in.Alpha)
	}
	if in.Design == "" {
		in.Design = Design2x2
	}

	cv := in.CVPct / 100.0
	sigmaW2 := math.Log(1 + cv*cv)
	delta := math.Log(in.Theta)

	nEvaluable, method, achieved := powerSearch(sigmaW2, delta, in.Alpha, in.Power)

	if nEvaluable < MinSubjects {
		nEvaluable = MinSubjects
	}
	if in.Design == DesignReplicated {
		nEvaluable = int(math.Ceil(float64(nEvaluable) * replicatedFraction))
		if nEvaluable < MinSubjects {
			nEvaluable = MinSubjects
		}
	}

	nTotal := roundUpEven(int(math.Ceil(float64(nEvaluable) / (1 - DropoutPct/100))))
	nToScreen := roundUpEven(int(math.Ceil(float64(nTotal) / (1 - ScreenFailPct/100))))

	note := fmt.Sprintf(
		"sigma_w^2 = ln(1+CV^2) = %.5f, delta = ln(theta) = %.5f; TOST power %.3f at n=%d evaluable (%s); +%.0f%% dropout, +%.0f%% screen failures",
		sigmaW2, delta, achieved, nEvaluable, method, DropoutPct, ScreenFailPct)

	return SampleSizeResult{
		NPerGroup:     nTotal / 2,
		NTotal:        nTotal,
		NEvaluable:    nEvaluable,
		NToScreen:     nToScreen,
		CVUsed:        in.CVPct,
		PowerUsed:     in.Power,
		AlphaUsed:     in.Alpha,
		ThetaUsed:     in.Theta,
		DesignUsed:    in.Design,
		IsNTI:         in.IsNTI,
		DropoutPct:    DropoutPct,
		ScreenFailPct: ScreenFailPct,
		Method:        method,
		FormulaNote:   note,
	}, nil
}

// powerSearch walks subject counts from 6 upward until TOST power at a
// true ratio of 1 reaches the target. Each subject count is evaluated
// exactly; when the noncentral-t series fails to converge the whole search
// restarts on the closed-form normal approximation.
func powerSearch(sigmaW2, delta, alpha, target float64) (n int, method string, achieved float64) {
	for n = 6; n <= maxSubjectsSearch; n++ {
		df := float64(n - 2)
		se := math.Sqrt(2 * sigmaW2 / float64(n))
		tcrit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Quantile(1 - alpha)
		nc := delta / se

		upper, ok1 := noncentralTCDF(tcrit, df, nc)
		lower, ok2 := noncentralTCDF(-tcrit, df, nc)
		if !ok1 || !ok2 {
			return normalApproxSize(sigmaW2, delta, alpha, target)
		}
		power := 1 - upper + lower
		if power >= target {
			return n, MethodNoncentralT, power
		}
	}
	return maxSubjectsSearch, MethodNoncentralT, target
}

// normalApproxSize is the closed-form fallback:
// n = 2 (z_{1-alpha} + z_{power})^2 sigma_w^2 / delta^2.
func normalApproxSize(sigmaW2, delta, alpha, target float64) (int, string, float64) {
	zAlpha := stdNormal.Quantile(1 - alpha)
	zBeta := stdNormal.Quantile(target)
	raw := 2 * (zAlpha + zBeta) * (zAlpha + zBeta) * sigmaW2 / (delta * delta)
	return int(math.Ceil(raw)), MethodNormalApprox, target
}

func roundUpEven(n int) int {
	if n%2 != 0 {
		return n + 1
	}
	return n
}
