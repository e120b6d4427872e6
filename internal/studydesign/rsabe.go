package studydesign

import "math"

// RSABEScalingK is the regulatory scaling constant applied to swR.
const RSABEScalingK = 0.760

type RSABEResult struct {
	LowerPct float64 `json:"lower_pct"`
	UpperPct float64 `json:"upper_pct"`
	SwR      float64 `json:"sw_r"`
	K        float64 `json:"k"`
	CVPct    float64 `json:"cv_pct"`
}

// CalcRSABELimits computes reference-scaled acceptance limits for Cmax.
// Scaling applies only above 30% within-subject CV; below that the result
// is nil and the fixed 80.00–125.00% limits stand.
func CalcRSABELimits(cvPct float64) *RSABEResult {
	if cvPct <= 30 {
		return nil
	}
	cv := cvPct / 100.0
	swR := math.Sqrt(math.Log(1 + cv*cv))
	upper := math.Exp(RSABEScalingK * swR)
	lower := math.Exp(-RSABEScalingK * swR)
	return &RSABEResult{
		LowerPct: round2(lower * 100),
		UpperPct: round2(upper * 100),
		SwR:      round4(swR),
		K:        RSABEScalingK,
		CVPct:    cvPct,
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
