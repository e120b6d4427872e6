package studydesign

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

const (
	// MaxSamplingHours caps the sampling window per regulation.
	MaxSamplingHours = 72.0

	BloodPerSampleML = 5.0
	DeadVolumeML     = 0.5
)

type TimepointSchedule struct {
	TimepointsH           []float64 `json:"timepoints_h"`
	NSamples              int       `json:"n_samples"`
	EndTimeH              float64   `json:"end_time_h"`
	BloodPerSampleML      float64   `json:"blood_per_sample_ml"`
	TotalBloodPerPeriodML float64   `json:"total_blood_per_period_ml"`
	TotalBlood2PeriodsML  float64   `json:"total_blood_2periods_ml"`
	ScheduleText          string    `json:"schedule_text"`
	Rationale             string    `json:"rationale"`
}

// GenerateTimepoints builds a blood sampling schedule from Tmax and T1/2.
// The window runs to min(max(5*T1/2, 3*Tmax, 24), cap): long enough that
// AUC(0-t) covers at least 80% of AUC(0-inf), never past the 72 h cap.
// Sampling is densest around Tmax so the observed Cmax is never the first
// point on the curve, and the terminal phase keeps at least three points
// for the elimination-rate estimate.
func GenerateTimepoints(tmaxH, tHalfH, maxDurationH float64) (TimepointSchedule, error) {
	if tmaxH <= 0 || tHalfH <= 0 {
		return TimepointSchedule{}, fmt.Errorf("tmax and t_half must be positive, got %.2f and %.2f", tmaxH, tHalfH)
	}
	if maxDurationH <= 0 || maxDurationH > MaxSamplingHours {
		maxDurationH = MaxSamplingHours
	}

	endTime := math.Min(math.Max(math.Max(5*tHalfH, 3*tmaxH), 24.0), maxDurationH)

	seen := map[float64]bool{}
	var points []float64
	add := func(t float64) {
		t = math.Round(t*10000) / 10000
		if t <= endTime+0.01 && !seen[t] {
			seen[t] = true
			points = append(points, t)
		}
	}

	add(0)
	for _, t := range preTmaxPoints(tmaxH) {
		add(t)
	}
	for _, t := range aroundTmaxPoints(tmaxH) {
		add(t)
	}
	for _, t := range postPeakPoints(tmaxH, tHalfH, endTime) {
		add(t)
	}
	for _, t := range terminalPoints(endTime) {
		add(t)
	}
	sort.Float64s(points)

	n := len(points)
	perPeriod := float64(n) * (BloodPerSampleML + DeadVolumeML)
	return TimepointSchedule{
		TimepointsH:           points,
		NSamples:              n,
		EndTimeH:              endTime,
		BloodPerSampleML:      BloodPerSampleML,
		TotalBloodPerPeriodML: perPeriod,
		TotalBlood2PeriodsML:  perPeriod * 2,
		ScheduleText:          formatSchedule(points),
		Rationale: fmt.Sprintf(
			"Schedule of %d points over %.0f h. Tmax ~ %g h: dense sampling in the first %.1f h pins down Cmax. T1/2 ~ %g h: sampling to %.0f h keeps AUC(0-t) at >= 80%% of AUC(0-inf). Terminal phase keeps >= 3 points for the kel estimate.",
			n, endTime, tmaxH, tmaxH*2, tHalfH, endTime),
	}, nil
}

// preTmaxPoints covers the absorption phase; everything stays below
// 0.9*Tmax so the peak itself is bracketed, not led.
func preTmaxPoints(tmaxH float64) []float64 {
	var pts []float64
	switch {
	case tmaxH <= 1.0:
		for _, m := range []float64{5, 10, 15, 20, 30, 45} {
			if t := m / 60.0; t < tmaxH*0.9 {
				pts = append(pts, t)
			}
		}
	case tmaxH <= 3.0:
		for _, m := range []float64{15, 30, 45} {
			if t := m / 60.0; t < tmaxH*0.9 {
				pts = append(pts, t)
			}
		}
		for _, h := range []float64{1.0, 1.5, 2.0} {
			if h < tmaxH*0.9 {
				pts = append(pts, h)
			}
		}
	default:
		for _, h := range []float64{0.5, 1.0, 1.5, 2.0, 3.0, 4.0} {
			if h < tmaxH*0.9 {
				pts = append(pts, h)
			}
		}
	}
	return pts
}

func aroundTmaxPoints(tmaxH float64) []float64 {
	step := 1.0
	switch {
	case tmaxH <= 1.0:
		step = 0.25
	case tmaxH <= 4.0:
		step = 0.5
	}
	var pts []float64
	for _, offset := range []float64{-2 * step, -step, 0, step, 2 * step} {
		if t := tmaxH + offset; t > 0 {
			pts = append(pts, t)
		}
	}
	return pts
}

func postPeakPoints(tmaxH, tHalfH, endTime float64) []float64 {
	start := tmaxH * 1.5
	if start < tmaxH+1 {
		start = tmaxH + 1
	}
	var steps []float64
	switch {
	case tHalfH <= 4:
		steps = []float64{1, 2, 3, 4, 6, 8}
	case tHalfH <= 12:
		steps = []float64{2, 4, 6, 8, 10, 12}
	default:
		steps = []float64{2, 4, 8, 12, 16, 24}
	}
	var pts []float64
	for _, s := range steps {
		if t := tmaxH + s; t >= start && t <= endTime {
			pts = append(pts, math.Round(t*100)/100)
		}
	}
	return pts
}

func terminalPoints(endTime float64) []float64 {
	var candidates []float64
	switch {
	case endTime <= 24:
		candidates = []float64{12, 16, 20, 24}
	case endTime <= 48:
		candidates = []float64{12, 16, 24, 36, 48}
	default:
		candidates = []float64{12, 16, 24, 36, 48, 60, 72}
	}
	var pts []float64
	for _, t := range candidates {
		if t <= endTime {
			pts = append(pts, t)
		}
	}
	return pts
}

func formatSchedule(points []float64) string {
	parts := make([]string, 0, len(points))
	for _, t := range points {
		switch {
		case t == 0:
			parts = append(parts, "0 (pre-dose)")
		case t < 1:
			parts = append(parts, fmt.Sprintf("%.0f min", t*60))
		case t == math.Trunc(t):
			parts = append(parts, fmt.Sprintf("%d h", int(t)))
		default:
			parts = append(parts, fmt.Sprintf("%.2g h", t))
		}
	}
	return strings.Join(parts, ", ")
}
