package pkfusion

import "strings"

// All unit conversion in the repository lives here. Sources hand raw
// values in, slots come out in the canonical units: Cmax in ng/mL, AUC in
// ng·h/mL, times in hours, CV in percent.

// NormalizeUnit collapses the spelling variants seen across catalogs into
// one comparable key: lowercase, micro sign to "u", any of "·", "×", "x",
// "*" to "*", whitespace removed.
func NormalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	r := strings.NewReplacer(
		"µ", "u", "μ", "u",
		"·", "*", "×", "*", "x", "*",
		" ", "", "\t", "",
		"hours", "h", "hour", "h", "hrs", "h", "hr", "h",
	)
	return r.Replace(u)
}

var cmaxMassFactors = map[string]float64{
	"ng/ml": 1,
	"ug/ml": 1000,
	"mg/l":  1000,
	"mg/ml": 1e6,
	"g/l":   1e6,
	"ng/l":  0.001,
	"pg/ml": 0.001,
	"ug/l":  1,
}

var cmaxMolarUnits = map[string]bool{
	"nm":      true,
	"um":      true,
	"nmol/l":  true,
	"umol/l":  true,
	"mmol/l":  true,
	"pmol/ml": true,
}

// ConvertCmax converts a concentration to ng/mL. A molar unit yields
// (0, false, true): the value cannot join the numeric pool without a
// molecular weight, but the caller may surface it to the oracle.
func ConvertCmax(value float64, unit string) (ngPerML float64, ok bool, molar bool) {
	u := NormalizeUnit(unit)
	if cmaxMolarUnits[u] {
		return 0, false, true
	}
	f, found := cmaxMassFactors[u]
	if !found {
		return 0, false, false
	}
	return value * f, true, false
}

var aucFactors = map[string]float64{
	"ng*h/ml":   1,
	"ug*h/ml":   1000,
	"mg*h/l":    1000,
	"ug*h/l":    1,
	"mg*h/ml":   1e6,
	"ng*min/ml": 1.0 / 60.0,
	"ug*min/ml": 1000.0 / 60.0,
}

// ConvertAUC converts an exposure value to ng·h/mL.
func ConvertAUC(value float64, unit string) (float64, bool) {
	f, found := aucFactors[NormalizeUnit(unit)]
	if !found {
		return 0, false
	}
	return value * f, true
}

var hourFactors = map[string]float64{
	"h":   1,
	"min": 1.0 / 60.0,
	"s":   1.0 / 3600.0,
	"d":   24,
	"day": 24,
}

// ConvertToHours converts a duration value to hours.
func ConvertToHours(value float64, unit string) (float64, bool) {
	f, found := hourFactors[NormalizeUnit(unit)]
	if !found {
		return 0, false
	}
	return value * f, true
}

// IsPercentUnit reports whether a CV unit is an acceptable percent spelling.
func IsPercentUnit(unit string) bool {
	switch NormalizeUnit(unit) {
	case "%", "pct", "percent", "":
		return true
	}
	return false
}
