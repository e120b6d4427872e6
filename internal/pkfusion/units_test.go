package pkfusion

import (
	"math"
	"testing"
)

func TestNormalizeUnit(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ng/mL", "ng/ml"},
		{"µg/mL", "ug/ml"},
		{"μg/L", "ug/l"},
		{"ng·h/mL", "ng*h/ml"},
		{"ng x h / mL", "ng*h/ml"},
		{"ug×h/ml", "ug*h/ml"},
		{"Hr", "h"},
		{"hours", "h"},
		{" mg / L ", "mg/l"},
	}
	for _, c := range cases {
		if got := NormalizeUnit(c.in); got != c.want {
			t.Errorf("NormalizeUnit(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestConvertCmax(t *testing.T) {
	cases := []struct {
		value float64
		unit  string
		want  float64
		ok    bool
		molar bool
	}{
		{120, "ng/mL", 120, true, false},
		{0.12, "µg/mL", 120, true, false},
		{0.12, "mg/L", 120, true, false},
		{2, "mg/mL", 2e6, true, false},
		{500, "ng/L", 0.5, true, false},
		{5.2, "nmol/L", 0, false, true},
		{1.1, "µM", 0, false, true},
		{3, "furlongs", 0, false, false},
	}
	for _, c := range cases {
		got, ok, molar := ConvertCmax(c.value, c.unit)
		if ok != c.ok || molar != c.molar {
			t.Errorf("ConvertCmax(%g, %q): ok=%t molar=%t, want ok=%t molar=%t",
				c.value, c.unit, ok, molar, c.ok, c.molar)
			continue
		}
		if ok && math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ConvertCmax(%g, %q) = %g, want %g", c.value, c.unit, got, c.want)
		}
	}
}

func TestConvertAUC(t *testing.T) {
	cases := []struct {
		value float64
		unit  string
		want  float64
		ok    bool
	}{
		{1200, "ng·h/mL", 1200, true},
		{1.2, "µg·h/mL", 1200, true},
		{1.2, "mg·h/L", 1200, true},
		{1200, "µg·h/L", 1200, true},
		{60, "ng·min/mL", 1, true},
		{10, "parsnips", 0, false},
	}
	for _, c := range cases {
		got, ok := ConvertAUC(c.value, c.unit)
		if ok != c.ok {
			t.Errorf("ConvertAUC(%g, %q): ok=%t, want %t", c.value, c.unit, ok, c.ok)
			continue
		}
		if ok && math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ConvertAUC(%g, %q) = %g, want %g", c.value, c.unit, got, c.want)
		}
	}
}

func TestConvertToHours(t *testing.T) {
	if v, ok := ConvertToHours(90, "min"); !ok || v != 1.5 {
		t.Errorf("90 min = %g h ok=%t, want 1.5", v, ok)
	}
	if v, ok := ConvertToHours(2, "h"); !ok || v != 2 {
		t.Errorf("2 h = %g ok=%t", v, ok)
	}
	if _, ok := ConvertToHours(1, "fortnight"); ok {
		t.Error("unknown time unit must not convert")
	}
}

func TestIsPercentUnit(t *testing.T) {
	if !IsPercentUnit("%") || !IsPercentUnit(" % ") {
		t.Error("percent sign must qualify")
	}
	if IsPercentUnit("ng/mL") {
		t.Error("mass unit must not qualify")
	}
}

func TestPKParamsSetFillsOnlyEmptySlots(t *testing.T) {
	var p PKParams
	first := &PKValue{Value: 120, Unit: "ng/mL", Source: "edrug3d"}
	second := &PKValue{Value: 300, Unit: "ng/mL", Source: "osp"}

	if !p.Set(SlotCmax, first) {
		t.Fatal("first write must succeed")
	}
	if p.Set(SlotCmax, second) {
		t.Error("second write must be refused")
	}
	if got := p.Get(SlotCmax); got.Value != 120 || got.Source != "edrug3d" {
		t.Errorf("slot holds %+v, want the first writer", got)
	}
	if len(p.Filled()) != 1 || len(p.Missing()) != len(SlotNames)-1 {
		t.Errorf("Filled=%v Missing=%v", p.Filled(), p.Missing())
	}
}
