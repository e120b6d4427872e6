package synopsis

import (
	"context"
	"strings"
	"testing"
)

func TestBuildWorkbookSheets(t *testing.T) {
	res := sampleResult(t)
	f, err := BuildWorkbook(res)
	if err != nil {
		t.Fatalf("BuildWorkbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	want := []string{sheetParams, sheetSchedule, sheetSampleSize}
	for _, name := range want {
		found := false
		for _, s := range sheets {
			if s == name {
				found = true
			}
		}
		if !found {
			t.Errorf("sheet %q missing, have %v", name, sheets)
		}
	}
	for _, s := range sheets {
		if s == "Sheet1" {
			t.Error("default sheet not removed")
		}
	}

	if v, _ := f.GetCellValue(sheetParams, "A1"); v != "Parameter" {
		t.Errorf("params header = %q", v)
	}
	// T1/2 is the fourth slot.
	if v, _ := f.GetCellValue(sheetParams, "A5"); !strings.Contains(v, "T1/2") {
		t.Errorf("row 5 label = %q", v)
	}
	if v, _ := f.GetCellValue(sheetParams, "B5"); v != "3.5" {
		t.Errorf("T1/2 value = %q", v)
	}
	if v, _ := f.GetCellValue(sheetSchedule, "A1"); v != "#" {
		t.Errorf("schedule header = %q", v)
	}
	if v, _ := f.GetCellValue(sheetSampleSize, "A1"); v != "CVintra, %" {
		t.Errorf("sample size first label = %q", v)
	}
	if v, _ := f.GetCellValue(sheetSampleSize, "B1"); v != "25" {
		t.Errorf("CV cell = %q", v)
	}
}

func TestBuildWorkbookDegradedInputs(t *testing.T) {
	inp := sampleInput()
	inp.Fusion = fusionWith(0, 0, 0)
	g := NewGenerator(nil)
	res, err := g.Generate(context.Background(), inp)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	f, err := BuildWorkbook(res)
	if err != nil {
		t.Fatalf("BuildWorkbook: %v", err)
	}
	defer f.Close()

	if v, _ := f.GetCellValue(sheetParams, "B2"); v != "not found" {
		t.Errorf("empty slot cell = %q", v)
	}
	if v, _ := f.GetCellValue(sheetSchedule, "A1"); !strings.Contains(v, "No sampling schedule") {
		t.Errorf("schedule placeholder = %q", v)
	}
	if v, _ := f.GetCellValue(sheetSampleSize, "A1"); !strings.Contains(v, "regulatory minimum") {
		t.Errorf("sample size placeholder = %q", v)
	}
}
