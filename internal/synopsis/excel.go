package synopsis

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/joelkehle/bioeq/internal/pkfusion"
)

// BuildWorkbook packs the fused parameters, the sampling schedule and the
// sample-size calculation into an xlsx workbook, one sheet per concern.
func BuildWorkbook(res Result) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeParamsSheet(f, res); err != nil {
		return nil, err
	}
	if err := writeScheduleSheet(f, res); err != nil {
		return nil, err
	}
	if err := writeSampleSizeSheet(f, res); err != nil {
		return nil, err
	}

	// Drop the default sheet and land on the parameters.
	if idx, err := f.GetSheetIndex(sheetParams); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteWorkbook renders the workbook to w.
func WriteWorkbook(w io.Writer, res Result) error {
	f, err := BuildWorkbook(res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// SaveWorkbook renders the workbook to path.
func SaveWorkbook(path string, res Result) error {
	f, err := BuildWorkbook(res)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

const (
	sheetParams     = "PK parameters"
	sheetSchedule   = "Sampling schedule"
	sheetSampleSize = "Sample size"
)

func writeParamsSheet(f *excelize.File, res Result) error {
	if _, err := f.NewSheet(sheetParams); err != nil {
		return err
	}
	if err := writeRow(f, sheetParams, 1, "Parameter", "Value", "Unit", "Source", "Raw text"); err != nil {
		return err
	}
	row := 2
	for _, name := range pkfusion.SlotNames {
		v := res.Fusion.Params.Get(name)
		label := pkfusion.SlotLabels[name]
		if v == nil {
			if err := writeRow(f, sheetParams, row, label, "not found", "", "", ""); err != nil {
				return err
			}
		} else {
			if err := writeRow(f, sheetParams, row, label, v.Value, v.Unit, v.Source, v.RawText); err != nil {
				return err
			}
		}
		row++
	}
	row++
	if err := writeRow(f, sheetParams, row, "Substance", res.Synopsis.INN); err != nil {
		return err
	}
	row++
	if err := writeRow(f, sheetParams, row, "Design", string(res.Derived.Design.Design)); err != nil {
		return err
	}
	row++
	if err := writeRow(f, sheetParams, row, "BE limits", res.Derived.Design.BELimitsText); err != nil {
		return err
	}
	row++
	if err := writeRow(f, sheetParams, row, "Washout, days", res.Derived.WashoutDays); err != nil {
		return err
	}
	row++
	if err := writeRow(f, sheetParams, row, "Study duration, days", res.Derived.StudyDurationDays); err != nil {
		return err
	}
	return nil
}

func writeScheduleSheet(f *excelize.File, res Result) error {
	if _, err := f.NewSheet(sheetSchedule); err != nil {
		return err
	}
	tp := res.Derived.Timepoints
	if tp == nil {
		return writeRow(f, sheetSchedule, 1, "No sampling schedule: Tmax or T1/2 unresolved")
	}
	if err := writeRow(f, sheetSchedule, 1, "#", "Time, h", "Volume, mL"); err != nil {
		return err
	}
	for i, t := range tp.TimepointsH {
		if err := writeRow(f, sheetSchedule, i+2, i+1, t, tp.BloodPerSampleML); err != nil {
			return err
		}
	}
	row := len(tp.TimepointsH) + 3
	if err := writeRow(f, sheetSchedule, row, "Samples per period", tp.NSamples); err != nil {
		return err
	}
	row++
	if err := writeRow(f, sheetSchedule, row, "Blood per period, mL", tp.TotalBloodPerPeriodML); err != nil {
		return err
	}
	row++
	if err := writeRow(f, sheetSchedule, row, "Blood per 2 periods, mL", tp.TotalBlood2PeriodsML); err != nil {
		return err
	}
	row++
	return writeRow(f, sheetSchedule, row, "Rationale", tp.Rationale)
}

func writeSampleSizeSheet(f *excelize.File, res Result) error {
	if _, err := f.NewSheet(sheetSampleSize); err != nil {
		return err
	}
	ss := res.Derived.SampleSize
	if ss == nil {
		if err := writeRow(f, sheetSampleSize, 1, "CVintra unknown: regulatory minimum of 12 evaluable subjects applies"); err != nil {
			return err
		}
		return nil
	}
	rows := []struct {
		label string
		value any
	}{
		{"CVintra, %", ss.CVUsed},
		{"Design", string(ss.DesignUsed)},
		{"Theta", ss.ThetaUsed},
		{"Alpha", ss.AlphaUsed},
		{"Power", ss.PowerUsed},
		{"Method", ss.Method},
		{"N evaluable", ss.NEvaluable},
		{"N per sequence", ss.NPerGroup},
		{"N enrolled (dropout " + fmt.Sprintf("%.0f%%", ss.DropoutPct) + ")", ss.NTotal},
		{"N to screen (screen failure " + fmt.Sprintf("%.0f%%", ss.ScreenFailPct) + ")", ss.NToScreen},
	}
	for i, r := range rows {
		if err := writeRow(f, sheetSampleSize, i+1, r.label, r.value); err != nil {
			return err
		}
	}
	if rs := res.Derived.RSABE; rs != nil {
		base := len(rows) + 2
		if err := writeRow(f, sheetSampleSize, base, "RSABE swR", rs.SwR); err != nil {
			return err
		}
		if err := writeRow(f, sheetSampleSize, base+1, "RSABE k", rs.K); err != nil {
			return err
		}
		if err := writeRow(f, sheetSampleSize, base+2, "Cmax limits, %",
			fmt.Sprintf("%.2f – %.2f", rs.LowerPct, rs.UpperPct)); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}
