package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	XlsxCountersSheetName = "Counters"
	XlsxMetricsSheetName  = "Metrics"
)

func cellName(col int, row int) (name string) {
	columnName, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return
	}
	name, err = excelize.JoinCellName(columnName, row)
	if err != nil {
		return
	}
	return
}

// renderXlsxRow writes values across row starting in column A
func renderXlsxRow(f *excelize.File, sheetName string, row int, values ...any) {
	for i, v := range values {
		_ = f.SetCellValue(sheetName, cellName(i+1, row), v)
	}
}

func renderXlsxHeader(f *excelize.File, sheetName string, row int, names ...any) {
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
	})
	renderXlsxRow(f, sheetName, row, names...)
	_ = f.SetCellStyle(sheetName, cellName(1, row), cellName(len(names), row), headerStyle)
}

func createXlsxReport(rep Report) (out []byte, err error) {
	f := excelize.NewFile()
	defer f.Close()
	sheetName := XlsxCountersSheetName
	_ = f.SetSheetName("Sheet1", sheetName)
	_ = f.SetColWidth(sheetName, "A", "A", 10)
	_ = f.SetColWidth(sheetName, "B", "B", 25)
	_ = f.SetColWidth(sheetName, "C", "G", 18)
	row := 1
	renderXlsxRow(f, sheetName, row, "Command", rep.CommandLine())
	row += 2
	renderXlsxHeader(f, sheetName, row, "Run", "Event", "Count", "Unit", "Elapsed (ns)", "Utilization", "Exit Code")
	row++
	for i, run := range rep.Runs {
		r := run.Result
		for _, c := range r.Counters {
			var utilization any
			if c.Kind.IsTime() {
				utilization = c.Utilization
			}
			renderXlsxRow(f, sheetName, row, i+1, c.Kind.String(), c.Delta(), c.Kind.Unit(), r.Elapsed.Nanoseconds(), utilization, r.ExitCode)
			row++
		}
	}
	if len(rep.Runs) > 1 {
		row++
		renderXlsxHeader(f, sheetName, row, "Summary", "Event", "Mean", "Std Dev", "+- %")
		row++
		for _, s := range rep.Summary() {
			renderXlsxRow(f, sheetName, row, "", s.Kind.String(), s.Mean, s.StdDev, s.RelativeStdDev())
			row++
		}
	}
	if means := rep.MeanMetrics(); len(means) > 0 {
		sheetName := XlsxMetricsSheetName
		if _, err = f.NewSheet(sheetName); err != nil {
			return nil, fmt.Errorf("failed to add metrics sheet: %w", err)
		}
		_ = f.SetColWidth(sheetName, "A", "C", 25)
		renderXlsxHeader(f, sheetName, 1, "Metric", "Value", "Unit")
		for i, m := range means {
			renderXlsxRow(f, sheetName, i+2, m.Name, m.Value, m.Unit)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx report to buffer: %v", err)
	}
	out = buf.Bytes()
	return
}
