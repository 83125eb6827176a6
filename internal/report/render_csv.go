package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

var csvHeader = []string{"run", "event", "count", "unit", "elapsed_ns", "utilization"}

// createCsvReport writes one row per run and event, then one row per derived
// metric with the metric name in the event column
func createCsvReport(rep Report) (out []byte, err error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err = w.Write(csvHeader); err != nil {
		return
	}
	for i, run := range rep.Runs {
		runID := strconv.Itoa(i + 1)
		elapsed := strconv.FormatInt(run.Result.Elapsed.Nanoseconds(), 10)
		for _, c := range run.Result.Counters {
			utilization := ""
			if c.Kind.IsTime() {
				utilization = strconv.FormatFloat(c.Utilization, 'f', 6, 64)
			}
			if err = w.Write([]string{runID, c.Kind.String(), strconv.FormatInt(c.Delta(), 10), c.Kind.Unit(), elapsed, utilization}); err != nil {
				return
			}
		}
		for _, m := range run.Metrics {
			if err = w.Write([]string{runID, m.Name, strconv.FormatFloat(m.Value, 'f', 6, 64), m.Unit, elapsed, ""}); err != nil {
				return
			}
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return
	}
	out = buf.Bytes()
	return
}
