// Package report renders measured runs as txt, json, csv, xlsx or Prometheus
// text exposition.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"math"
	"strings"

	"perfstat/internal/metrics"
	"perfstat/internal/perf"
	"perfstat/internal/session"
)

const (
	FormatTxt  = "txt"
	FormatJson = "json"
	FormatCsv  = "csv"
	FormatXlsx = "xlsx"
	FormatProm = "prom"
	FormatAll  = "all"
)

var FormatOptions = []string{FormatTxt, FormatJson, FormatCsv, FormatXlsx, FormatProm}

// Run is one measured execution and the metrics derived from it.
type Run struct {
	Result  *session.Result
	Metrics []metrics.Value
}

// Report holds every run of one command.
type Report struct {
	Command []string
	Runs    []Run
}

// EventSummary aggregates one event over all runs.
type EventSummary struct {
	Kind   perf.EventKind
	Mean   float64
	StdDev float64
	// Utilization is the mean utilization, time events only.
	Utilization float64
}

// RelativeStdDev is the standard deviation as a percentage of the mean.
func (s EventSummary) RelativeStdDev() float64 {
	if s.Mean == 0 {
		return 0
	}
	return 100 * s.StdDev / s.Mean
}

// Create renders rep in format. It returns an error for an unknown format or
// a report without runs.
func Create(format string, rep Report) (out []byte, err error) {
	if len(rep.Runs) == 0 {
		return nil, fmt.Errorf("report for '%s' has no runs", rep.CommandLine())
	}
	for i, run := range rep.Runs {
		if run.Result == nil {
			return nil, fmt.Errorf("run %d has no result", i+1)
		}
	}
	switch format {
	case FormatTxt:
		return createTextReport(rep)
	case FormatJson:
		return createJsonReport(rep)
	case FormatCsv:
		return createCsvReport(rep)
	case FormatXlsx:
		return createXlsxReport(rep)
	case FormatProm:
		return createPromReport(rep)
	}
	return nil, fmt.Errorf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format)
}

// CommandLine is the command as typed.
func (r Report) CommandLine() string {
	return strings.Join(r.Command, " ")
}

// Kinds returns the events of the first run in order.
func (r Report) Kinds() []perf.EventKind {
	var kinds []perf.EventKind
	if len(r.Runs) == 0 {
		return kinds
	}
	for _, c := range r.Runs[0].Result.Counters {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

// Summary returns mean and standard deviation per event over all runs.
func (r Report) Summary() []EventSummary {
	var summaries []EventSummary
	for _, kind := range r.Kinds() {
		var values, utilization []float64
		for _, run := range r.Runs {
			if c, ok := run.Result.Counter(kind); ok {
				values = append(values, float64(c.Delta()))
				utilization = append(utilization, c.Utilization)
			}
		}
		mean, stddev := meanStdDev(values)
		util, _ := meanStdDev(utilization)
		summaries = append(summaries, EventSummary{Kind: kind, Mean: mean, StdDev: stddev, Utilization: util})
	}
	return summaries
}

// MeanElapsed returns the mean and standard deviation of the elapsed time in
// seconds.
func (r Report) MeanElapsed() (float64, float64) {
	values := make([]float64, 0, len(r.Runs))
	for _, run := range r.Runs {
		values = append(values, run.Result.Elapsed.Seconds())
	}
	return meanStdDev(values)
}

// MeanMetrics averages each derived metric over the runs that produced it,
// in first appearance order.
func (r Report) MeanMetrics() []metrics.Value {
	var order []string
	byName := map[string][]metrics.Value{}
	for _, run := range r.Runs {
		for _, v := range run.Metrics {
			if _, ok := byName[v.Name]; !ok {
				order = append(order, v.Name)
			}
			byName[v.Name] = append(byName[v.Name], v)
		}
	}
	means := make([]metrics.Value, 0, len(order))
	for _, name := range order {
		vals := byName[name]
		var sum float64
		for _, v := range vals {
			sum += v.Value
		}
		mean := vals[0]
		mean.Value = sum / float64(len(vals))
		means = append(means, mean)
	}
	return means
}

// meanStdDev returns the mean and sample standard deviation of values
func meanStdDev(values []float64) (mean float64, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)-1))
}
