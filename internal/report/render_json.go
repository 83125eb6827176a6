package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "encoding/json"

type jsonCounter struct {
	Event       string  `json:"event"`
	Count       int64   `json:"count"`
	Unit        string  `json:"unit,omitempty"`
	Start       int64   `json:"start"`
	Stop        int64   `json:"stop"`
	Utilization float64 `json:"utilization,omitempty"`
}

type jsonMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type jsonRun struct {
	Pid       int           `json:"pid"`
	ExitCode  int           `json:"exit_code"`
	Signal    string        `json:"signal,omitempty"`
	StartedAt string        `json:"started_at"`
	ElapsedNs int64         `json:"elapsed_ns"`
	Counters  []jsonCounter `json:"counters"`
	Metrics   []jsonMetric  `json:"metrics,omitempty"`
}

type jsonSummary struct {
	Event          string  `json:"event"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"stddev"`
	RelativeStdDev float64 `json:"relative_stddev_pct"`
}

type jsonReport struct {
	Command []string      `json:"command"`
	Runs    []jsonRun     `json:"runs"`
	Summary []jsonSummary `json:"summary,omitempty"`
}

func createJsonReport(rep Report) (out []byte, err error) {
	oReport := jsonReport{Command: rep.Command}
	for _, run := range rep.Runs {
		r := run.Result
		oRun := jsonRun{
			Pid:       r.Pid,
			ExitCode:  r.ExitCode,
			StartedAt: r.Started.Format("2006-01-02T15:04:05.000000000Z07:00"),
			ElapsedNs: r.Elapsed.Nanoseconds(),
			Counters:  []jsonCounter{},
		}
		if r.Signal != 0 {
			oRun.Signal = r.Signal.String()
		}
		for _, c := range r.Counters {
			oRun.Counters = append(oRun.Counters, jsonCounter{
				Event:       c.Kind.String(),
				Count:       c.Delta(),
				Unit:        c.Kind.Unit(),
				Start:       c.Start,
				Stop:        c.Stop,
				Utilization: c.Utilization,
			})
		}
		for _, m := range run.Metrics {
			oRun.Metrics = append(oRun.Metrics, jsonMetric{Name: m.Name, Value: m.Value, Unit: m.Unit})
		}
		oReport.Runs = append(oReport.Runs, oRun)
	}
	if len(rep.Runs) > 1 {
		for _, s := range rep.Summary() {
			oReport.Summary = append(oReport.Summary, jsonSummary{
				Event:          s.Kind.String(),
				Mean:           s.Mean,
				StdDev:         s.StdDev,
				RelativeStdDev: s.RelativeStdDev(),
			})
		}
	}
	return json.MarshalIndent(oReport, "", " ")
}
