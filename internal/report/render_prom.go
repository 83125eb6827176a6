package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"fmt"
	"strconv"

	"perfstat/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const promMetricPrefix = "perfstat_"

// createPromReport renders the runs in the Prometheus text exposition format,
// suitable for the node exporter textfile collector
func createPromReport(rep Report) (out []byte, err error) {
	registry := prometheus.NewRegistry()
	counts := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: promMetricPrefix + "event_count",
			Help: "Events counted over the lifetime of the command",
		},
		[]string{"cmd", "run", "event"},
	)
	elapsed := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: promMetricPrefix + "elapsed_seconds",
			Help: "Wall time from release to exit of the command",
		},
		[]string{"cmd", "run"},
	)
	exitCode := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: promMetricPrefix + "exit_code",
			Help: "Exit status of the command, -1 when killed by a signal",
		},
		[]string{"cmd", "run"},
	)
	derived := map[string]*prometheus.GaugeVec{}
	collectors := []prometheus.Collector{counts, elapsed, exitCode}
	for _, run := range rep.Runs {
		for _, m := range run.Metrics {
			name := promMetricPrefix + metrics.ExportName(m.Name)
			if _, ok := derived[name]; ok {
				continue
			}
			derived[name] = prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: name,
					Help: fmt.Sprintf("%s (%s)", m.Name, m.Unit),
				},
				[]string{"cmd", "run"},
			)
			collectors = append(collectors, derived[name])
		}
	}
	for _, c := range collectors {
		if err = registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register prometheus metric: %w", err)
		}
	}
	cmd := rep.CommandLine()
	for i, run := range rep.Runs {
		runID := strconv.Itoa(i + 1)
		for _, c := range run.Result.Counters {
			counts.WithLabelValues(cmd, runID, c.Kind.String()).Set(float64(c.Delta()))
		}
		elapsed.WithLabelValues(cmd, runID).Set(run.Result.Elapsed.Seconds())
		exitCode.WithLabelValues(cmd, runID).Set(float64(run.Result.ExitCode))
		for _, m := range run.Metrics {
			derived[promMetricPrefix+metrics.ExportName(m.Name)].WithLabelValues(cmd, runID).Set(m.Value)
		}
	}
	families, err := registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("failed to gather prometheus metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, family := range families {
		if _, err = expfmt.MetricFamilyToText(&buf, family); err != nil {
			return nil, fmt.Errorf("failed to encode prometheus metrics: %w", err)
		}
	}
	out = buf.Bytes()
	return
}
