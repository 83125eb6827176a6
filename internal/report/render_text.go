package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"

	"perfstat/internal/metrics"
	"perfstat/internal/perf"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// createTextReport renders the perf stat style summary
func createTextReport(rep Report) (out []byte, err error) {
	p := message.NewPrinter(language.English) // commas at thousands, e.g., 1,234,567 cycles
	var sb strings.Builder
	header := fmt.Sprintf("\n Performance counter stats for '%s'", rep.CommandLine())
	if len(rep.Runs) > 1 {
		header += fmt.Sprintf(" (%d runs)", len(rep.Runs))
	}
	sb.WriteString(header + ":\n\n")
	byEvent := map[string]metrics.Value{}
	var standalone []metrics.Value
	for _, v := range rep.MeanMetrics() {
		if _, taken := byEvent[v.Event]; v.Event != "" && !taken {
			byEvent[v.Event] = v
		} else {
			standalone = append(standalone, v)
		}
	}
	for _, s := range rep.Summary() {
		var line string
		if s.Kind.IsTime() {
			line = p.Sprintf("%18.2f msec %-30s", s.Mean/1e6, s.Kind.String())
		} else {
			line = p.Sprintf("%18d      %-30s", int64(s.Mean), s.Kind.String())
		}
		if v, ok := byEvent[s.Kind.String()]; ok {
			line += p.Sprintf(" # %8.3f %s", v.Value, v.Unit)
		} else if s.Kind == perf.TaskClock {
			line += p.Sprintf(" # %8.3f CPUs utilized", s.Utilization)
		}
		if len(rep.Runs) > 1 {
			line += fmt.Sprintf("  ( +- %5.2f%% )", s.RelativeStdDev())
		}
		sb.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	for _, v := range standalone {
		sb.WriteString(p.Sprintf("%18.3f      %s %s\n", v.Value, v.Unit, v.Name))
	}
	elapsed, stddev := rep.MeanElapsed()
	sb.WriteString("\n")
	line := fmt.Sprintf("%18.9f seconds time elapsed", elapsed)
	if len(rep.Runs) > 1 && elapsed > 0 {
		line += fmt.Sprintf("  ( +- %5.2f%% )", 100*stddev/elapsed)
	}
	sb.WriteString(line + "\n")
	for i, run := range rep.Runs {
		if !run.Result.Success() {
			sb.WriteString(fmt.Sprintf("\n run %d: %s\n", i+1, exitDescription(run)))
		}
	}
	sb.WriteString("\n")
	return []byte(sb.String()), nil
}

func exitDescription(run Run) string {
	if run.Result.Signal != 0 {
		return fmt.Sprintf("terminated by signal %s", run.Result.Signal)
	}
	return fmt.Sprintf("exited with status %d", run.Result.ExitCode)
}
