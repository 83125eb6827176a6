// Package check is a subcommand of the root command. It verifies that the
// host can count each event and reports the results as a table.
package check

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"perfstat/internal/common"
	"perfstat/internal/perf"
	"perfstat/internal/progress"
	"perfstat/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const cmdName = "check"

var examples = []string{
	fmt.Sprintf("  Check all events:              $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  Check selected events:         $ %s %s -e cycles,context-switches", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Check that this host can count performance events",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagEvents  []string
	flagProcDir string

	gKinds []perf.EventKind
)

const (
	flagEventsName  = "event"
	flagProcDirName = "procfs"
)

// probeCommand exits immediately without reading anything
var probeCommand = []string{"cat", "/dev/null"}

func init() {
	Cmd.Flags().StringSliceVarP(&flagEvents, flagEventsName, "e", []string{}, "")
	Cmd.Flags().StringVar(&flagProcDir, flagProcDirName, "/proc", "")
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	return []common.FlagGroup{
		{
			GroupName: "Check Options",
			Flags: []common.Flag{
				{Name: flagEventsName, Help: "events to check, default: all"},
				{Name: flagProcDirName, Help: "mount point of the proc filesystem"},
			},
		},
	}
}

func validateFlags(cmd *cobra.Command, args []string) error {
	kinds, err := perf.ParseEventKinds(flagEvents)
	if err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	if len(kinds) == 0 {
		kinds = perf.Kinds()
	}
	gKinds = kinds
	return nil
}

// Status of a check.
type Status int

const (
	StatusPass Status = iota
	StatusSkip
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusSkip:
		return "SKIP"
	}
	return "FAIL"
}

// Result of one check.
type Result struct {
	Name   string
	Status Status
	Detail string
}

func runCmd(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	results := environmentChecks(flagProcDir, os.Geteuid())
	if results[0].Status == StatusFail {
		return finish(os.Stdout, results)
	}
	spinner := progress.NewMultiSpinner()
	for _, kind := range gKinds {
		if err := spinner.AddSpinner(kind.String()); err != nil {
			return err
		}
	}
	spinner.Start()
	for _, kind := range gKinds {
		_ = spinner.Status(kind.String(), "counting")
		result := checkEvent(kind, spinner.Status)
		_ = spinner.Status(kind.String(), result.Status.String())
		results = append(results, result)
	}
	spinner.Finish()
	fmt.Fprintln(os.Stderr)
	return finish(os.Stdout, results)
}

func finish(w io.Writer, results []Result) error {
	renderResults(w, results, colorEnabled())
	for _, r := range results {
		if r.Status == StatusFail {
			return common.Reported(errors.New("one or more checks failed"))
		}
	}
	return nil
}

func colorEnabled() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
}

// environmentChecks verifies kernel support and the paranoid level. The
// first result is always the kernel support check.
func environmentChecks(procDir string, euid int) []Result {
	if !perf.Supported(procDir) {
		return []Result{{Name: "perf_event_open support", Status: StatusFail, Detail: "kernel has no perf events, perf_event_paranoid is missing"}}
	}
	results := []Result{{Name: "perf_event_open support", Status: StatusPass}}
	level, err := perf.ParanoidLevel(procDir)
	if err != nil {
		slog.Warn("failed to read paranoid level", slog.String("error", err.Error()))
		return append(results, Result{Name: "perf_event_paranoid", Status: StatusFail, Detail: err.Error()})
	}
	return append(results, paranoidChecks(level, euid)...)
}

// paranoidChecks reports which counting modes level allows for a user
func paranoidChecks(level int, euid int) []Result {
	user := Result{Name: "user mode counting", Status: StatusPass, Detail: fmt.Sprintf("perf_event_paranoid is %d", level)}
	kernel := Result{Name: "kernel mode counting", Status: StatusPass, Detail: fmt.Sprintf("perf_event_paranoid is %d", level)}
	if euid == 0 {
		user.Detail += ", running as root"
		kernel.Detail += ", running as root"
		return []Result{user, kernel}
	}
	if level > perf.ParanoidUser {
		user.Status = StatusFail
		user.Detail += fmt.Sprintf(", needs %d or lower", perf.ParanoidUser)
	}
	if level > perf.ParanoidKernel {
		// only context-switches needs it, the other events still work
		kernel.Status = StatusSkip
		kernel.Detail += fmt.Sprintf(", needs %d or lower for context-switches", perf.ParanoidKernel)
	}
	return []Result{user, kernel}
}

// checkEvent counts kind over the probe command
func checkEvent(kind perf.EventKind, update progress.UpdateFunc) Result {
	name := kind.String()
	res, err := session.Measure(session.Options{Command: probeCommand, Events: []perf.EventKind{kind}})
	if err != nil {
		slog.Info("event check failed", slog.String("event", name), slog.String("error", err.Error()))
		return classifyFailure(name, err)
	}
	c, _ := res.Counter(kind)
	if c.Delta() < 0 {
		return Result{Name: name, Status: StatusFail, Detail: fmt.Sprintf("negative count %d", c.Delta())}
	}
	if c.Delta() == 0 && kind != perf.ContextSwitches {
		_ = update(name, "zero count")
		return Result{Name: name, Status: StatusFail, Detail: "counted 0"}
	}
	return Result{Name: name, Status: StatusPass, Detail: fmt.Sprintf("counted %d", c.Delta())}
}

func classifyFailure(name string, err error) Result {
	class := session.Classify(err)
	switch class {
	case session.ClassUnsupported:
		return Result{Name: name, Status: StatusSkip, Detail: class.String()}
	case session.ClassPermission:
		return Result{Name: name, Status: StatusSkip, Detail: fmt.Sprintf("%s, see perf_event_paranoid", class)}
	}
	return Result{Name: name, Status: StatusFail, Detail: err.Error()}
}

func renderResults(w io.Writer, results []Result, color bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SuppressTrailingSpaces()
	t.AppendHeader(table.Row{"Check", "Status", "Detail"})
	for _, r := range results {
		status := r.Status.String()
		if color {
			status = statusColors[r.Status].Sprint(status)
		}
		t.AppendRow(table.Row{r.Name, status, r.Detail})
	}
	t.Render()
}

var statusColors = map[Status]text.Colors{
	StatusPass: {text.FgGreen},
	StatusSkip: {text.FgYellow},
	StatusFail: {text.FgRed, text.Bold},
}
