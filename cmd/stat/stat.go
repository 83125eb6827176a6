// Package stat is a subcommand of the root command. It runs a command and
// reports the performance events counted over its lifetime.
package stat

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"perfstat/internal/common"
	"perfstat/internal/metrics"
	"perfstat/internal/perf"
	"perfstat/internal/report"
	"perfstat/internal/session"
	"perfstat/internal/util"

	"github.com/spf13/cobra"
)

const cmdName = "stat"

var examples = []string{
	fmt.Sprintf("  Default events (cycles, instructions):   $ %s %s -- ls -l", common.AppName, cmdName),
	fmt.Sprintf("  Selected events:                         $ %s %s -e task-clock -e context-switches -- ./myapp", common.AppName, cmdName),
	fmt.Sprintf("  Detailed event set:                      $ %s %s --detailed -- ./myapp arg1", common.AppName, cmdName),
	fmt.Sprintf("  Five runs with mean and spread:          $ %s %s --repeat 5 -- ./myapp", common.AppName, cmdName),
	fmt.Sprintf("  Reports in all formats:                  $ %s %s --format all -- ./myapp", common.AppName, cmdName),
	fmt.Sprintf("  Extra derived metrics:                   $ %s %s --metricfile mymetrics.yaml -- ./myapp", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName + " [flags] -- command [args...]",
	Short:         "Run a command and count performance events over its lifetime",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
}

var (
	flagEvents     []string
	flagDetailed   bool
	flagRepeat     int
	flagFormat     []string
	flagMetricFile string
	flagNoMetrics  bool

	// resolved from flags
	gKinds []perf.EventKind
)

const (
	flagEventsName     = "event"
	flagDetailedName   = "detailed"
	flagRepeatName     = "repeat"
	flagFormatName     = "format"
	flagMetricFileName = "metricfile"
	flagNoMetricsName  = "nometrics"
)

func init() {
	Cmd.Flags().StringSliceVarP(&flagEvents, flagEventsName, "e", []string{}, "")
	Cmd.Flags().BoolVarP(&flagDetailed, flagDetailedName, "d", false, "")
	Cmd.Flags().IntVarP(&flagRepeat, flagRepeatName, "r", 1, "")
	Cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{report.FormatTxt}, "")
	Cmd.Flags().StringVar(&flagMetricFile, flagMetricFileName, "", "")
	Cmd.Flags().BoolVar(&flagNoMetrics, flagNoMetricsName, false, "")
	// everything after the first positional argument belongs to the command
	Cmd.Flags().SetInterspersed(false)

	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagEventsName,
			Help: fmt.Sprintf("events to count, repeat or separate with commas (see '%s list'), default: %s", common.AppName, kindNames(perf.DefaultKinds())),
		},
		{
			Name: flagDetailedName,
			Help: fmt.Sprintf("count the detailed event set: %s", kindNames(perf.DetailedKinds())),
		},
		{
			Name: flagRepeatName,
			Help: "run the command this many times and report the mean and spread",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Counting Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagFormatName,
			Help: fmt.Sprintf("choose output format(s) from: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
		},
		{
			Name: flagMetricFileName,
			Help: "YAML file with additional derived metric definitions",
		},
		{
			Name: flagNoMetricsName,
			Help: "do not compute derived metrics",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Output Options",
		Flags:     flags,
	})
	return groups
}

func kindNames(kinds []perf.EventKind) string {
	names := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		names = append(names, kind.String())
	}
	return strings.Join(names, ",")
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagRepeat < 1 {
		return common.FlagValidationError(cmd, fmt.Sprintf("%s must be at least 1", flagRepeatName))
	}
	for _, format := range flagFormat {
		if format != report.FormatAll && !slices.Contains(report.FormatOptions, format) {
			return common.FlagValidationError(cmd, fmt.Sprintf("format options are: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")))
		}
	}
	if flagMetricFile != "" {
		if flagNoMetrics {
			return common.FlagValidationError(cmd, fmt.Sprintf("%s and %s are mutually exclusive", flagMetricFileName, flagNoMetricsName))
		}
		exists, err := util.FileExists(flagMetricFile)
		if err != nil || !exists {
			return common.FlagValidationError(cmd, fmt.Sprintf("metric file %s does not exist", flagMetricFile))
		}
	}
	kinds, err := resolveKinds(flagEvents, flagDetailed)
	if err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	gKinds = kinds
	return nil
}

// resolveKinds returns the requested event kinds. Explicit events come first
// and the detailed set is appended without duplicates.
func resolveKinds(events []string, detailed bool) ([]perf.EventKind, error) {
	kinds, err := perf.ParseEventKinds(events)
	if err != nil {
		return nil, err
	}
	if detailed {
		for _, kind := range perf.DetailedKinds() {
			if !slices.Contains(kinds, kind) {
				kinds = append(kinds, kind)
			}
		}
	}
	return kinds, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	appContext := common.GetAppContext(cmd)
	cmd.SilenceUsage = true
	var defs []metrics.Definition
	if !flagNoMetrics {
		defs = metrics.Defaults()
		if flagMetricFile != "" {
			loaded, err := metrics.Load(flagMetricFile)
			if err != nil {
				slog.Error(err.Error())
				return err
			}
			defs = metrics.Merge(defs, loaded)
		}
	}
	// the terminal delivers ctrl-c to the command as well, keep running until
	// it exits so the counts can be reported
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChannel)
	go func() {
		for sig := range sigChannel {
			slog.Info("received signal", slog.String("signal", sig.String()))
			// when run in the background or sent a signal directly, the
			// command doesn't see it, so pass it on
			util.SignalChildren(sig)
		}
	}()
	rep := report.Report{Command: args}
	for i := range flagRepeat {
		slog.Info("measuring command", slog.String("command", strings.Join(args, " ")), slog.Int("run", i+1), slog.String("events", kindNames(gKinds)))
		result, err := session.Measure(session.Options{
			Command: args,
			Events:  gKinds,
			Stdin:   os.Stdin,
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
		})
		if err != nil {
			err = describeError(err)
			slog.Error(err.Error())
			return err
		}
		slog.Info("command finished", slog.Int("run", i+1), slog.Int("pid", result.Pid), slog.Int("exit code", result.ExitCode), slog.Duration("elapsed", result.Elapsed))
		rep.Runs = append(rep.Runs, report.Run{Result: result, Metrics: metrics.Evaluate(defs, metrics.Variables(result))})
	}
	formats := flagFormat
	if slices.Contains(formats, report.FormatAll) {
		formats = report.FormatOptions
	}
	reportFilePaths, err := writeReports(rep, formats, appContext.OutputDir, os.Stderr)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if len(reportFilePaths) > 0 {
		fmt.Fprintln(os.Stderr, "Report files:")
	}
	for _, reportFilePath := range reportFilePaths {
		fmt.Fprintf(os.Stderr, "  %s\n", reportFilePath)
	}
	last := rep.Runs[len(rep.Runs)-1].Result
	if !last.Success() {
		code := last.ExitCode
		if last.Signal != 0 {
			code = 128 + int(last.Signal)
		}
		return common.ExitError{Code: code}
	}
	return nil
}

// writeReports prints the txt report to w and writes the other formats to
// files in outputDir. With more than one format, txt goes to a file too.
func writeReports(rep report.Report, formats []string, outputDir string, w io.Writer) ([]string, error) {
	var reportFilePaths []string
	for _, format := range formats {
		reportBytes, err := report.Create(format, rep)
		if err != nil {
			return nil, fmt.Errorf("failed to create report: %w", err)
		}
		if format == report.FormatTxt {
			fmt.Fprint(w, string(reportBytes))
			if len(formats) == 1 {
				continue
			}
		}
		if err := common.CreateOutputDir(outputDir); err != nil {
			return nil, err
		}
		reportPath := filepath.Join(outputDir, fmt.Sprintf("%s.%s", cmdName, format))
		if err := common.WriteReport(reportBytes, reportPath); err != nil {
			return nil, err
		}
		reportFilePaths = append(reportFilePaths, reportPath)
	}
	return reportFilePaths, nil
}

// describeError adds the remedy for the class of err
func describeError(err error) error {
	switch session.Classify(err) {
	case session.ClassPermission:
		hint := "run as root, grant CAP_PERFMON, or lower kernel.perf_event_paranoid"
		if level, perr := perf.ParanoidLevel("/proc"); perr == nil {
			hint = fmt.Sprintf("kernel.perf_event_paranoid is %d, user mode events need %d or lower and kernel mode events (context-switches) need %d or lower; %s",
				level, perf.ParanoidUser, perf.ParanoidKernel, hint)
		}
		return fmt.Errorf("%s: %w\n%s", session.ClassPermission, err, hint)
	case session.ClassUnsupported:
		return fmt.Errorf("%s on this host: %w\nrun '%s check' to see which events can be counted", session.ClassUnsupported, err, common.AppName)
	case session.ClassUnknown:
		return err
	default:
		return fmt.Errorf("%s: %w", session.Classify(err), err)
	}
}
