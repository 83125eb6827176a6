// Package common defines data structures and functions that are used by
// multiple application commands, e.g., stat, list, check.
package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var AppName = filepath.Base(os.Args[0])

// AppContext represents the application context that can be accessed from all commands.
type AppContext struct {
	Timestamp   string // Timestamp is the application start time, used in output names.
	OutputDir   string // OutputDir is the directory where the application will write output files.
	LogFilePath string // LogFilePath is the log file, empty when logging elsewhere.
	Version     string // Version is the version of the application.
	Debug       bool
}

// GetAppContext returns the context set by the root command.
func GetAppContext(cmd *cobra.Command) AppContext {
	if cmd.Parent() == nil || cmd.Parent().Context() == nil {
		return AppContext{}
	}
	appContext, _ := cmd.Parent().Context().Value(AppContext{}).(AppContext)
	return appContext
}

type Flag struct {
	Name string
	Help string
}
type FlagGroup struct {
	GroupName string
	Flags     []Flag
}

// UsageFunc returns a cobra usage function that prints the command's flags
// in groups, followed by the global flags.
func UsageFunc(groups func() []FlagGroup) func(*cobra.Command) error {
	return func(cmd *cobra.Command) error {
		cmd.Printf("Usage: %s [flags]", cmd.CommandPath())
		if strings.Contains(cmd.Use, "--") {
			cmd.Printf(" -- command [args...]")
		}
		cmd.Printf("\n\n")
		if cmd.HasExample() {
			cmd.Printf("Examples:\n%s\n\n", cmd.Example)
		}
		for _, group := range groups() {
			cmd.Printf("%s:\n", group.GroupName)
			for _, flag := range group.Flags {
				flagDefault := ""
				if f := cmd.Flags().Lookup(flag.Name); f != nil && f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" && f.DefValue != "0" {
					flagDefault = fmt.Sprintf(" (default: %s)", f.DefValue)
				}
				cmd.Printf("  --%-20s %s%s\n", flag.Name, flag.Help, flagDefault)
			}
		}
		cmd.Printf("\nGlobal Flags:\n")
		cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
			flagDefault := ""
			if cmd.Parent().PersistentFlags().Lookup(pf.Name).DefValue != "" {
				flagDefault = fmt.Sprintf(" (default: %s)", pf.DefValue)
			}
			cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, flagDefault)
		})
		return nil
	}
}

// FlagValidationError is used to report an error with a flag
func FlagValidationError(cmd *cobra.Command, msg string) error {
	err := errors.New(msg)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	fmt.Fprintf(os.Stderr, "See '%s --help' for usage details.\n", cmd.CommandPath())
	cmd.SilenceUsage = true
	return Reported(err)
}

// reportedError marks an error that was already shown to the user
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// Reported marks err as already printed.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// IsReported reports whether err was already printed.
func IsReported(err error) bool {
	var r reportedError
	if errors.As(err, &r) {
		return true
	}
	var e ExitError
	return errors.As(err, &e)
}

// ExitError makes the application exit with Code without printing anything,
// e.g., to pass on the exit status of a measured command.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	var e ExitError
	if errors.As(err, &e) && e.Code > 0 {
		return e.Code
	}
	return 1
}

// CreateOutputDir creates the output directory if it does not exist
func CreateOutputDir(outputDir string) error {
	err := os.MkdirAll(outputDir, 0755) // #nosec G301
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// WriteReport writes the report bytes to the specified path.
func WriteReport(reportBytes []byte, reportPath string) error {
	err := os.WriteFile(reportPath, reportBytes, 0644) // #nosec G306
	if err != nil {
		err = fmt.Errorf("failed to write report file: %v", err)
		slog.Error(err.Error())
		return err
	}
	return nil
}
