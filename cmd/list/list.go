// Package list is a subcommand of the root command. It lists the events the
// stat command can count.
package list

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"
	"os"
	"strings"

	"perfstat/internal/common"
	"perfstat/internal/perf"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

const cmdName = "list"

var examples = []string{
	fmt.Sprintf("  List events:                   $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  List events as markdown:       $ %s %s --markdown", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "List the countable events",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var flagMarkdown bool

const flagMarkdownName = "markdown"

func init() {
	Cmd.Flags().BoolVar(&flagMarkdown, flagMarkdownName, false, "")
	Cmd.SetUsageFunc(common.UsageFunc(getFlagGroups))
}

func getFlagGroups() []common.FlagGroup {
	return []common.FlagGroup{
		{
			GroupName: "Output Options",
			Flags: []common.Flag{
				{Name: flagMarkdownName, Help: "print the table in markdown format"},
			},
		},
	}
}

func runCmd(cmd *cobra.Command, args []string) error {
	return renderEvents(os.Stdout, flagMarkdown)
}

func renderEvents(w io.Writer, markdown bool) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatUpper
	t.SuppressTrailingSpaces()
	t.AppendHeader(table.Row{"Event", "Aliases", "Type", "Config", "Kernel Mode", "Description"})
	for _, kind := range perf.Kinds() {
		attr, err := perf.AttributeFor(kind)
		if err != nil {
			return err
		}
		kernel := "no"
		if kind.RequiresKernel() {
			kernel = fmt.Sprintf("yes (paranoid <= %d)", perf.ParanoidKernel)
		}
		t.AppendRow(table.Row{kind, strings.Join(kind.Aliases(), ", "), attr.Type, fmt.Sprintf("%#x", attr.Config), kernel, kind.Description()})
	}
	if markdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	return nil
}
