// Package metrics derives ratios such as instructions per cycle from the
// counts of a measured run.
package metrics

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"strings"

	"perfstat/internal/perf"
	"perfstat/internal/session"

	"github.com/casbin/govaluate"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// DurationVariable holds the elapsed wall time of the run in nanoseconds.
const DurationVariable = "duration_time"

// Definition of a derived metric. Variables in Expression are event names
// in brackets, e.g., [instructions], or DurationVariable.
type Definition struct {
	Name        string `yaml:"name"`
	Expression  string `yaml:"expression"`
	Unit        string `yaml:"unit"`
	Description string `yaml:"description"`
	// Event the value is printed next to in the text report. Empty means the
	// metric gets its own line.
	Event     string                         `yaml:"event"`
	Evaluable *govaluate.EvaluableExpression `yaml:"-"` // parse expression once
	Variables mapset.Set[string]             `yaml:"-"`
}

type definitionFile struct {
	Metrics []Definition `yaml:"metrics"`
}

// Value of an evaluated metric.
type Value struct {
	Name  string
	Unit  string
	Event string
	Value float64
}

var defaultDefinitions = []Definition{
	{Name: "IPC", Expression: "[instructions] / [cycles]", Unit: "insn per cycle", Event: "instructions", Description: "instructions retired per CPU cycle"},
	{Name: "CPU utilized", Expression: "[task-clock] / [duration_time]", Unit: "CPUs utilized", Event: "task-clock", Description: "CPUs busy over the wall time of the run"},
	{Name: "L1D load miss rate", Expression: "100 * [L1-dcache-load-misses] / [L1-dcache-loads]", Unit: "% of all L1-dcache accesses", Event: "L1-dcache-load-misses", Description: "share of L1 data cache loads that missed"},
	{Name: "context switch rate", Expression: "[context-switches] / ([task-clock] / 1000000000)", Unit: "/sec", Event: "context-switches", Description: "context switches per second of task clock"},
}

// Defaults returns the built-in metric definitions, ready for evaluation.
func Defaults() []Definition {
	defs := make([]Definition, len(defaultDefinitions))
	copy(defs, defaultDefinitions)
	for i := range defs {
		if err := defs[i].compile(); err != nil {
			panic(err) // built-in expressions are constant
		}
	}
	return defs
}

var rxInvalidExportChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// reservedExportNames are used by the report for the counts themselves.
var reservedExportNames = mapset.NewSet("event_count", "elapsed_seconds", "exit_code")

// ExportName converts a metric name to the form used in Prometheus metric
// names, e.g., "CPU utilized" becomes "cpu_utilized".
func ExportName(name string) string {
	exported := strings.ReplaceAll(name, "%", "pct")
	exported = rxInvalidExportChars.ReplaceAllString(exported, "_")
	return strings.Trim(strings.ToLower(exported), "_")
}

// Merge returns base with overrides applied. An override replaces the base
// definition with the same export name in place, the others are appended.
func Merge(base, overrides []Definition) []Definition {
	merged := make([]Definition, len(base), len(base)+len(overrides))
	copy(merged, base)
	index := make(map[string]int, len(base))
	for i, def := range merged {
		index[ExportName(def.Name)] = i
	}
	for _, def := range overrides {
		key := ExportName(def.Name)
		if i, ok := index[key]; ok {
			slog.Info("metric definition replaced", slog.String("metric", def.Name), slog.String("expression", def.Expression))
			merged[i] = def
			continue
		}
		index[key] = len(merged)
		merged = append(merged, def)
	}
	return merged
}

// Load reads metric definitions from a YAML file.
func Load(path string) ([]Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metric file %s", path)
	}
	defs, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load metric file %s", path)
	}
	return defs, nil
}

// Parse decodes and compiles YAML metric definitions.
func Parse(data []byte) ([]Definition, error) {
	var file definitionFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, errors.Wrap(err, "invalid metric definitions")
	}
	names := mapset.NewThreadUnsafeSet[string]()
	for i := range file.Metrics {
		def := &file.Metrics[i]
		if def.Name == "" {
			return nil, errors.Errorf("metric %d has no name", i)
		}
		exported := ExportName(def.Name)
		if exported == "" {
			return nil, errors.Errorf("metric %q has no letters or digits in its name", def.Name)
		}
		if reservedExportNames.Contains(exported) {
			return nil, errors.Errorf("metric %s: name is reserved", def.Name)
		}
		if !names.Add(exported) {
			return nil, errors.Errorf("metric %s defined more than once", def.Name)
		}
		if err := def.compile(); err != nil {
			return nil, err
		}
	}
	return file.Metrics, nil
}

func (d *Definition) compile() (err error) {
	if d.Evaluable, err = govaluate.NewEvaluableExpressionWithFunctions(d.Expression, evaluatorFunctions()); err != nil {
		return errors.Wrapf(err, "metric %s: invalid expression %q", d.Name, d.Expression)
	}
	d.Variables = mapset.NewThreadUnsafeSet(d.Evaluable.Vars()...)
	if d.Variables.IsEmpty() {
		return errors.Errorf("metric %s: expression %q uses no events", d.Name, d.Expression)
	}
	known := mapset.NewThreadUnsafeSet(DurationVariable)
	for _, kind := range perf.Kinds() {
		known.Add(kind.String())
	}
	if unknown := d.Variables.Difference(known); !unknown.IsEmpty() {
		return errors.Errorf("metric %s: unknown events %v", d.Name, unknown.ToSlice())
	}
	return nil
}

// Variables returns the values metric expressions can refer to for result.
func Variables(result *session.Result) map[string]float64 {
	vars := map[string]float64{DurationVariable: float64(result.Elapsed.Nanoseconds())}
	for _, c := range result.Counters {
		vars[c.Kind.String()] = float64(c.Delta())
	}
	return vars
}

// Evaluate computes every definition whose variables are all present.
// Metrics without data or with a non-finite value, e.g., a division by a
// zero count, are left out.
func Evaluate(defs []Definition, vars map[string]float64) []Value {
	available := mapset.NewThreadUnsafeSetWithSize[string](len(vars))
	params := make(map[string]any, len(vars))
	for name, v := range vars {
		available.Add(name)
		params[name] = v
	}
	var values []Value
	for _, def := range defs {
		if def.Evaluable == nil || !def.Variables.IsSubset(available) {
			continue
		}
		v, err := evaluateExpression(def, params)
		if err != nil {
			slog.Warn("failed to evaluate metric", slog.String("metric", def.Name), slog.String("error", err.Error()))
			continue
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			slog.Debug("metric value is not finite", slog.String("metric", def.Name))
			continue
		}
		values = append(values, Value{Name: def.Name, Unit: def.Unit, Event: def.Event, Value: v})
	}
	return values
}

// evaluateExpression calls the evaluator and catches its panics
func evaluateExpression(def Definition, params map[string]any) (value float64, err error) {
	defer func() {
		if errx := recover(); errx != nil {
			err = fmt.Errorf("%v : %s : %s", errx, def.Name, def.Expression)
		}
	}()
	result, err := def.Evaluable.Evaluate(params)
	if err != nil {
		return 0, fmt.Errorf("%v : %s : %s", err, def.Name, def.Expression)
	}
	switch t := result.(type) {
	case float64:
		return t, nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unexpected result type %T : %s", result, def.Name)
}

// evaluatorFunctions defines functions that can be called in metric expressions
func evaluatorFunctions() map[string]govaluate.ExpressionFunction {
	functions := make(map[string]govaluate.ExpressionFunction)
	functions["max"] = func(args ...any) (any, error) {
		l, r, err := twoFloats(args)
		if err != nil {
			return nil, err
		}
		return max(l, r), nil
	}
	functions["min"] = func(args ...any) (any, error) {
		l, r, err := twoFloats(args)
		if err != nil {
			return nil, err
		}
		return min(l, r), nil
	}
	return functions
}

func twoFloats(args []any) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	var vals [2]float64
	for i, arg := range args {
		switch t := arg.(type) {
		case int:
			vals[i] = float64(t)
		case float64:
			vals[i] = t
		default:
			return 0, 0, fmt.Errorf("argument %d is not a number: %v", i, arg)
		}
	}
	return vals[0], vals[1], nil
}
