package metrics

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"perfstat/internal/perf"
	"perfstat/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsCompile(t *testing.T) {
	defs := Defaults()
	require.NotEmpty(t, defs)
	for _, def := range defs {
		assert.NotNil(t, def.Evaluable, def.Name)
		assert.False(t, def.Variables.IsEmpty(), def.Name)
	}
	// defaults are not shared between callers
	defs[0].Name = "changed"
	assert.Equal(t, "IPC", Defaults()[0].Name)
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]float64
		want map[string]float64
	}{
		{
			name: "ipc only",
			vars: map[string]float64{"instructions": 3000, "cycles": 1000, DurationVariable: 1e6},
			want: map[string]float64{"IPC": 3},
		},
		{
			name: "utilization",
			vars: map[string]float64{"task-clock": 5e5, DurationVariable: 1e6},
			want: map[string]float64{"CPU utilized": 0.5},
		},
		{
			name: "zero denominator is skipped",
			vars: map[string]float64{"instructions": 10, "cycles": 0, DurationVariable: 1e6},
			want: map[string]float64{},
		},
		{
			name: "miss rate",
			vars: map[string]float64{"L1-dcache-loads": 200, "L1-dcache-load-misses": 10, DurationVariable: 1},
			want: map[string]float64{"L1D load miss rate": 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[string]float64{}
			for _, v := range Evaluate(Defaults(), tt.vars) {
				got[v.Name] = v.Value
			}
			assert.InDeltaMapValues(t, tt.want, got, 1e-9)
		})
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
metrics:
  - name: cycles per instruction
    expression: "[cycles] / [instructions]"
    unit: CPI
  - name: larger
    expression: "max([cycles], [instructions])"
`)
	defs, err := Parse(data)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	values := Evaluate(defs, map[string]float64{"cycles": 500, "instructions": 1000})
	require.Len(t, values, 2)
	assert.Equal(t, "CPI", values[0].Unit)
	assert.InDelta(t, 0.5, values[0].Value, 1e-9)
	assert.InDelta(t, 1000, values[1].Value, 1e-9)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "metrics: [\n"},
		{"unknown field", "metrics:\n  - name: a\n    expresion: \"[cycles]\"\n"},
		{"no name", "metrics:\n  - expression: \"[cycles]\"\n"},
		{"duplicate", "metrics:\n  - name: a\n    expression: \"[cycles]\"\n  - name: a\n    expression: \"[cycles]\"\n"},
		{"bad expression", "metrics:\n  - name: a\n    expression: \"[cycles] / \"\n"},
		{"unknown event", "metrics:\n  - name: a\n    expression: \"[branches] / [cycles]\"\n"},
		{"constant", "metrics:\n  - name: a\n    expression: \"1 + 2\"\n"},
		{"same export name", "metrics:\n  - name: IPC\n    expression: \"[cycles]\"\n  - name: ipc\n    expression: \"[cycles]\"\n"},
		{"reserved count name", "metrics:\n  - name: Event Count\n    expression: \"[cycles]\"\n"},
		{"reserved elapsed name", "metrics:\n  - name: elapsed_seconds\n    expression: \"[cycles]\"\n"},
		{"reserved exit name", "metrics:\n  - name: exit code\n    expression: \"[cycles]\"\n"},
		{"no usable name", "metrics:\n  - name: \"--\"\n    expression: \"[cycles]\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  - name: ipc\n    expression: \"[instructions] / [cycles]\"\n"), 0o600))
	defs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestVariables(t *testing.T) {
	result := &session.Result{
		Elapsed: 2 * time.Millisecond,
		Counters: []session.Counter{
			{Kind: perf.Cycles, Start: 10, Stop: 110},
			{Kind: perf.TaskClock, Start: 0, Stop: 1500000},
		},
	}
	assert.Equal(t, map[string]float64{
		DurationVariable: 2e6,
		"cycles":         100,
		"task-clock":     1.5e6,
	}, Variables(result))
}

func TestExportName(t *testing.T) {
	tests := map[string]string{
		"IPC":                "ipc",
		"CPU utilized":       "cpu_utilized",
		"L1D load miss rate": "l1d_load_miss_rate",
		"miss %":             "miss_pct",
		"a-b (c)":            "a_b_c",
		" x":                 "x",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExportName(in), in)
	}
}

func TestMergeReplacesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
metrics:
  - name: IPC
    expression: "[instructions]"
  - name: cycles per second
    expression: "[cycles] / ([duration_time] / 1000000000)"
`), 0o600))
	loaded, err := Load(path)
	require.NoError(t, err)
	defaults := Defaults()
	merged := Merge(defaults, loaded)
	require.Len(t, merged, len(defaults)+1)
	assert.Equal(t, "cycles per second", merged[len(merged)-1].Name)

	values := Evaluate(merged, map[string]float64{"cycles": 500000, "instructions": 1000000, DurationVariable: 1e9})
	var ipc []Value
	for _, v := range values {
		if v.Name == "IPC" {
			ipc = append(ipc, v)
		}
	}
	require.Len(t, ipc, 1)
	assert.InDelta(t, 1000000, ipc[0].Value, 1e-9)
	// the defaults are left untouched
	assert.Equal(t, "IPC", defaults[0].Name)
	assert.NotEqual(t, "[instructions]", defaults[0].Expression)
}

func TestMergeNoOverrides(t *testing.T) {
	defaults := Defaults()
	assert.Equal(t, len(defaults), len(Merge(defaults, nil)))
}
