package check

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"perfstat/internal/common"
	"perfstat/internal/launch"
	"perfstat/internal/perf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestMain(m *testing.M) {
	launch.Init()
	os.Exit(m.Run())
}

func TestParanoidChecks(t *testing.T) {
	tests := []struct {
		level  int
		euid   int
		user   Status
		kernel Status
	}{
		{level: -1, euid: 1000, user: StatusPass, kernel: StatusPass},
		{level: 1, euid: 1000, user: StatusPass, kernel: StatusPass},
		{level: 2, euid: 1000, user: StatusPass, kernel: StatusSkip},
		{level: 3, euid: 1000, user: StatusFail, kernel: StatusSkip},
		{level: 4, euid: 0, user: StatusPass, kernel: StatusPass},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("level %d euid %d", tt.level, tt.euid), func(t *testing.T) {
			results := paranoidChecks(tt.level, tt.euid)
			require.Len(t, results, 2)
			assert.Equal(t, tt.user, results[0].Status)
			assert.Equal(t, tt.kernel, results[1].Status)
		})
	}
}

func fakeProc(t *testing.T, paranoid string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sys", "kernel"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sys", "kernel", "perf_event_paranoid"), []byte(paranoid), 0o644))
	return dir
}

func TestEnvironmentChecks(t *testing.T) {
	results := environmentChecks(t.TempDir(), 1000)
	require.Len(t, results, 1)
	assert.Equal(t, StatusFail, results[0].Status)

	results = environmentChecks(fakeProc(t, "2\n"), 1000)
	require.Len(t, results, 3)
	assert.Equal(t, StatusPass, results[0].Status)
	assert.Equal(t, StatusPass, results[1].Status)
	assert.Equal(t, StatusSkip, results[2].Status)
	assert.Contains(t, results[1].Detail, "perf_event_paranoid is 2")

	results = environmentChecks(fakeProc(t, "garbage\n"), 1000)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFail, results[1].Status)
}

func TestClassifyFailure(t *testing.T) {
	r := classifyFailure("cycles", fmt.Errorf("%w: %w", perf.ErrOpen, unix.ENOENT))
	assert.Equal(t, StatusSkip, r.Status)
	r = classifyFailure("cycles", fmt.Errorf("%w: %w", perf.ErrOpen, unix.EACCES))
	assert.Equal(t, StatusSkip, r.Status)
	assert.Contains(t, r.Detail, "paranoid")
	r = classifyFailure("cycles", fmt.Errorf("%w: enable: %w", perf.ErrControl, unix.EIO))
	assert.Equal(t, StatusFail, r.Status)
}

func TestCheckEvent(t *testing.T) {
	if !perf.Supported("/proc") {
		t.Skip("perf_event_open not supported by this kernel")
	}
	r := checkEvent(perf.TaskClock, func(string, string) error { return nil })
	if r.Status == StatusSkip {
		t.Skipf("task-clock not countable here: %s", r.Detail)
	}
	assert.Equal(t, StatusPass, r.Status, r.Detail)
	assert.Contains(t, r.Detail, "counted")
}

func TestFinish(t *testing.T) {
	var buf bytes.Buffer
	err := finish(&buf, []Result{{Name: "a", Status: StatusPass}, {Name: "b", Status: StatusSkip, Detail: "why"}})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "PASS")
	assert.Contains(t, out, "SKIP")
	assert.Contains(t, out, "why")

	buf.Reset()
	err = finish(&buf, []Result{{Name: "a", Status: StatusFail}})
	assert.Error(t, err)
	assert.True(t, common.IsReported(err))
	assert.Contains(t, buf.String(), "FAIL")
}

func TestRenderResultsColor(t *testing.T) {
	var buf bytes.Buffer
	renderResults(&buf, []Result{{Name: "a", Status: StatusPass}}, true)
	assert.Contains(t, buf.String(), "\x1b[")
}
