package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandUser(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x", ExpandUser("/tmp/x"))
	assert.Equal(t, "~user/x", ExpandUser("~user/x"))
	assert.Equal(t, filepath.Join(home, "out"), ExpandUser("~/out"))
}

func TestAbsPath(t *testing.T) {
	p, err := AbsPath("relative")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(p))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	ok, err := FileExists(file)
	assert.NoError(t, err)
	assert.True(t, ok)
	ok, err = FileExists(filepath.Join(dir, "missing"))
	assert.NoError(t, err)
	assert.False(t, ok)
	_, err = FileExists(dir)
	assert.Error(t, err)

	ok, err = DirectoryExists(dir)
	assert.NoError(t, err)
	assert.True(t, ok)
	_, err = DirectoryExists(file)
	assert.Error(t, err)
}

func TestGetChildren(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	require.NoError(t, cmd.Start())
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	var children []int
	var err error
	for range 10 {
		children, err = GetChildren(procfs.DefaultMountPoint, os.Getpid())
		require.NoError(t, err)
		if slices.Contains(children, cmd.Process.Pid) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	assert.Contains(t, children, cmd.Process.Pid)
}

func TestSignalChildren(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	SignalChildren(syscall.SIGTERM)
	err := cmd.Wait()
	require.Error(t, err)
	status := cmd.ProcessState.Sys().(syscall.WaitStatus)
	assert.True(t, status.Signaled())
	assert.Equal(t, syscall.SIGTERM, status.Signal())
}
