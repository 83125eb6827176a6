package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/procfs"
)

const paranoidSysctl = "kernel.perf_event_paranoid"

// Paranoid levels, see Documentation/admin-guide/sysctl/kernel.rst.
const (
	// ParanoidKernel is the highest level that allows unprivileged kernel
	// mode counting, e.g., for ContextSwitches.
	ParanoidKernel = 1
	// ParanoidUser is the highest level that allows unprivileged user mode
	// counting of one's own processes.
	ParanoidUser = 2
)

// Supported reports whether the kernel provides perf_event_open. The
// existence of the perf_event_paranoid file is the documented check.
func Supported(procPath string) bool {
	_, err := os.Stat(filepath.Join(procPath, "sys", "kernel", "perf_event_paranoid"))
	return err == nil
}

// ParanoidLevel reads kernel.perf_event_paranoid from the proc filesystem
// mounted at procPath.
func ParanoidLevel(procPath string) (int, error) {
	fs, err := procfs.NewFS(procPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open procfs at %s: %w", procPath, err)
	}
	values, err := fs.SysctlInts(paranoidSysctl)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", paranoidSysctl, err)
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("unexpected %s value: %v", paranoidSysctl, values)
	}
	return values[0], nil
}
