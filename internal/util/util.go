/*
Package util includes utility/helper functions that may be useful to other modules.
*/
package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/prometheus/procfs"
)

// ExpandUser expands '~' to user's home directory, if found, otherwise returns original path
func ExpandUser(path string) string {
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	} else if strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}

// AbsPath returns absolute path after expanding '~' to user's home dir
func AbsPath(path string) (string, error) {
	return filepath.Abs(ExpandUser(path))
}

// FileExists checks if a file exists at the given path.
// It returns an error if the path refers to a non-regular file, e.g., a directory.
func FileExists(path string) (bool, error) {
	return existsWithMode(path, fs.FileMode.IsRegular, "file")
}

// DirectoryExists checks if the specified directory exists.
// It returns an error if the path refers to anything other than a directory.
func DirectoryExists(path string) (bool, error) {
	return existsWithMode(path, fs.FileMode.IsDir, "directory")
}

func existsWithMode(path string, want func(fs.FileMode) bool, what string) (bool, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !want(fileInfo.Mode()) {
		return false, fmt.Errorf("%s not a %s", path, what)
	}
	return true, nil
}

// GetChildren returns the pids of the direct children of pid, read from the
// proc filesystem mounted at procPath.
func GetChildren(procPath string, pid int) ([]int, error) {
	pfs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, err
	}
	procs, err := pfs.AllProcs()
	if err != nil {
		return nil, err
	}
	var children []int
	for _, p := range procs {
		stat, err := p.Stat()
		if err != nil {
			// exited while we were looking
			continue
		}
		if stat.PPID == pid {
			children = append(children, p.PID)
		}
	}
	return children, nil
}

// SignalChildren sends a signal to all children of this process
func SignalChildren(sig os.Signal) {
	children, err := GetChildren(procfs.DefaultMountPoint, os.Getpid())
	if err != nil {
		slog.Error("failed to get child processes", slog.String("error", err.Error()))
		return
	}
	for _, pid := range children {
		proc, err := os.FindProcess(pid)
		if err != nil {
			slog.Error("failed to find process", slog.Int("pid", pid), slog.String("error", err.Error()))
			continue
		}
		slog.Info("sending signal to child process", slog.Int("pid", pid), slog.String("signal", sig.String()))
		if err := proc.Signal(sig); err != nil {
			slog.Error("failed to send signal to process", slog.Int("pid", pid), slog.String("error", err.Error()))
		}
	}
}
