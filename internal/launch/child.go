package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// Exit codes of a helper that never ran the command.
const (
	// ExitAborted means the barrier was closed without a release.
	ExitAborted = 125
	// ExitSync means the handshake failed on the helper side.
	ExitSync = 126
	// ExitExecFailed means the command could not replace the helper.
	ExitExecFailed = 127
)

func init() {
	// counters attach to the pid, which is the main thread. Exec from any
	// other thread would hand the pid to a new task.
	if _, ok := os.LookupEnv(childEnv); ok {
		runtime.LockOSThread()
	}
}

// Init turns the process into the barrier helper when it was started by
// Start and never returns in that case. Otherwise it returns immediately.
// Call it first in main, and in TestMain of packages that launch commands.
func Init() {
	path, ok := os.LookupEnv(childEnv)
	if !ok {
		return
	}
	os.Exit(runHelper(path))
}

func runHelper(path string) int {
	if n, err := retryEINTR(func() (int, error) { return unix.Write(readyFd, []byte{readyByte}) }); err != nil || n != 1 {
		fmt.Fprintf(os.Stderr, "barrier: ready signal: wrote %d of 1 bytes: %v\n", n, err)
		return ExitSync
	}
	unix.Close(readyFd)
	buf := make([]byte, 1)
	n, err := retryEINTR(func() (int, error) { return unix.Read(releaseFd, buf) })
	if err != nil {
		fmt.Fprintf(os.Stderr, "barrier: release signal: %v\n", err)
		return ExitSync
	}
	if n == 0 {
		return ExitAborted
	}
	if buf[0] != releaseByte {
		fmt.Fprintf(os.Stderr, "barrier: unexpected release byte %#x\n", buf[0])
		return ExitSync
	}
	unix.Close(releaseFd)
	err = unix.Exec(path, os.Args, withoutMarker(os.Environ()))
	fmt.Fprintf(os.Stderr, "barrier: exec %s: %v\n", path, err)
	return ExitExecFailed
}

func retryEINTR(f func() (int, error)) (int, error) {
	for {
		n, err := f()
		if err != unix.EINTR {
			return n, err
		}
	}
}
