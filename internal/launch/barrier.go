// Package launch starts a command stopped behind a two-pipe barrier, so a
// caller can attach to its pid before any instruction of the command runs.
package launch

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// selfExe is re-executed as the barrier helper. The helper keeps the pid and
// replaces itself with the requested command once released.
const selfExe = "/proc/self/exe"

// childEnv carries the resolved command path to the helper and marks the
// process as one.
const childEnv = "PERFSTAT_BARRIER_CHILD"

// extra file descriptors handed to the helper, after stdin, stdout and stderr
const (
	releaseFd = 3
	readyFd   = 4
)

const (
	readyByte   = 'R'
	releaseByte = 'G'
)

var (
	// ErrLaunch means the command could not be started.
	ErrLaunch = errors.New("failed to launch command")
	// ErrSync means the barrier handshake did not transfer exactly one byte.
	ErrSync = errors.New("launch barrier protocol violation")
)

// Options for the launched command. Nil readers and writers mean /dev/null.
// A nil Env means the current environment.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
	Dir    string
}

// Barrier is one launched, not yet released command.
type Barrier struct {
	path     string
	cmd      *exec.Cmd
	ready    *os.File // read end, helper writes one byte when it is waiting
	release  *os.File // write end, one byte lets the helper exec the command
	isReady  bool
	released bool
	state    *os.ProcessState
}

// Start launches argv behind the barrier and returns once the helper process
// exists. argv[0] is resolved through PATH before anything is started.
func Start(argv []string, opts Options) (*Barrier, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: empty command", ErrLaunch)
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	releaseR, releaseW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: release pipe: %w", ErrLaunch, err)
	}
	readyR, readyW, err := os.Pipe()
	if err != nil {
		releaseR.Close()
		releaseW.Close()
		return nil, fmt.Errorf("%w: ready pipe: %w", ErrLaunch, err)
	}
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}
	cmd := &exec.Cmd{
		Path:       selfExe,
		Args:       argv,
		Env:        append(withoutMarker(env), childEnv+"="+path),
		Dir:        opts.Dir,
		Stdin:      opts.Stdin,
		Stdout:     opts.Stdout,
		Stderr:     opts.Stderr,
		ExtraFiles: []*os.File{releaseR, readyW},
	}
	err = cmd.Start()
	// the helper holds its own copies of these ends
	releaseR.Close()
	readyW.Close()
	if err != nil {
		releaseW.Close()
		readyR.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrLaunch, path, err)
	}
	slog.Debug("started barrier helper", slog.String("command", strings.Join(argv, " ")), slog.String("path", path), slog.Int("pid", cmd.Process.Pid))
	return &Barrier{path: path, cmd: cmd, ready: readyR, release: releaseW}, nil
}

// Path is the resolved executable the helper will replace itself with.
func (b *Barrier) Path() string {
	return b.path
}

// Pid of the launched process. It stays the same after the command replaces
// the helper.
func (b *Barrier) Pid() int {
	return b.cmd.Process.Pid
}

// WaitReady blocks until the helper reports that it is waiting for release.
func (b *Barrier) WaitReady() error {
	if b.isReady {
		return nil
	}
	buf := make([]byte, 1)
	n, err := io.ReadFull(b.ready, buf)
	b.ready.Close()
	if err != nil {
		return fmt.Errorf("%w: ready signal: read %d of 1 bytes: %w", ErrSync, n, err)
	}
	if buf[0] != readyByte {
		return fmt.Errorf("%w: unexpected ready byte %#x", ErrSync, buf[0])
	}
	b.isReady = true
	return nil
}

// Release lets the helper exec the command. The returned time is taken
// immediately before the release byte is written.
func (b *Barrier) Release() (time.Time, error) {
	if !b.isReady {
		return time.Time{}, fmt.Errorf("%w: release before ready", ErrSync)
	}
	if b.released {
		return time.Time{}, fmt.Errorf("%w: already released", ErrSync)
	}
	now := time.Now()
	n, err := b.release.Write([]byte{releaseByte})
	b.release.Close()
	b.released = true
	if err != nil || n != 1 {
		return now, fmt.Errorf("%w: release signal: wrote %d of 1 bytes: %v", ErrSync, n, err)
	}
	return now, nil
}

// Wait blocks until the process exits and returns its state. A non-zero exit
// status is not an error.
func (b *Barrier) Wait() (*os.ProcessState, error) {
	if b.state != nil {
		return b.state, nil
	}
	err := b.cmd.Wait()
	b.state = b.cmd.ProcessState
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return b.state, err
	}
	slog.Debug("command exited", slog.Int("pid", b.state.Pid()), slog.String("status", b.state.String()))
	return b.state, nil
}

// Abort ends the launch and reaps the process. An unreleased helper exits
// without running the command; a released command is killed.
func (b *Barrier) Abort() (*os.ProcessState, error) {
	if b.state != nil {
		return b.state, nil
	}
	if !b.isReady {
		b.ready.Close()
	}
	if !b.released {
		// the helper reads EOF and exits
		b.release.Close()
		b.released = true
	} else if err := b.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("failed to kill command", slog.Int("pid", b.Pid()), slog.String("error", err.Error()))
	}
	return b.Wait()
}

func withoutMarker(env []string) []string {
	return slices.DeleteFunc(slices.Clone(env), func(kv string) bool {
		return strings.HasPrefix(kv, childEnv+"=")
	})
}
