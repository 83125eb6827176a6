// Package session measures one command: it launches the command behind a
// barrier, arms one counter per event on its pid, releases it, waits for it
// to exit and collects the counts.
package session

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"
	"time"

	"perfstat/internal/launch"
	"perfstat/internal/perf"

	mapset "github.com/deckarep/golang-set/v2"
)

// State of a session. A session moves through the states in order and never
// goes back.
type State int

const (
	Idle State = iota
	ChildLaunched
	CountersArmed
	ChildRunning
	ChildExited
	Reported
)

var stateNames = [...]string{"idle", "child launched", "counters armed", "child running", "child exited", "reported"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// ErrState is returned when Run is called on a session that already ran.
var ErrState = errors.New("session already ran")

// Observer is called at every state transition with the time it happened.
type Observer func(State, time.Time)

// Options for a session. Events defaults to perf.DefaultKinds.
type Options struct {
	Command  []string
	Events   []perf.EventKind
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Env      []string
	Observer Observer
}

// Counter is the measurement of one event over the life of the command.
type Counter struct {
	Kind  perf.EventKind
	Start int64
	Stop  int64
	// Utilization is the counted time over the elapsed wall time, set for
	// time events only.
	Utilization float64
	event       *perf.Event
}

// Delta is the count accumulated while the command ran.
func (c Counter) Delta() int64 {
	return c.Stop - c.Start
}

// Event returns the underlying event. It is valid until the session is
// closed.
func (c Counter) Event() *perf.Event {
	return c.event
}

// Result of a measured run.
type Result struct {
	Command  []string
	Pid      int
	ExitCode int
	// Signal is set when the command was terminated by a signal.
	Signal   syscall.Signal
	Started  time.Time
	Elapsed  time.Duration
	Counters []Counter
}

// Success reports whether the command exited with status zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0 && r.Signal == 0
}

// Counter returns the counter for kind.
func (r *Result) Counter(kind perf.EventKind) (Counter, bool) {
	for _, c := range r.Counters {
		if c.Kind == kind {
			return c, true
		}
	}
	return Counter{}, false
}

// newEvent opens the counter for one kind, replaced in tests.
var newEvent = perf.NewEvent

// Session measures a single run of a command.
type Session struct {
	opts   Options
	kinds  []perf.EventKind
	state  State
	events []*perf.Event
}

// New validates opts and returns an idle session.
func New(opts Options) (*Session, error) {
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("%w: empty command", launch.ErrLaunch)
	}
	kinds := opts.Events
	if len(kinds) == 0 {
		kinds = perf.DefaultKinds()
	}
	kinds = dedup(kinds)
	for _, kind := range kinds {
		if _, err := perf.AttributeFor(kind); err != nil {
			return nil, err
		}
	}
	return &Session{opts: opts, kinds: kinds}, nil
}

// Kinds returns the events the session will count, in report order.
func (s *Session) Kinds() []perf.EventKind {
	return s.kinds
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) transition(next State, at time.Time) {
	slog.Debug("session state", slog.String("from", s.state.String()), slog.String("to", next.String()))
	s.state = next
	if s.opts.Observer != nil {
		s.opts.Observer(next, at)
	}
}

// Run launches the command, counts it until it exits and returns the result.
// On any error after the launch the command is reaped before Run returns.
// Counters stay open until Close.
func (s *Session) Run() (*Result, error) {
	if s.state != Idle {
		return nil, ErrState
	}
	barrier, err := launch.Start(s.opts.Command, launch.Options{
		Stdin:  s.opts.Stdin,
		Stdout: s.opts.Stdout,
		Stderr: s.opts.Stderr,
		Env:    s.opts.Env,
	})
	if err != nil {
		return nil, err
	}
	s.transition(ChildLaunched, time.Now())
	if err := barrier.WaitReady(); err != nil {
		return nil, s.abort(barrier, err)
	}
	pid := barrier.Pid()
	counters := make([]Counter, 0, len(s.kinds))
	for _, kind := range s.kinds {
		ev, err := newEvent(kind, pid)
		if err != nil {
			return nil, s.abort(barrier, err)
		}
		s.events = append(s.events, ev)
		counters = append(counters, Counter{Kind: kind, event: ev})
	}
	for i := range counters {
		if counters[i].Start, err = counters[i].event.StartCounter(); err != nil {
			return nil, s.abort(barrier, fmt.Errorf("%s: %w", counters[i].Kind, err))
		}
	}
	s.transition(CountersArmed, time.Now())
	started, err := barrier.Release()
	if err != nil {
		return nil, s.abort(barrier, err)
	}
	s.transition(ChildRunning, started)
	state, err := barrier.Wait()
	exited := time.Now()
	if err != nil {
		return nil, s.abort(barrier, fmt.Errorf("%w: wait for pid %d: %w", launch.ErrLaunch, pid, err))
	}
	s.transition(ChildExited, exited)
	result := &Result{
		Command:  s.opts.Command,
		Pid:      pid,
		ExitCode: state.ExitCode(),
		Started:  started,
		Elapsed:  exited.Sub(started),
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		result.Signal = ws.Signal()
	}
	if result.ExitCode == launch.ExitExecFailed {
		slog.Warn("command may have failed to execute", slog.String("command", strings.Join(s.opts.Command, " ")), slog.Int("exit code", result.ExitCode))
	}
	for i := range counters {
		if counters[i].Stop, err = counters[i].event.StopCounter(); err != nil {
			return nil, fmt.Errorf("%s: %w", counters[i].Kind, err)
		}
		if counters[i].Kind.IsTime() && result.Elapsed > 0 {
			counters[i].Utilization = float64(counters[i].Delta()) / float64(result.Elapsed.Nanoseconds())
		}
	}
	result.Counters = counters
	s.transition(Reported, time.Now())
	return result, nil
}

// abort reaps the command and releases the counters opened so far.
func (s *Session) abort(barrier *launch.Barrier, cause error) error {
	state, err := barrier.Abort()
	if err != nil {
		slog.Error("failed to reap command", slog.Int("pid", barrier.Pid()), slog.String("error", err.Error()))
	} else {
		slog.Debug("aborted command", slog.Int("pid", barrier.Pid()), slog.String("status", state.String()))
	}
	s.Close()
	return cause
}

// Close releases all counters. Results already returned stay valid but their
// events are no longer usable.
func (s *Session) Close() {
	for _, ev := range s.events {
		if err := ev.Close(); err != nil && !errors.Is(err, perf.ErrClosed) {
			slog.Warn("failed to close counter", slog.String("event", ev.Kind().String()), slog.String("error", err.Error()))
		}
	}
	s.events = nil
}

// Measure runs a session for opts and closes it.
func Measure(opts Options) (*Result, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Run()
}

func dedup(kinds []perf.EventKind) []perf.EventKind {
	seen := mapset.NewThreadUnsafeSet[perf.EventKind]()
	out := make([]perf.EventKind, 0, len(kinds))
	for _, k := range kinds {
		if seen.Add(k) {
			out = append(out, k)
		}
	}
	return out
}
