package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "fmt"

// Event binds one catalog entry to an open counter for a target process.
type Event struct {
	kind   EventKind
	handle *Handle
}

// NewEvent opens a disabled counter for kind on pid (CallingProcess for the
// caller).
func NewEvent(kind EventKind, pid int) (*Event, error) {
	attr, err := AttributeFor(kind)
	if err != nil {
		return nil, err
	}
	handle, err := Open(attr, pid, AnyCPU, NoGroup)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return &Event{kind: kind, handle: handle}, nil
}

func (e *Event) Kind() EventKind {
	return e.kind
}

// StartCounter enables the counter and then reads it. Reading first would
// return whatever a previous arming accumulated.
func (e *Event) StartCounter() (int64, error) {
	if err := e.handle.Enable(); err != nil {
		return 0, err
	}
	return e.handle.Read()
}

// StopCounter disables the counter and then reads the frozen value. Calling
// it again returns the same value.
func (e *Event) StopCounter() (int64, error) {
	if err := e.handle.Disable(); err != nil {
		return 0, err
	}
	return e.handle.Read()
}

// ID returns the kernel identifier of the underlying counter.
func (e *Event) ID() (uint64, error) {
	return e.handle.ID()
}

// Close releases the counter.
func (e *Event) Close() error {
	return e.handle.Close()
}
