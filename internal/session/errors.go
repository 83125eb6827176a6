package session

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"

	"perfstat/internal/launch"
	"perfstat/internal/perf"
)

// ErrorClass groups session errors by the remedy they need.
type ErrorClass int

const (
	ClassUnknown ErrorClass = iota
	// ClassUnsupported: the host cannot count the event at all.
	ClassUnsupported
	// ClassPermission: privileges or perf_event_paranoid forbid counting.
	ClassPermission
	// ClassControl: the kernel rejected an operation on an open counter.
	ClassControl
	// ClassRead: a count could not be read.
	ClassRead
	// ClassLaunch: the command could not be started.
	ClassLaunch
	// ClassSync: the launch handshake broke, the counts would be meaningless.
	ClassSync
)

var classNames = [...]string{"error", "event not supported", "permission denied", "counter control failed", "counter read failed", "launch failed", "synchronization failed"}

func (c ErrorClass) String() string {
	if c < 0 || int(c) >= len(classNames) {
		return classNames[ClassUnknown]
	}
	return classNames[c]
}

// Classify returns the class of an error returned by a session.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassUnknown
	case errors.Is(err, launch.ErrSync):
		return ClassSync
	case errors.Is(err, launch.ErrLaunch):
		return ClassLaunch
	case perf.IsPermission(err):
		return ClassPermission
	case perf.IsUnsupported(err):
		return ClassUnsupported
	case errors.Is(err, perf.ErrOpen):
		// EINVAL and friends from perf_event_open mean the attribute is not
		// accepted by this PMU
		return ClassUnsupported
	case errors.Is(err, perf.ErrRead):
		return ClassRead
	case errors.Is(err, perf.ErrControl), errors.Is(err, perf.ErrInvalidArgument), errors.Is(err, perf.ErrID):
		return ClassControl
	}
	return ClassUnknown
}
