package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Errors returned by counter handles and events. Kernel errors are wrapped
// alongside these, so errors.Is works for both the class and the errno.
var (
	// ErrOpen means perf_event_open failed and no handle exists.
	ErrOpen = errors.New("perf_event_open failed")
	// ErrControl means an ioctl on an open counter failed.
	ErrControl = errors.New("counter control failed")
	// ErrInvalidArgument is returned before the kernel is called.
	ErrInvalidArgument = errors.New("invalid counter argument")
	// ErrID means the kernel reported a zero counter id.
	ErrID = errors.New("counter id unavailable")
	// ErrRead means the count could not be read in full.
	ErrRead = errors.New("counter read failed")
	// ErrNotImplemented marks reserved operations.
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnknownEvent means the event kind is not in the catalog.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrClosed is returned for operations on a closed handle.
	ErrClosed = errors.New("counter handle closed")
)

// IsUnsupported reports whether err means the host cannot count the requested
// event at all, e.g., no PMU in a virtual machine or an unknown config.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnknownEvent) ||
		errors.Is(err, unix.ENOENT) ||
		errors.Is(err, unix.ENODEV) ||
		errors.Is(err, unix.EOPNOTSUPP) ||
		errors.Is(err, unix.ENOSYS)
}

// IsPermission reports whether err was caused by missing privileges or a
// restrictive kernel.perf_event_paranoid setting.
func IsPermission(err error) bool {
	return errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM)
}
