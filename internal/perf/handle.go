package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// CallingProcess targets the process that opens the counter.
	CallingProcess = 0
	// AnyCPU counts the target on whichever CPU it runs.
	AnyCPU = -1
	// NoGroup opens the counter as its own group leader.
	NoGroup = -1
)

// kernel entry points, replaced in tests
var (
	sysPerfEventOpen = unix.PerfEventOpen
	sysIoctl         = func(fd int, cmd ioctlCmd, arg unsafe.Pointer) error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(cmd), uintptr(arg))
		if errno != 0 {
			return errno
		}
		return nil
	}
	sysIoctlInt = func(fd int, cmd ioctlCmd, arg uintptr) error {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(cmd), arg)
		if errno != 0 {
			return errno
		}
		return nil
	}
	sysRead  = unix.Read
	sysClose = unix.Close
)

// Handle owns one perf event file descriptor. The descriptor is closed
// exactly once by Close; a Handle must not be copied.
type Handle struct {
	fd int
}

// Open opens a counter described by attr for pid (CallingProcess for the
// caller), on cpu (AnyCPU) and group (NoGroup). There is no usable handle on
// failure.
func Open(attr Attribute, pid int, cpu int, group int) (*Handle, error) {
	fd, err := sysPerfEventOpen(attr.sysAttr(), pid, cpu, group, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("%w: type %s config %#x pid %d: %w", ErrOpen, attr.Type, attr.Config, pid, err)
	}
	slog.Debug("opened perf event", slog.Int("fd", fd), slog.String("type", attr.Type.String()), slog.String("config", fmt.Sprintf("%#x", attr.Config)), slog.Int("pid", pid))
	return &Handle{fd: fd}, nil
}

func (a Attribute) sysAttr() *unix.PerfEventAttr {
	var bits uint64
	if a.Disabled {
		bits |= unix.PerfBitDisabled
	}
	if a.Inherit {
		bits |= unix.PerfBitInherit
	}
	if a.ExcludeKernel {
		bits |= unix.PerfBitExcludeKernel
	}
	if a.ExcludeHV {
		bits |= unix.PerfBitExcludeHv
	}
	return &unix.PerfEventAttr{
		Type:   uint32(a.Type),
		Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config: a.Config,
		Bits:   bits,
	}
}

// Fd returns the raw descriptor, or -1 once closed. The Handle keeps ownership.
func (h *Handle) Fd() int {
	return h.fd
}

func (h *Handle) control(cmd ioctlCmd, arg uintptr) error {
	if h.fd < 0 {
		return ErrClosed
	}
	if err := sysIoctlInt(h.fd, cmd, arg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrControl, cmd, err)
	}
	return nil
}

func (h *Handle) controlPtr(cmd ioctlCmd, arg unsafe.Pointer) error {
	if h.fd < 0 {
		return ErrClosed
	}
	if err := sysIoctl(h.fd, cmd, arg); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrControl, cmd, err)
	}
	return nil
}

// Enable starts counting.
func (h *Handle) Enable() error {
	return h.control(ioctlEnable, 0)
}

// Disable stops counting. The accumulated value is kept.
func (h *Handle) Disable() error {
	return h.control(ioctlDisable, 0)
}

// Reset sets the count to zero.
func (h *Handle) Reset() error {
	return h.control(ioctlReset, 0)
}

// Refresh allows count more overflows before the counter disables itself.
// Zero is undefined for the kernel and is rejected here.
func (h *Handle) Refresh(count uint32) error {
	if count == 0 {
		return fmt.Errorf("%w: refresh count must be non-zero", ErrInvalidArgument)
	}
	return h.control(ioctlRefresh, uintptr(count))
}

// SetPeriod changes the overflow period.
func (h *Handle) SetPeriod(interval uint64) error {
	return h.controlPtr(ioctlPeriod, unsafe.Pointer(&interval))
}

// ID returns the kernel assigned identifier of the counter.
func (h *Handle) ID() (uint64, error) {
	var id uint64
	if err := h.controlPtr(ioctlID, unsafe.Pointer(&id)); err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrID
	}
	return id, nil
}

// Read returns the current count. It is valid whether or not the counter is
// enabled.
func (h *Handle) Read() (int64, error) {
	if h.fd < 0 {
		return 0, ErrClosed
	}
	var buf [sizeofUint64]byte
	n, err := sysRead(h.fd, buf[:])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRead, err)
	}
	if n != len(buf) {
		return 0, fmt.Errorf("%w: read %d of %d bytes", ErrRead, n, len(buf))
	}
	return int64(binary.NativeEndian.Uint64(buf[:])), nil
}

// Dup returns a new Handle on a duplicate descriptor for the same counter.
func (h *Handle) Dup() (*Handle, error) {
	if h.fd < 0 {
		return nil, ErrClosed
	}
	fd, err := unix.FcntlInt(uintptr(h.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: dup: %w", ErrControl, err)
	}
	return &Handle{fd: fd}, nil
}

// Close releases the descriptor. Later calls return ErrClosed.
func (h *Handle) Close() error {
	if h.fd < 0 {
		return ErrClosed
	}
	fd := h.fd
	h.fd = -1
	return sysClose(fd)
}

// SetOutput, IgnoreOutput, PauseOutput, ResumeOutput, SetFilter, SetBPF,
// QueryBPF and ModifyAttributes need the ring buffer or BPF support, which
// this package does not implement. They return ErrNotImplemented.

// SetOutput redirects samples to the ring buffer of target. Not implemented.
func (h *Handle) SetOutput(target *Handle) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlSetOutput)
}

// IgnoreOutput stops sending samples to any ring buffer. Not implemented.
func (h *Handle) IgnoreOutput() error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlSetOutput)
}

// PauseOutput pauses writes to the ring buffer. Not implemented.
func (h *Handle) PauseOutput() error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlPauseOutput)
}

// ResumeOutput resumes writes to the ring buffer. Not implemented.
func (h *Handle) ResumeOutput() error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlPauseOutput)
}

// SetFilter sets a tracepoint filter. Not implemented.
func (h *Handle) SetFilter(filter string) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlSetFilter)
}

// SetBPF attaches a BPF program to a tracepoint event. Not implemented.
func (h *Handle) SetBPF(progFd int) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlSetBPF)
}

// QueryBPF lists the BPF program ids attached to the event. Not implemented.
func (h *Handle) QueryBPF(maxIDs uint32) ([]uint32, error) {
	return nil, fmt.Errorf("%w: %s", ErrNotImplemented, ioctlQueryBPF)
}

// ModifyAttributes changes the attributes of an open breakpoint event. Not implemented.
func (h *Handle) ModifyAttributes(attr Attribute) error {
	return fmt.Errorf("%w: %s", ErrNotImplemented, ioctlModifyAttributes)
}
