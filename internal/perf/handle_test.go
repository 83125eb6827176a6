package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeKernel replaces the syscall entry points for the duration of a test
type fakeKernel struct {
	calls    []ioctlCmd
	args     []uintptr
	ioctlErr error
	id       uint64
	count    uint64
	readLen  int
	readErr  error
	closed   []int
	openAttr *unix.PerfEventAttr
	openPid  int
	openErr  error
}

func installFakeKernel(t *testing.T) *fakeKernel {
	t.Helper()
	fk := &fakeKernel{readLen: 8}
	origOpen, origIoctl, origIoctlInt, origRead, origClose := sysPerfEventOpen, sysIoctl, sysIoctlInt, sysRead, sysClose
	t.Cleanup(func() {
		sysPerfEventOpen, sysIoctl, sysIoctlInt, sysRead, sysClose = origOpen, origIoctl, origIoctlInt, origRead, origClose
	})
	sysPerfEventOpen = func(attr *unix.PerfEventAttr, pid int, cpu int, group int, flags int) (int, error) {
		fk.openAttr = attr
		fk.openPid = pid
		if fk.openErr != nil {
			return -1, fk.openErr
		}
		return 42, nil
	}
	sysIoctl = func(fd int, cmd ioctlCmd, arg unsafe.Pointer) error {
		fk.calls = append(fk.calls, cmd)
		if fk.ioctlErr != nil {
			return fk.ioctlErr
		}
		switch cmd {
		case ioctlID:
			*(*uint64)(arg) = fk.id
		case ioctlPeriod:
			fk.args = append(fk.args, uintptr(*(*uint64)(arg)))
		}
		return nil
	}
	sysIoctlInt = func(fd int, cmd ioctlCmd, arg uintptr) error {
		fk.calls = append(fk.calls, cmd)
		fk.args = append(fk.args, arg)
		return fk.ioctlErr
	}
	sysRead = func(fd int, p []byte) (int, error) {
		if fk.readErr != nil {
			return -1, fk.readErr
		}
		binary.NativeEndian.PutUint64(p, fk.count)
		return fk.readLen, nil
	}
	sysClose = func(fd int) error {
		fk.closed = append(fk.closed, fd)
		return nil
	}
	return fk
}

func TestOpenSetsAttributeBits(t *testing.T) {
	fk := installFakeKernel(t)
	attr, err := AttributeFor(ContextSwitches)
	require.NoError(t, err)
	h, err := Open(attr, 1234, AnyCPU, NoGroup)
	require.NoError(t, err)
	assert.Equal(t, 42, h.Fd())
	assert.Equal(t, 1234, fk.openPid)
	assert.Equal(t, uint32(unix.PERF_TYPE_SOFTWARE), fk.openAttr.Type)
	assert.Equal(t, uint64(unix.PERF_COUNT_SW_CONTEXT_SWITCHES), fk.openAttr.Config)
	assert.Equal(t, uint32(unsafe.Sizeof(unix.PerfEventAttr{})), fk.openAttr.Size)
	assert.NotZero(t, fk.openAttr.Bits&unix.PerfBitDisabled)
	assert.NotZero(t, fk.openAttr.Bits&unix.PerfBitExcludeHv)
	assert.Zero(t, fk.openAttr.Bits&unix.PerfBitExcludeKernel)
}

func TestOpenFailure(t *testing.T) {
	fk := installFakeKernel(t)
	fk.openErr = unix.EACCES
	h, err := Open(Attribute{Type: TypeHardware}, CallingProcess, AnyCPU, NoGroup)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrOpen)
	assert.True(t, IsPermission(err))
	assert.False(t, IsUnsupported(err))

	fk.openErr = unix.ENOENT
	_, err = Open(Attribute{Type: TypeHardware}, CallingProcess, AnyCPU, NoGroup)
	assert.True(t, IsUnsupported(err))
}

func TestControlCommands(t *testing.T) {
	fk := installFakeKernel(t)
	h := &Handle{fd: 7}
	require.NoError(t, h.Enable())
	require.NoError(t, h.Disable())
	require.NoError(t, h.Reset())
	require.NoError(t, h.Refresh(3))
	require.NoError(t, h.SetPeriod(1000))
	assert.Equal(t, []ioctlCmd{ioctlEnable, ioctlDisable, ioctlReset, ioctlRefresh, ioctlPeriod}, fk.calls)
	assert.Equal(t, []uintptr{0, 0, 0, 3, 1000}, fk.args)
}

func TestControlFailure(t *testing.T) {
	fk := installFakeKernel(t)
	fk.ioctlErr = unix.EINVAL
	h := &Handle{fd: 7}
	for name, op := range map[string]func() error{
		"enable":  h.Enable,
		"disable": h.Disable,
		"reset":   h.Reset,
		"refresh": func() error { return h.Refresh(1) },
		"period":  func() error { return h.SetPeriod(1) },
	} {
		err := op()
		assert.ErrorIs(t, err, ErrControl, name)
		assert.ErrorIs(t, err, unix.EINVAL, name)
	}
	_, err := h.ID()
	assert.ErrorIs(t, err, ErrControl)
	assert.NotErrorIs(t, err, ErrID)
}

func TestRefreshZeroIsRejectedBeforeKernel(t *testing.T) {
	fk := installFakeKernel(t)
	h := &Handle{fd: 7}
	err := h.Refresh(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Empty(t, fk.calls)
}

func TestIDZeroIsAnError(t *testing.T) {
	fk := installFakeKernel(t)
	h := &Handle{fd: 7}
	id, err := h.ID()
	assert.ErrorIs(t, err, ErrID)
	assert.Zero(t, id)

	fk.id = 99
	id, err = h.ID()
	require.NoError(t, err)
	assert.Equal(t, uint64(99), id)
}

func TestRead(t *testing.T) {
	fk := installFakeKernel(t)
	h := &Handle{fd: 7}
	fk.count = 123456
	count, err := h.Read()
	require.NoError(t, err)
	assert.Equal(t, int64(123456), count)

	fk.readLen = 4
	_, err = h.Read()
	assert.ErrorIs(t, err, ErrRead)

	fk.readLen = 8
	fk.readErr = unix.EIO
	_, err = h.Read()
	assert.ErrorIs(t, err, ErrRead)
	assert.NotErrorIs(t, err, ErrControl)
}

func TestCloseOnce(t *testing.T) {
	fk := installFakeKernel(t)
	h := &Handle{fd: 7}
	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Close(), ErrClosed)
	assert.Equal(t, []int{7}, fk.closed)
	assert.Equal(t, -1, h.Fd())
	assert.ErrorIs(t, h.Enable(), ErrClosed)
	_, err := h.Read()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.Dup()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReservedOperations(t *testing.T) {
	fk := installFakeKernel(t)
	h := &Handle{fd: 7}
	assert.ErrorIs(t, h.SetOutput(&Handle{fd: 8}), ErrNotImplemented)
	assert.ErrorIs(t, h.IgnoreOutput(), ErrNotImplemented)
	assert.ErrorIs(t, h.PauseOutput(), ErrNotImplemented)
	assert.ErrorIs(t, h.ResumeOutput(), ErrNotImplemented)
	assert.ErrorIs(t, h.SetFilter("common_pid == 1"), ErrNotImplemented)
	assert.ErrorIs(t, h.SetBPF(3), ErrNotImplemented)
	assert.ErrorIs(t, h.ModifyAttributes(Attribute{}), ErrNotImplemented)
	_, err := h.QueryBPF(8)
	assert.ErrorIs(t, err, ErrNotImplemented)
	assert.Empty(t, fk.calls)
}

func TestEventStartStopOrdering(t *testing.T) {
	fk := installFakeKernel(t)
	ev, err := NewEvent(Instructions, 555)
	require.NoError(t, err)
	fk.count = 10
	start, err := ev.StartCounter()
	require.NoError(t, err)
	fk.count = 25
	stop, err := ev.StopCounter()
	require.NoError(t, err)
	assert.Equal(t, int64(15), stop-start)
	assert.Equal(t, []ioctlCmd{ioctlEnable, ioctlDisable}, fk.calls)
	assert.Equal(t, Instructions, ev.Kind())
	require.NoError(t, ev.Close())
	assert.Equal(t, []int{42}, fk.closed)
}

func TestNewEventUnknownKindDoesNotOpen(t *testing.T) {
	fk := installFakeKernel(t)
	_, err := NewEvent(numEventKinds, CallingProcess)
	assert.ErrorIs(t, err, ErrUnknownEvent)
	assert.Nil(t, fk.openAttr)
}
