package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// ioctl request numbers for perf event descriptors, encoded the same way as
// _IO/_IOR/_IOW/_IOWR in include/uapi/asm-generic/ioctl.h. The direction
// values and the width of the size field differ by architecture family, see
// ioctl_generic.go and ioctl_power.go.

import (
	"fmt"
	"unsafe"
)

const (
	iocNrBits   = 8
	iocTypeBits = 8

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// perfIocMagic is the ioctl type byte shared by all PERF_EVENT_IOC_* commands.
const perfIocMagic = '$'

const (
	sizeofUint32  = 4
	sizeofUint64  = 8
	sizeofPointer = unsafe.Sizeof(uintptr(0))
)

type ioctlCmd uint32

const (
	ioctlEnable           = ioctlCmd(iocNone<<iocDirShift | perfIocMagic<<iocTypeShift | 0<<iocNrShift)
	ioctlDisable          = ioctlCmd(iocNone<<iocDirShift | perfIocMagic<<iocTypeShift | 1<<iocNrShift)
	ioctlRefresh          = ioctlCmd(iocNone<<iocDirShift | perfIocMagic<<iocTypeShift | 2<<iocNrShift)
	ioctlReset            = ioctlCmd(iocNone<<iocDirShift | perfIocMagic<<iocTypeShift | 3<<iocNrShift)
	ioctlPeriod           = ioctlCmd(iocWrite<<iocDirShift | perfIocMagic<<iocTypeShift | 4<<iocNrShift | sizeofUint64<<iocSizeShift)
	ioctlSetOutput        = ioctlCmd(iocNone<<iocDirShift | perfIocMagic<<iocTypeShift | 5<<iocNrShift)
	ioctlSetFilter        = ioctlCmd(iocWrite<<iocDirShift | perfIocMagic<<iocTypeShift | 6<<iocNrShift | sizeofPointer<<iocSizeShift)
	ioctlID               = ioctlCmd(iocRead<<iocDirShift | perfIocMagic<<iocTypeShift | 7<<iocNrShift | sizeofPointer<<iocSizeShift)
	ioctlSetBPF           = ioctlCmd(iocWrite<<iocDirShift | perfIocMagic<<iocTypeShift | 8<<iocNrShift | sizeofUint32<<iocSizeShift)
	ioctlPauseOutput      = ioctlCmd(iocWrite<<iocDirShift | perfIocMagic<<iocTypeShift | 9<<iocNrShift | sizeofUint32<<iocSizeShift)
	ioctlQueryBPF         = ioctlCmd((iocRead|iocWrite)<<iocDirShift | perfIocMagic<<iocTypeShift | 10<<iocNrShift | sizeofPointer<<iocSizeShift)
	ioctlModifyAttributes = ioctlCmd(iocWrite<<iocDirShift | perfIocMagic<<iocTypeShift | 11<<iocNrShift | sizeofPointer<<iocSizeShift)
)

var ioctlNames = map[ioctlCmd]string{
	ioctlEnable:           "PERF_EVENT_IOC_ENABLE",
	ioctlDisable:          "PERF_EVENT_IOC_DISABLE",
	ioctlRefresh:          "PERF_EVENT_IOC_REFRESH",
	ioctlReset:            "PERF_EVENT_IOC_RESET",
	ioctlPeriod:           "PERF_EVENT_IOC_PERIOD",
	ioctlSetOutput:        "PERF_EVENT_IOC_SET_OUTPUT",
	ioctlSetFilter:        "PERF_EVENT_IOC_SET_FILTER",
	ioctlID:               "PERF_EVENT_IOC_ID",
	ioctlSetBPF:           "PERF_EVENT_IOC_SET_BPF",
	ioctlPauseOutput:      "PERF_EVENT_IOC_PAUSE_OUTPUT",
	ioctlQueryBPF:         "PERF_EVENT_IOC_QUERY_BPF",
	ioctlModifyAttributes: "PERF_EVENT_IOC_MODIFY_ATTRIBUTES",
}

func (c ioctlCmd) String() string {
	if name, ok := ioctlNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ioctl(%#x)", uint32(c))
}

// nr returns the command index within the '$' family
func (c ioctlCmd) nr() uint32 {
	return (uint32(c) >> iocNrShift) & (1<<iocNrBits - 1)
}

// size returns the argument size encoded in the command word
func (c ioctlCmd) size() uint32 {
	return (uint32(c) >> iocSizeShift) & (1<<iocSizeBits - 1)
}

// dir returns the direction bits encoded in the command word
func (c ioctlCmd) dir() uint32 {
	return uint32(c) >> iocDirShift
}
