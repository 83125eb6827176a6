//go:build ppc64 || ppc64le || mips || mipsle || mips64 || mips64le

package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// arch/powerpc/include/uapi/asm/ioctl.h and arch/mips/include/uapi/asm/ioctl.h
const (
	iocSizeBits = 13

	iocNone  = 1
	iocRead  = 2
	iocWrite = 4
)
