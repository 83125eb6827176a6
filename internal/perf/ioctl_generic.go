//go:build 386 || amd64 || arm || arm64 || riscv64 || s390x || loong64

package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// include/uapi/asm-generic/ioctl.h
const (
	iocSizeBits = 14

	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)
