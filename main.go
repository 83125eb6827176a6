// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"perfstat/cmd"
	"perfstat/internal/launch"
)

func main() {
	// when started as the launch helper this execs the measured command and
	// never returns
	launch.Init()

	// profile only if the environment variable is set
	if os.Getenv("PERFSTAT_PROFILE") != "" {
		cpuFile, err := os.Create("cpu.prof")
		if err != nil {
			panic(err)
		}
		defer cpuFile.Close()

		if err := pprof.StartCPUProfile(cpuFile); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()

		memFile, err := os.Create("mem.prof")
		if err != nil {
			panic(err)
		}
		defer memFile.Close()
		defer func() {
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				panic(err)
			}
		}()
		defer func() {
			fmt.Fprintf(os.Stderr, "Profiling data written to cpu.prof and mem.prof\n")
			fmt.Fprintf(os.Stderr, "  go tool pprof -http=:8080 cpu.prof\n")
		}()
	}
	cmd.Execute()
}
