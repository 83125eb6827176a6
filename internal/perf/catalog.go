package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sys/unix"
)

// EventKind identifies one countable event.
type EventKind int

const (
	Cycles EventKind = iota
	Instructions
	TaskClock
	ContextSwitches
	L1DCacheRead
	L1DCacheWrite
	L1DCacheReadMiss
	L1ICacheReadMiss

	numEventKinds
)

// EventType is the perf_event_attr type field.
type EventType uint32

const (
	TypeHardware      EventType = unix.PERF_TYPE_HARDWARE
	TypeSoftware      EventType = unix.PERF_TYPE_SOFTWARE
	TypeHardwareCache EventType = unix.PERF_TYPE_HW_CACHE
)

func (t EventType) String() string {
	switch t {
	case TypeHardware:
		return "hardware"
	case TypeSoftware:
		return "software"
	case TypeHardwareCache:
		return "hardware-cache"
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

// Attribute is the subset of perf_event_attr this package configures.
type Attribute struct {
	Type          EventType
	Config        uint64
	Disabled      bool
	Inherit       bool
	ExcludeKernel bool
	ExcludeHV     bool
}

// cacheConfig packs a PERF_TYPE_HW_CACHE config value.
func cacheConfig(id, op, result uint64) uint64 {
	return id | op<<8 | result<<16
}

type catalogEntry struct {
	name        string
	aliases     []string
	description string
	unit        string
	attr        Attribute
}

// catalog is indexed by EventKind. A new kind needs one constant above and
// one entry here; TestCatalogComplete fails on a missing entry.
var catalog = [numEventKinds]catalogEntry{
	Cycles: {
		name:        "cycles",
		aliases:     []string{"cpu-cycles"},
		description: "CPU cycles",
		attr:        Attribute{Type: TypeHardware, Config: unix.PERF_COUNT_HW_CPU_CYCLES},
	},
	Instructions: {
		name:        "instructions",
		description: "retired instructions",
		attr:        Attribute{Type: TypeHardware, Config: unix.PERF_COUNT_HW_INSTRUCTIONS},
	},
	TaskClock: {
		name:        "task-clock",
		description: "time the task was on a CPU",
		unit:        "ns",
		attr:        Attribute{Type: TypeSoftware, Config: unix.PERF_COUNT_SW_TASK_CLOCK},
	},
	ContextSwitches: {
		name:        "context-switches",
		aliases:     []string{"cs"},
		description: "context switches, counted in kernel mode",
		attr:        Attribute{Type: TypeSoftware, Config: unix.PERF_COUNT_SW_CONTEXT_SWITCHES},
	},
	L1DCacheRead: {
		name:        "L1-dcache-loads",
		aliases:     []string{"L1D-cache-reads"},
		description: "L1 data cache read accesses",
		attr: Attribute{Type: TypeHardwareCache, Config: cacheConfig(
			unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
	},
	L1DCacheWrite: {
		name:        "L1-dcache-stores",
		aliases:     []string{"L1D-cache-writes"},
		description: "L1 data cache write accesses",
		attr: Attribute{Type: TypeHardwareCache, Config: cacheConfig(
			unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_WRITE, unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS)},
	},
	L1DCacheReadMiss: {
		name:        "L1-dcache-load-misses",
		aliases:     []string{"L1D-cache-read-misses"},
		description: "L1 data cache read misses",
		attr: Attribute{Type: TypeHardwareCache, Config: cacheConfig(
			unix.PERF_COUNT_HW_CACHE_L1D, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS)},
	},
	L1ICacheReadMiss: {
		name:        "L1-icache-load-misses",
		aliases:     []string{"L1I-cache-read-misses"},
		description: "L1 instruction cache read misses",
		attr: Attribute{Type: TypeHardwareCache, Config: cacheConfig(
			unix.PERF_COUNT_HW_CACHE_L1I, unix.PERF_COUNT_HW_CACHE_OP_READ, unix.PERF_COUNT_HW_CACHE_RESULT_MISS)},
	},
}

func (k EventKind) valid() bool {
	return k >= 0 && k < numEventKinds
}

func (k EventKind) String() string {
	if !k.valid() {
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
	return catalog[k].name
}

// Description returns a short human readable description of the event.
func (k EventKind) Description() string {
	if !k.valid() {
		return ""
	}
	return catalog[k].description
}

// Aliases returns alternate names accepted by ParseEventKind.
func (k EventKind) Aliases() []string {
	if !k.valid() {
		return nil
	}
	return append([]string(nil), catalog[k].aliases...)
}

// Unit is "ns" for time based events and empty for plain counts.
func (k EventKind) Unit() string {
	if !k.valid() {
		return ""
	}
	return catalog[k].unit
}

// IsTime reports whether the event counts nanoseconds.
func (k EventKind) IsTime() bool {
	return k.Unit() == "ns"
}

// RequiresKernel reports whether counting needs kernel mode, which in turn
// requires kernel.perf_event_paranoid <= 1 for unprivileged users.
func (k EventKind) RequiresKernel() bool {
	attr, err := AttributeFor(k)
	return err == nil && !attr.ExcludeKernel
}

// AttributeFor returns the kernel attribute for kind. Every entry is created
// disabled and excludes the hypervisor; only ContextSwitches counts kernel
// mode.
func AttributeFor(kind EventKind) (Attribute, error) {
	if !kind.valid() {
		return Attribute{}, fmt.Errorf("%w: %s", ErrUnknownEvent, kind)
	}
	attr := catalog[kind].attr
	attr.Disabled = true
	attr.Inherit = true
	attr.ExcludeHV = true
	attr.ExcludeKernel = kind != ContextSwitches
	return attr, nil
}

// Kinds returns all catalog entries in declaration order.
func Kinds() []EventKind {
	kinds := make([]EventKind, 0, numEventKinds)
	for k := EventKind(0); k < numEventKinds; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// DefaultKinds are counted when no events are requested.
func DefaultKinds() []EventKind {
	return []EventKind{Cycles, Instructions}
}

// DetailedKinds is the richer default set.
func DetailedKinds() []EventKind {
	return []EventKind{TaskClock, ContextSwitches, Cycles, Instructions, L1DCacheRead, L1DCacheReadMiss}
}

// ParseEventKind maps an event name or alias to its kind. Matching ignores case.
func ParseEventKind(name string) (EventKind, error) {
	name = strings.TrimSpace(name)
	for k := EventKind(0); k < numEventKinds; k++ {
		if strings.EqualFold(name, catalog[k].name) {
			return k, nil
		}
		for _, alias := range catalog[k].aliases {
			if strings.EqualFold(name, alias) {
				return k, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// ParseEventKinds parses names, each of which may be a comma separated list,
// and drops duplicates while keeping the first occurrence order.
func ParseEventKinds(names []string) ([]EventKind, error) {
	var kinds []EventKind
	seen := mapset.NewThreadUnsafeSet[EventKind]()
	for _, list := range names {
		for name := range strings.SplitSeq(list, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			kind, err := ParseEventKind(name)
			if err != nil {
				return nil, err
			}
			if seen.Add(kind) {
				kinds = append(kinds, kind)
			}
		}
	}
	return kinds, nil
}
