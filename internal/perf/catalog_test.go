package perf

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogComplete(t *testing.T) {
	for _, kind := range Kinds() {
		entry := catalog[kind]
		assert.NotEmpty(t, entry.name, "event kind %d has no catalog entry", int(kind))
		assert.NotEmpty(t, entry.description, "event %s has no description", kind)
	}
	assert.Len(t, Kinds(), int(numEventKinds))
}

func TestAttributeForIsTotalAndDeterministic(t *testing.T) {
	for _, kind := range Kinds() {
		first, err := AttributeFor(kind)
		require.NoError(t, err, kind.String())
		for range 3 {
			again, err := AttributeFor(kind)
			require.NoError(t, err)
			assert.Equal(t, first, again, kind.String())
		}
		assert.True(t, first.Disabled, "%s must be created disabled", kind)
		assert.True(t, first.ExcludeHV, "%s must exclude the hypervisor", kind)
		assert.Equal(t, kind != ContextSwitches, first.ExcludeKernel, "exclude-kernel for %s", kind)
	}
}

func TestAttributeForUnknownKind(t *testing.T) {
	for _, kind := range []EventKind{-1, numEventKinds, 100} {
		_, err := AttributeFor(kind)
		assert.ErrorIs(t, err, ErrUnknownEvent)
	}
}

func TestAttributeConfigs(t *testing.T) {
	tests := []struct {
		kind       EventKind
		eventType  EventType
		config     uint64
		needKernel bool
	}{
		{Cycles, TypeHardware, 0, false},
		{Instructions, TypeHardware, 1, false},
		{TaskClock, TypeSoftware, 1, false},
		{ContextSwitches, TypeSoftware, 3, true},
		{L1DCacheRead, TypeHardwareCache, 0x00000, false},
		{L1DCacheWrite, TypeHardwareCache, 0x00100, false},
		{L1DCacheReadMiss, TypeHardwareCache, 0x10000, false},
		{L1ICacheReadMiss, TypeHardwareCache, 0x10001, false},
	}
	for _, test := range tests {
		attr, err := AttributeFor(test.kind)
		require.NoError(t, err)
		assert.Equal(t, test.eventType, attr.Type, test.kind.String())
		assert.Equal(t, test.config, attr.Config, test.kind.String())
		assert.Equal(t, test.needKernel, test.kind.RequiresKernel(), test.kind.String())
	}
}

func TestCacheConfig(t *testing.T) {
	assert.Equal(t, uint64(0x020103), cacheConfig(3, 1, 2))
}

func TestParseEventKind(t *testing.T) {
	tests := []struct {
		name     string
		expected EventKind
		err      bool
	}{
		{"cycles", Cycles, false},
		{"CPU-Cycles", Cycles, false},
		{" instructions ", Instructions, false},
		{"task-clock", TaskClock, false},
		{"cs", ContextSwitches, false},
		{"L1-dcache-loads", L1DCacheRead, false},
		{"L1D-cache-writes", L1DCacheWrite, false},
		{"L1D-cache-read-misses", L1DCacheReadMiss, false},
		{"l1-icache-load-misses", L1ICacheReadMiss, false},
		{"branch-misses", 0, true},
		{"", 0, true},
	}
	for _, test := range tests {
		kind, err := ParseEventKind(test.name)
		if test.err {
			assert.ErrorIs(t, err, ErrUnknownEvent, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		assert.Equal(t, test.expected, kind, test.name)
	}
}

func TestParseEventKindsRemovesDuplicates(t *testing.T) {
	kinds, err := ParseEventKinds([]string{"instructions,cycles", "cpu-cycles", "task-clock,", "instructions"})
	require.NoError(t, err)
	assert.Equal(t, []EventKind{Instructions, Cycles, TaskClock}, kinds)

	kinds, err = ParseEventKinds(nil)
	require.NoError(t, err)
	assert.Empty(t, kinds)

	_, err = ParseEventKinds([]string{"cycles,bogus"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "task-clock", TaskClock.String())
	assert.Equal(t, "EventKind(42)", EventKind(42).String())
	assert.True(t, TaskClock.IsTime())
	assert.False(t, Cycles.IsTime())
	assert.Equal(t, []string{"cs"}, ContextSwitches.Aliases())
}
