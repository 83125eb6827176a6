// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress shows the status of long running checks on the terminal.
*/
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

var spinChars = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// UpdateFunc sets the status shown for a label.
type UpdateFunc func(label string, status string) error

type spinnerState struct {
	label       string
	status      string
	statusIsNew bool
	spinIndex   int
}

// MultiSpinner draws one status line per label. On a terminal the lines are
// redrawn in place; otherwise a line is printed only when its status changes.
type MultiSpinner struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	spinners    []spinnerState
	ticker      *time.Ticker
	done        chan struct{}
	spinning    bool
}

// NewMultiSpinner creates a MultiSpinner that draws on stderr.
func NewMultiSpinner() *MultiSpinner {
	return NewMultiSpinnerTo(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())))
}

// NewMultiSpinnerTo creates a MultiSpinner that draws on out.
func NewMultiSpinnerTo(out io.Writer, interactive bool) *MultiSpinner {
	return &MultiSpinner{out: out, interactive: interactive, done: make(chan struct{})}
}

// AddSpinner adds a line for label, which must be unique.
func (ms *MultiSpinner) AddSpinner(label string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for _, spinner := range ms.spinners {
		if spinner.label == label {
			return fmt.Errorf("spinner with label %s already exists", label)
		}
	}
	ms.spinners = append(ms.spinners, spinnerState{label: label, status: "?"})
	return nil
}

// Start draws the lines and keeps redrawing them until Finish.
func (ms *MultiSpinner) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.spinning {
		return
	}
	ms.draw(true)
	ms.ticker = time.NewTicker(250 * time.Millisecond)
	ms.spinning = true
	go ms.onTick()
}

// Finish stops redrawing and leaves the final status on screen.
func (ms *MultiSpinner) Finish() {
	ms.mu.Lock()
	if !ms.spinning {
		ms.mu.Unlock()
		return
	}
	ms.ticker.Stop()
	ms.spinning = false
	ms.mu.Unlock()
	ms.done <- struct{}{}
	ms.mu.Lock()
	ms.draw(false)
	ms.mu.Unlock()
}

// Status updates the status of label. It satisfies UpdateFunc.
func (ms *MultiSpinner) Status(label string, status string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := range ms.spinners {
		if ms.spinners[i].label == label {
			if status != ms.spinners[i].status {
				ms.spinners[i].status = status
				ms.spinners[i].statusIsNew = true
			}
			return nil
		}
	}
	return fmt.Errorf("did not find spinner with label %s", label)
}

func (ms *MultiSpinner) onTick() {
	for {
		select {
		case <-ms.done:
			return
		case <-ms.ticker.C:
			ms.mu.Lock()
			ms.draw(true)
			ms.mu.Unlock()
		}
	}
}

// draw must be called with mu held
func (ms *MultiSpinner) draw(goUp bool) {
	for i, spinner := range ms.spinners {
		if !ms.interactive && !spinner.statusIsNew {
			continue
		}
		fmt.Fprintf(ms.out, "%-24s  %s  %-40s\n", spinner.label, spinChars[spinner.spinIndex], spinner.status)
		ms.spinners[i].statusIsNew = false
		ms.spinners[i].spinIndex = (spinner.spinIndex + 1) % len(spinChars)
	}
	if goUp && ms.interactive {
		for range ms.spinners {
			fmt.Fprint(ms.out, "\x1b[1A")
		}
	}
}
