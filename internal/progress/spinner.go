// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

/*
Package progress provides CLI progress indication for long-running
measurements.
*/
package progress

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/term"
)

var spinChars []string = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Spinner renders one status line on stderr that updates in place while a
// measurement runs. On a non-terminal stderr only status changes are
// printed, one line each, so logs stay readable.
type Spinner struct {
	status      string
	statusIsNew bool
	spinIndex   int
	ticker      *time.Ticker
	done        chan bool
	spinning    bool
}

// NewSpinner creates a Spinner
func NewSpinner() *Spinner {
	s := Spinner{}
	s.done = make(chan bool)
	return &s
}

// Start starts the spinner
func (s *Spinner) Start() {
	s.draw(true)
	s.ticker = time.NewTicker(250 * time.Millisecond)
	s.spinning = true
	go s.onTick()
}

// Finish stops the spinner and leaves the last status on screen
func (s *Spinner) Finish() {
	if s.spinning {
		s.ticker.Stop()
		s.done <- true
		s.draw(false)
		s.spinning = false
	}
}

// Status updates the text shown next to the spinner glyph
func (s *Spinner) Status(status string) {
	if status != s.status {
		s.status = status
		s.statusIsNew = true
	}
}

func (s *Spinner) onTick() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			s.draw(true)
		}
	}
}

func (s *Spinner) draw(goUp bool) {
	if !term.IsTerminal(int(os.Stderr.Fd())) && !s.statusIsNew {
		return
	}
	fmt.Fprintf(os.Stderr, "%s  %-60s\n", spinChars[s.spinIndex], s.status)
	s.statusIsNew = false
	s.spinIndex += 1
	if s.spinIndex >= len(spinChars) {
		s.spinIndex = 0
	}
	if goUp && term.IsTerminal(int(os.Stderr.Fd())) {
		fmt.Fprintf(os.Stderr, "\x1b[1A")
	}
}
