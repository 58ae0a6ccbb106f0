// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package harness drives repeated timed invocations of a kernel and reduces
// the trial samples to a throughput figure.
package harness

import (
	"fmt"
	"slices"

	"github.com/fingera/avx-turbo/internal/clock"
	"github.com/fingera/avx-turbo/internal/kernels"
	"github.com/fingera/avx-turbo/internal/probe"
)

const (
	// Tries is the number of timed trials per outer pass.
	Tries = 101
	// Warmup is the number of outer passes run before the one that counts,
	// to reach a thermally and power-state stable regime.
	Warmup = 3
)

// Result holds the reduced measurement for one kernel.
type Result struct {
	// OpsPerNs is the overhead-cancelled throughput estimate, iters divided
	// by the median trial cost.
	OpsPerNs float64
	// MedianNs is the median nanosecond cost of iters additional operations.
	MedianNs float64
}

// ValidateIters rejects iteration counts the kernel bodies cannot execute.
// Callers check before any timing begins.
func ValidateIters(iters uint64) error {
	if iters == 0 || iters%kernels.LoopOps != 0 {
		return fmt.Errorf("iteration count must be a positive multiple of %d, got %d", kernels.LoopOps, iters)
	}
	return nil
}

// Run times fn over Warmup+1 outer passes of Tries trials each. A trial
// invokes fn with iters and then 2*iters operations; the difference between
// the two timings cancels the fixed per-call overhead, assuming that
// overhead is constant across the back-to-back calls. The trial buffer is
// overwritten every pass, so the reduced result reflects only the final
// pass. Each pass is bracketed with one probe Start/Stop pair, leaving the
// probe holding the final pass's counter deltas on return.
func Run(fn kernels.Func, iters uint64, clk clock.Clock, prb probe.Probe) (Result, error) {
	if err := ValidateIters(iters); err != nil {
		return Result{}, err
	}

	// tick deltas are signed, cancellation can come out below zero on a
	// quiet machine
	deltas := make([]int64, Tries)
	for pass := 0; pass < Warmup+1; pass++ {
		prb.Start()
		for r := 0; r < Tries; r++ {
			t0 := clk.Now()
			fn(iters)
			t1 := clk.Now()
			fn(iters * 2)
			t2 := clk.Now()
			deltas[r] = int64(t2-t1) - int64(t1-t0)
		}
		prb.Stop()
	}

	nanos := make([]int64, Tries)
	for i, d := range deltas {
		if d >= 0 {
			nanos[i] = int64(clk.ToNanos(uint64(d)))
		} else {
			nanos[i] = -int64(clk.ToNanos(uint64(-d)))
		}
	}
	slices.Sort(nanos)
	median := nanos[Tries/2]

	return Result{
		OpsPerNs: float64(iters) / float64(median),
		MedianNs: float64(median),
	}, nil
}
