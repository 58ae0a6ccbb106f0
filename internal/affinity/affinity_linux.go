// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package affinity pins the calling goroutine to one logical CPU so that
// per-core counters and the timed kernels observe the same core.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that
// thread to the given logical CPU. The lock is never released; the caller
// is expected to run its measurements and exit.
func Pin(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("failed to pin thread to cpu %d: %w", cpu, err)
	}
	return nil
}
