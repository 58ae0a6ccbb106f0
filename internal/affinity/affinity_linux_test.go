// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package affinity

import (
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
)

func TestPin(t *testing.T) {
	var orig unix.CPUSet
	if err := unix.SchedGetaffinity(0, &orig); err != nil {
		t.Fatalf("SchedGetaffinity failed: %v", err)
	}
	defer func() {
		_ = unix.SchedSetaffinity(0, &orig)
		runtime.UnlockOSThread()
	}()

	if err := Pin(0); err != nil {
		t.Fatalf("Pin(0) failed: %v", err)
	}
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		t.Fatalf("SchedGetaffinity failed: %v", err)
	}
	if !set.IsSet(0) {
		t.Error("cpu 0 not in affinity mask after Pin(0)")
	}
	if n := set.Count(); n != 1 {
		t.Errorf("affinity mask holds %d cpus, want 1", n)
	}
}

func TestPinRejectsAbsentCPU(t *testing.T) {
	if err := Pin(1 << 20); err == nil {
		t.Error("expected error pinning to an absent cpu")
	}
	runtime.UnlockOSThread()
}
