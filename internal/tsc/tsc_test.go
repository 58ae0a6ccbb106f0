// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package tsc

import (
	"testing"
)

func TestReduceSamples(t *testing.T) {
	// ten samples, quintile of two, averages sorted[4] and sorted[5]
	samples := []uint64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}
	got := reduceSamples(samples)
	if got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestReduceSamplesShedsOutliers(t *testing.T) {
	samples := make([]uint64, calSamples)
	for i := range samples {
		samples[i] = 3_000_000_000
	}
	// outliers on both ends must not reach the middle quintile
	samples[0] = 1
	samples[1] = 2
	samples[99] = 9_000_000_000
	samples[100] = 10_000_000_000
	got := reduceSamples(samples)
	if got != 3_000_000_000 {
		t.Errorf("expected 3000000000, got %d", got)
	}
}

func TestReduceSamplesDoesNotReorderInput(t *testing.T) {
	samples := []uint64{5, 4, 3, 2, 1, 10, 9, 8, 7, 6}
	_ = reduceSamples(samples)
	if samples[0] != 5 || samples[9] != 6 {
		t.Error("input slice was reordered")
	}
}

func TestReadMonotonic(t *testing.T) {
	if !Supported() {
		t.Skip("no time stamp counter on this architecture")
	}
	a := Read()
	b := Read()
	if b < a {
		t.Errorf("counter went backwards: %d then %d", a, b)
	}
	c := ReadFenced()
	d := ReadFenced()
	if d < c {
		t.Errorf("fenced counter went backwards: %d then %d", c, d)
	}
}

func TestFrequencyCalibration(t *testing.T) {
	if !Supported() {
		t.Skip("no time stamp counter on this architecture")
	}
	hz, source, err := Frequency(true)
	if err != nil {
		t.Fatalf("Frequency returned error: %v", err)
	}
	if source != "from calibration loop" {
		t.Errorf("expected calibration source, got %q", source)
	}
	// any plausible modern TSC rate
	if hz < 100_000_000 || hz > 10_000_000_000 {
		t.Errorf("implausible TSC frequency: %d Hz", hz)
	}
}
