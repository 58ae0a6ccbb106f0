// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package tsc reads the CPU time stamp counter and determines its frequency.
package tsc

import (
	"fmt"
	"slices"
	"time"

	"github.com/klauspost/cpuid/v2"
)

const (
	calSamples    = 101
	calDelayNanos = 10000
)

// Supported reports whether the time stamp counter is readable on this
// architecture.
func Supported() bool {
	return supported
}

// Frequency returns the TSC frequency in Hz and a description of how it was
// determined. When forceCalibrate is set, any cpuid-reported value is ignored
// and the calibration loop is used.
func Frequency(forceCalibrate bool) (hz uint64, source string, err error) {
	if !supported {
		err = fmt.Errorf("time stamp counter not available on this architecture")
		return
	}
	if !forceCalibrate && cpuid.CPU.Hz > 0 {
		return uint64(cpuid.CPU.Hz), "from cpuid leaf 0x15", nil
	}
	return calibrate(), "from calibration loop", nil
}

// calibrate estimates the TSC frequency by timing short busy-waits against
// the monotonic clock.
func calibrate() uint64 {
	samples := make([]uint64, 2*calSamples)
	epoch := time.Now()
	nanos := func() uint64 {
		return uint64(time.Since(epoch).Nanoseconds())
	}
	for i := range samples {
		samples[i] = sampleFrequency(nanos)
	}
	// the first half of the samples is warmup
	return reduceSamples(samples[calSamples:])
}

// sampleFrequency busy-waits for roughly calDelayNanos and returns the
// implied TSC rate in Hz.
func sampleFrequency(nanos func() uint64) uint64 {
	nsBefore := nanos()
	tscBefore := Read()
	for nsBefore+calDelayNanos > nanos() {
	}
	nsAfter := nanos()
	tscAfter := Read()
	return (tscAfter - tscBefore) * 1000000000 / (nsAfter - nsBefore)
}

// reduceSamples sorts the samples and averages the middle quintile, shedding
// outliers on both sides.
func reduceSamples(samples []uint64) uint64 {
	sorted := slices.Clone(samples)
	slices.Sort(sorted)
	quintile := len(sorted) / 5
	var sum uint64
	for _, s := range sorted[2*quintile : 3*quintile] {
		sum += s
	}
	return sum / uint64(quintile)
}
