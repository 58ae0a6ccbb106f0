// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package probe

import (
	"fmt"
	"log/slog"

	"github.com/fingera/avx-turbo/internal/msr"
)

// msrSource reads the counters directly from the CPU's MSR device file.
type msrSource struct {
	dev *msr.MSR
}

func newMSRSource(cpu int) (*msrSource, error) {
	if err := msr.Validate(cpu); err != nil {
		return nil, err
	}
	dev, err := msr.Open(cpu)
	if err != nil {
		return nil, err
	}
	src := &msrSource{dev: dev}
	// all three counters must be readable before committing to this source
	for _, c := range []Counter{APerf, MPerf, TSC} {
		if _, err := src.Read(c); err != nil {
			dev.Close()
			return nil, err
		}
	}
	return src, nil
}

func (s *msrSource) Read(c Counter) (uint64, error) {
	switch c {
	case TSC:
		return s.dev.Read(msr.TimeStampCounter)
	case MPerf:
		return s.dev.Read(msr.MPerf)
	case APerf:
		return s.dev.Read(msr.APerf)
	}
	return 0, fmt.Errorf("unknown counter %d", int(c))
}

func (s *msrSource) Name() string {
	return "msr"
}

func (s *msrSource) Close() error {
	return s.dev.Close()
}

// NewSource returns a verified counter source for the given CPU, preferring
// direct MSR reads and falling back to the kernel's msr PMU through
// perf_event_open.
func NewSource(cpu int) (Source, error) {
	src, err := newMSRSource(cpu)
	if err == nil {
		return src, nil
	}
	slog.Debug("msr counter source unavailable",
		slog.Int("cpu", cpu), slog.String("error", err.Error()))
	psrc, perr := newPerfSource(cpu)
	if perr == nil {
		return psrc, nil
	}
	slog.Debug("perf counter source unavailable",
		slog.Int("cpu", cpu), slog.String("error", perr.Error()))
	return nil, fmt.Errorf("no usable counter source for cpu %d", cpu)
}
