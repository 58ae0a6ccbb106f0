// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package probe samples the free-running frequency counters around a
// measurement interval and derives frequency ratios from the deltas.
package probe

import (
	"fmt"
	"log/slog"
)

// Counter identifies one of the sampled free-running counters.
type Counter int

const (
	// TSC counts raw cycles at the nominal rate, halted or not.
	TSC Counter = iota
	// MPerf counts at the nominal rate only while the core is unhalted.
	MPerf
	// APerf counts at the actual, possibly boosted, rate while unhalted.
	APerf
)

func (c Counter) String() string {
	switch c {
	case TSC:
		return "tsc"
	case MPerf:
		return "mperf"
	case APerf:
		return "aperf"
	}
	return fmt.Sprintf("counter(%d)", int(c))
}

// Source reads current counter values on one logical CPU. Implementations
// are verified at construction; a failed read afterwards is an internal
// error.
type Source interface {
	Read(c Counter) (uint64, error)
	Name() string
	Close() error
}

// Probe brackets a measurement interval with counter reads. Start and Stop
// must alternate, Start first. The ratio accessors are valid only after a
// completed bracket; out-of-sequence use is a programming error and panics.
type Probe interface {
	Start()
	Stop()
	// AMRatio returns actual-rate delta over nominal-rate delta.
	AMRatio() float64
	// MTscRatio returns nominal-rate delta over raw-cycle delta, the
	// fraction of the bracket the core spent unhalted.
	MTscRatio() float64
	// Deltas returns the raw counter deltas from the last completed
	// bracket. Unlike the ratio accessors it permits zero deltas, which
	// occur when the observed core was halted for the whole bracket.
	Deltas() (aperf, mperf, tsc uint64)
	// Name identifies the counter backend, e.g. for reports.
	Name() string
	Close() error
}

type state int

const (
	stopped state = iota
	started
)

// CounterProbe is the Probe used when a counter source is available. After
// Stop the stored counter values are the deltas across the bracket, not
// absolute readings.
type CounterProbe struct {
	src   Source
	state state
	aperf uint64
	mperf uint64
	tsc   uint64
}

func NewCounter(src Source) *CounterProbe {
	return &CounterProbe{src: src}
}

// the source was verified at selection time, failure mid-bracket is internal
func (p *CounterProbe) read(c Counter) uint64 {
	v, err := p.src.Read(c)
	if err != nil {
		panic(fmt.Sprintf("%s read failed mid-bracket: %v", c, err))
	}
	return v
}

func (p *CounterProbe) Start() {
	if p.state != stopped {
		panic("probe started while already started")
	}
	p.aperf = p.read(APerf)
	p.mperf = p.read(MPerf)
	p.tsc = p.read(TSC)
	p.state = started
}

func (p *CounterProbe) Stop() {
	if p.state != started {
		panic("probe stopped while not started")
	}
	p.aperf = p.read(APerf) - p.aperf
	p.mperf = p.read(MPerf) - p.mperf
	p.tsc = p.read(TSC) - p.tsc
	p.state = stopped
}

func (p *CounterProbe) AMRatio() float64 {
	p.requireDeltas()
	return float64(p.aperf) / float64(p.mperf)
}

func (p *CounterProbe) MTscRatio() float64 {
	p.requireDeltas()
	return float64(p.mperf) / float64(p.tsc)
}

func (p *CounterProbe) requireDeltas() {
	if p.state != stopped {
		panic("probe ratio read while started")
	}
	if p.mperf == 0 || p.tsc == 0 {
		panic("probe ratio read before any accumulation")
	}
}

func (p *CounterProbe) Deltas() (aperf, mperf, tsc uint64) {
	if p.state != stopped {
		panic("probe deltas read while started")
	}
	return p.aperf, p.mperf, p.tsc
}

func (p *CounterProbe) Name() string {
	return p.src.Name()
}

func (p *CounterProbe) Close() error {
	return p.src.Close()
}

// Noop is the probe used when no counter source is available. Brackets do
// nothing. Callers gate ratio access on probe selection, so the ratio
// accessors must never be reached.
type Noop struct{}

func (Noop) Start() {}

func (Noop) Stop() {}

func (Noop) AMRatio() float64 {
	panic("ratio read on inactive probe")
}

func (Noop) MTscRatio() float64 {
	panic("ratio read on inactive probe")
}

func (Noop) Deltas() (aperf, mperf, tsc uint64) {
	panic("deltas read on inactive probe")
}

func (Noop) Name() string {
	return "none"
}

func (Noop) Close() error {
	return nil
}

// Detect selects the probe for the given CPU. The returned bool is false
// when counter access is unavailable; the no-op probe is returned in that
// case and ratios must not be consulted.
func Detect(cpu int) (Probe, bool) {
	src, err := NewSource(cpu)
	if err != nil {
		slog.Info("frequency counters not readable, ratio reporting disabled",
			slog.Int("cpu", cpu), slog.String("error", err.Error()))
		return Noop{}, false
	}
	slog.Debug("frequency counter source selected",
		slog.Int("cpu", cpu), slog.String("source", src.Name()))
	return NewCounter(src), true
}
