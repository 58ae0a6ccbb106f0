// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package clock provides the tick sources used to time kernels.
package clock

import (
	"fmt"
	"time"

	"github.com/fingera/avx-turbo/internal/tsc"
)

// A Clock returns opaque monotonic tick values and converts tick deltas to
// nanoseconds. Tick values from different clocks are not comparable.
type Clock interface {
	Now() uint64
	ToNanos(delta uint64) uint64
}

// TSC is a Clock backed by the serialized time stamp counter read.
type TSC struct {
	scale float64 // nanoseconds per tick
}

// NewTSC returns a TSC clock for a counter running at hz. The tick to
// nanosecond scale factor is computed here, once, and never recomputed.
func NewTSC(hz uint64) (*TSC, error) {
	if hz == 0 {
		return nil, fmt.Errorf("TSC frequency must be positive")
	}
	return &TSC{scale: 1e9 / float64(hz)}, nil
}

func (c *TSC) Now() uint64 {
	return tsc.ReadFenced()
}

func (c *TSC) ToNanos(delta uint64) uint64 {
	return uint64(float64(delta) * c.scale)
}

// Wall is a Clock backed by the monotonic wall clock. Ticks are elapsed
// nanoseconds since the clock was created, so ToNanos is the identity.
type Wall struct {
	base time.Time
}

func NewWall() *Wall {
	return &Wall{base: time.Now()}
}

func (c *Wall) Now() uint64 {
	return uint64(time.Since(c.base).Nanoseconds())
}

func (c *Wall) ToNanos(delta uint64) uint64 {
	return delta
}
