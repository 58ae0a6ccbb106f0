// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package kernels provides the timed instruction sequences and their registry.
// Each kernel is a fixed sequence of dependent instructions repeated a caller
// supplied number of times. The serial dependency holds the retirement rate at
// one instruction per cycle so measured throughput tracks core frequency.
package kernels

import (
	"fmt"
	"slices"

	"github.com/klauspost/cpuid/v2"
)

// Func executes the kernel's instruction sequence iters times. It runs for a
// duration proportional to iters and has no side effects beyond time and
// power-state consumption. iters must be a positive multiple of LoopOps.
type Func func(iters uint64)

// LoopOps is the number of payload instructions retired per loop trip in the
// assembly bodies. Iteration counts handed to a Func must be a multiple of it.
const LoopOps = 100

// ISA is a bit-flag set of instruction set extensions.
type ISA uint32

const (
	BASE ISA = 1 << iota
	AVX2
	AVX512
)

func (isa ISA) String() string {
	switch isa {
	case BASE:
		return "BASE"
	case AVX2:
		return "AVX2"
	case AVX512:
		return "AVX-512"
	}
	return fmt.Sprintf("ISA(%#x)", uint32(isa))
}

// Kernel describes one timed instruction sequence.
type Kernel struct {
	Func        Func
	ID          string
	Description string
	ISA         ISA
}

// All returns the kernel registry in declaration order. The registry is
// assembled at startup and immutable thereafter.
func All() []Kernel {
	return slices.Clone(registry)
}

// SupportedISAs returns the extensions available on the host CPU. BASE is
// always present.
func SupportedISAs() ISA {
	isas := BASE
	if cpuid.CPU.Supports(cpuid.AVX2) {
		isas |= AVX2
	}
	if cpuid.CPU.Has(cpuid.AVX512F) {
		isas |= AVX512
	}
	return isas
}

// ShouldRun reports whether a kernel is eligible given the supported
// extensions and an optional focus ID. A focus that matches no kernel
// selects nothing; that is not an error.
func ShouldRun(k Kernel, supported ISA, focus string) bool {
	return k.ISA&supported != 0 && (focus == "" || focus == k.ID)
}

// Eligible returns the registry kernels that pass ShouldRun, in registry
// order.
func Eligible(supported ISA, focus string) []Kernel {
	var eligible []Kernel
	for _, k := range registry {
		if ShouldRun(k, supported, focus) {
			eligible = append(eligible, k)
		}
	}
	return eligible
}
