// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build !amd64

package kernels

// The vector kernels are x86 assembly. Other architectures get a portable
// scalar kernel so listing and measuring still function, with reduced
// precision.

var addend uint64 = 1
var sink uint64

// accumulate through package vars so the loop cannot be folded away
func scalarIAdd(iters uint64) {
	acc := sink
	for n := iters; n != 0; n -= LoopOps {
		for range LoopOps {
			acc += addend
		}
	}
	sink = acc
}

var registry = []Kernel{
	{scalarIAdd, "scalar_iadd", "Scalar integer adds", BASE},
}
