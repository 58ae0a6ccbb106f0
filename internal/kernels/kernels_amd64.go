// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package kernels

// implemented in kernels_amd64.s

func scalarIAdd(iters uint64)

func avx128IAdd(iters uint64)

func avx256IAdd(iters uint64)

func avx512IAdd(iters uint64)

func avx256FMA(iters uint64)

func avx512FMA(iters uint64)

var registry = []Kernel{
	{scalarIAdd, "scalar_iadd", "Scalar integer adds", BASE},
	{avx128IAdd, "avx128_iadd", "128-bit integer adds", AVX2},
	{avx256IAdd, "avx256_iadd", "256-bit integer adds", AVX2},
	{avx512IAdd, "avx512_iadd", "512-bit integer adds", AVX512},
	{avx256FMA, "avx256_fma", "256-bit fused multiply-adds", AVX2},
	{avx512FMA, "avx512_fma", "512-bit fused multiply-adds", AVX512},
}
