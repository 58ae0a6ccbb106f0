// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build !amd64

package tsc

const supported = false

func Read() uint64 {
	return 0
}

func ReadFenced() uint64 {
	return 0
}
