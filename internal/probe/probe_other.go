// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build !linux

package probe

import "fmt"

// The counter sources use the msr device files and the perf subsystem, both
// Linux interfaces.
func NewSource(cpu int) (Source, error) {
	return nil, fmt.Errorf("no counter source on this platform")
}
