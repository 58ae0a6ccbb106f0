// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

//go:build !linux

package affinity

import "fmt"

func Pin(cpu int) error {
	return fmt.Errorf("thread pinning to cpu %d is not supported on this platform", cpu)
}
