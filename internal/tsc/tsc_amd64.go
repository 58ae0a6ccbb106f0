// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package tsc

const supported = true

// implemented in tsc_amd64.s

// Read returns the current time stamp counter value.
func Read() uint64

// ReadFenced returns the time stamp counter value with LFENCE serialization
// before and after the read, so neighboring instructions cannot drift across
// the measurement boundary.
func ReadFenced() uint64
