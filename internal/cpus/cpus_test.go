// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package cpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMicroArchitectureICX(t *testing.T) {
	uarch, err := GetMicroArchitecture(6, 106, 6)
	require.NoError(t, err)
	assert.Equal(t, UarchICX, uarch)
}

func TestGetMicroArchitectureSteppingSplit(t *testing.T) {
	// family 6 model 85 splits on stepping
	uarch, err := GetMicroArchitecture(6, 85, 4)
	require.NoError(t, err)
	assert.Equal(t, UarchSKX, uarch)

	uarch, err = GetMicroArchitecture(6, 85, 7)
	require.NoError(t, err)
	assert.Equal(t, UarchCLX, uarch)

	uarch, err = GetMicroArchitecture(6, 85, 11)
	require.NoError(t, err)
	assert.Equal(t, UarchCPX, uarch)
}

func TestGetMicroArchitectureModelRegex(t *testing.T) {
	// model regex must match the whole model number, 14 is not (142|158)
	_, err := GetMicroArchitecture(6, 14, 0)
	assert.Error(t, err)

	uarch, err := GetMicroArchitecture(6, 142, 9)
	require.NoError(t, err)
	assert.Equal(t, UarchKBL, uarch)
}

func TestGetMicroArchitectureAMD(t *testing.T) {
	uarch, err := GetMicroArchitecture(25, 17, 0)
	require.NoError(t, err)
	assert.Equal(t, UarchGenoa, uarch)

	uarch, err = GetMicroArchitecture(25, 160, 0)
	require.NoError(t, err)
	assert.Equal(t, UarchBergamo, uarch)
}

func TestGetMicroArchitectureNotFound(t *testing.T) {
	_, err := GetMicroArchitecture(99, 99, 0)
	assert.Error(t, err)
}

func TestIsIntelCPUFamily(t *testing.T) {
	assert.True(t, IsIntelCPUFamily(6))
	assert.True(t, IsIntelCPUFamily(19))
	assert.False(t, IsIntelCPUFamily(23))
	assert.False(t, IsIntelCPUFamily(25))
}

func TestIdentify(t *testing.T) {
	host := Identify()
	// identification comes from cpuid on the machine running the tests, so
	// only sanity-check the fields
	assert.GreaterOrEqual(t, host.LogicalCores, 0)
	assert.NotNil(t, host.BrandName)
}
