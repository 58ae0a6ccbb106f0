package measure

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fingera/avx-turbo/internal/cpus"
	"github.com/fingera/avx-turbo/internal/harness"
	"github.com/fingera/avx-turbo/internal/kernels"
	"github.com/fingera/avx-turbo/internal/metric"
	"github.com/fingera/avx-turbo/internal/report"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCmd returns a throwaway command with the measure flags registered.
// Registering resets the package flag variables to their defaults, so every
// test that touches flag state starts from a clean slate.
func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{Use: cmdName}
	cmd.Flags().IntVar(&flagIters, flagItersName, 100000, "")
	cmd.Flags().StringVar(&flagTest, flagTestName, "", "")
	cmd.Flags().IntVar(&flagCpu, flagCpuName, 0, "")
	cmd.Flags().BoolVar(&flagForceTscCalibrate, flagForceTscCalibrateName, false, "")
	cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{}, "")
	cmd.Flags().StringVar(&flagConfig, flagConfigName, "", "")
	return cmd
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp(t.TempDir(), "measure_config_*.yaml")
	require.NoError(t, err)
	_, err = tmpFile.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, tmpFile.Close())
	return tmpFile.Name()
}

func TestApplyConfigFile(t *testing.T) {
	cmd := newTestCmd()
	flagConfig = writeTempConfig(t, `
iters: 200000
test: avx256_iadd
cpu: 1
force-tsc-calibrate: true
format:
  - json
  - xlsx
`)
	require.NoError(t, applyConfigFile(cmd))
	assert.Equal(t, 200000, flagIters)
	assert.Equal(t, "avx256_iadd", flagTest)
	assert.Equal(t, 1, flagCpu)
	assert.True(t, flagForceTscCalibrate)
	assert.Equal(t, []string{"json", "xlsx"}, flagFormat)
}

func TestApplyConfigFileFlagPrecedence(t *testing.T) {
	cmd := newTestCmd()
	require.NoError(t, cmd.Flags().Set(flagItersName, "300000"))
	flagConfig = writeTempConfig(t, `
iters: 200000
test: scalar_iadd
`)
	require.NoError(t, applyConfigFile(cmd))
	// the command line value wins, the unset flag takes the file value
	assert.Equal(t, 300000, flagIters)
	assert.Equal(t, "scalar_iadd", flagTest)
}

func TestApplyConfigFilePartial(t *testing.T) {
	cmd := newTestCmd()
	flagConfig = writeTempConfig(t, "test: avx512_fma\n")
	require.NoError(t, applyConfigFile(cmd))
	assert.Equal(t, "avx512_fma", flagTest)
	// absent keys leave the defaults alone
	assert.Equal(t, 100000, flagIters)
	assert.Equal(t, 0, flagCpu)
	assert.False(t, flagForceTscCalibrate)
	assert.Empty(t, flagFormat)
}

func TestApplyConfigFileMissing(t *testing.T) {
	cmd := newTestCmd()
	flagConfig = filepath.Join(t.TempDir(), "no_such_file.yaml")
	err := applyConfigFile(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestApplyConfigFileUnparsable(t *testing.T) {
	cmd := newTestCmd()
	flagConfig = writeTempConfig(t, "iters: [100, 200\n")
	err := applyConfigFile(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		wantErr string
	}{
		{
			name:  "defaults pass",
			setup: func() {},
		},
		{
			name:    "iters zero",
			setup:   func() { flagIters = 0 },
			wantErr: "positive multiple",
		},
		{
			name:    "iters negative",
			setup:   func() { flagIters = -100 },
			wantErr: "positive multiple",
		},
		{
			name:    "iters not a multiple of the loop op count",
			setup:   func() { flagIters = 150 },
			wantErr: "multiple of 100",
		},
		{
			name:  "iters large multiple",
			setup: func() { flagIters = 2000000 },
		},
		{
			name:    "cpu negative",
			setup:   func() { flagCpu = -1 },
			wantErr: "cpu must be between",
		},
		{
			name:    "cpu beyond the host",
			setup:   func() { flagCpu = runtime.NumCPU() },
			wantErr: "cpu must be between",
		},
		{
			name:    "unknown format",
			setup:   func() { flagFormat = []string{"csv"} },
			wantErr: "format options are",
		},
		{
			name:  "all format accepted",
			setup: func() { flagFormat = []string{report.FormatAll} },
		},
		{
			name:  "multiple formats accepted",
			setup: func() { flagFormat = []string{report.FormatTxt, report.FormatJson} },
		},
		{
			name:    "missing config file",
			setup:   func() { flagConfig = "/nonexistent/measure.yaml" },
			wantErr: "does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newTestCmd()
			tt.setup()
			err := validateFlags(cmd, nil)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestFlagGroupsCoverRegisteredFlags(t *testing.T) {
	for _, group := range getFlagGroups() {
		for _, flag := range group.Flags {
			assert.NotNil(t, Cmd.Flags().Lookup(flag.Name), "flag %s in group %s is not registered", flag.Name, group.GroupName)
			assert.NotEmpty(t, flag.Help, "flag %s in group %s has no help text", flag.Name, group.GroupName)
		}
	}
}

func TestSupportIndicator(t *testing.T) {
	supported := kernels.BASE | kernels.AVX2
	assert.Equal(t, "YES", supportIndicator(supported, kernels.AVX2))
	// the padded NO keeps the closing brackets aligned
	assert.Equal(t, "NO ", supportIndicator(supported, kernels.AVX512))
}

func TestIsaList(t *testing.T) {
	assert.Equal(t, "BASE", isaList(kernels.BASE))
	assert.Equal(t, "BASE, AVX2", isaList(kernels.BASE|kernels.AVX2))
	assert.Equal(t, "BASE, AVX2, AVX-512", isaList(kernels.BASE|kernels.AVX2|kernels.AVX512))
}

func TestSetupTableValues(t *testing.T) {
	newTestCmd()
	host := cpus.HostCPU{
		BrandName:         "Genuine Fake CPU @ 2.40GHz",
		Vendor:            "GenuineIntel",
		MicroArchitecture: "SPR_XCC",
	}
	tv := setupTableValues(host, kernels.BASE|kernels.AVX2, "2400.0 MHz (from cpuid leaf 0x15)", "tsc", "msr", 3)
	assert.Equal(t, setupTableName, tv.Name)
	assert.False(t, tv.HasRows)
	values := map[string]string{}
	for _, field := range tv.Fields {
		require.Len(t, field.Values, 1)
		values[field.Name] = field.Values[0]
	}
	assert.Equal(t, "Genuine Fake CPU @ 2.40GHz", values["Brand"])
	assert.Equal(t, "BASE, AVX2", values["ISA support"])
	assert.Equal(t, "tsc", values["Clock"])
	assert.Equal(t, "2400.0 MHz (from cpuid leaf 0x15)", values["TSC frequency"])
	assert.Equal(t, "msr", values["Frequency probe"])
	assert.Equal(t, "3", values["Kernels measured"])
	assert.Equal(t, fmt.Sprintf("%d x %d trials", harness.Warmup+1, harness.Tries), values["Timing passes"])
}

func TestFrequencyTableValues(t *testing.T) {
	newTestCmd()
	measurements := []measurement{
		{
			kernel: kernels.Kernel{ID: "scalar_iadd", Description: "Scalar integer adds"},
			result: harness.Result{OpsPerNs: 2.0, MedianNs: 50000},
			aperf:  3000,
			mperf:  2000,
			tsc:    4000,
		},
		{
			kernel: kernels.Kernel{ID: "avx256_iadd", Description: "256-bit integer adds"},
			result: harness.Result{OpsPerNs: 1.0, MedianNs: 100000},
			aperf:  1500,
			mperf:  1500,
			tsc:    3000,
		},
	}
	defs := metric.Definitions(true)
	tv := frequencyTableValues(measurements, defs, 2400000000)

	assert.Equal(t, frequencyTableName, tv.Name)
	assert.True(t, tv.HasRows)
	require.Len(t, tv.Fields, 2+len(defs))
	assert.Equal(t, "ID", tv.Fields[0].Name)
	assert.Equal(t, "Description", tv.Fields[1].Name)
	assert.Equal(t, []string{"scalar_iadd", "avx256_iadd"}, tv.Fields[0].Values)

	// 100000 ops in 50000 ns is 2 ops/ns, reported as 2000 MHz
	assert.Equal(t, "MHz", tv.Fields[2].Name)
	assert.Equal(t, []string{"2000", "1000"}, tv.Fields[2].Values)
	assert.Equal(t, "A/M-ratio", tv.Fields[3].Name)
	assert.Equal(t, []string{"1.50", "1.00"}, tv.Fields[3].Values)
	assert.Equal(t, "A/M-MHz", tv.Fields[4].Name)
	assert.Equal(t, []string{"3600", "2400"}, tv.Fields[4].Values)
	assert.Equal(t, "M/tsc-ratio", tv.Fields[5].Name)
	assert.Equal(t, []string{"0.50", "0.50"}, tv.Fields[5].Values)
}

func TestFrequencyTableValuesZeroDeltas(t *testing.T) {
	newTestCmd()
	measurements := []measurement{
		{
			kernel: kernels.Kernel{ID: "scalar_iadd", Description: "Scalar integer adds"},
			result: harness.Result{OpsPerNs: 2.0, MedianNs: 50000},
			// probe deltas all zero, as for a fully halted bracket
		},
	}
	defs := metric.Definitions(true)
	tv := frequencyTableValues(measurements, defs, 2400000000)

	// the throughput column still evaluates, the ratio cells are left empty
	assert.Equal(t, []string{"2000"}, tv.Fields[2].Values)
	assert.Equal(t, []string{""}, tv.Fields[3].Values)
	assert.Equal(t, []string{""}, tv.Fields[4].Values)
	assert.Equal(t, []string{""}, tv.Fields[5].Values)
}

func TestFrequencyTableValuesNoKernels(t *testing.T) {
	newTestCmd()
	tv := frequencyTableValues(nil, metric.Definitions(false), 2400000000)
	assert.True(t, tv.HasRows)
	assert.NotEmpty(t, tv.NoDataFound)
	for _, field := range tv.Fields {
		assert.Empty(t, field.Values)
	}
}

func TestWriteReportFiles(t *testing.T) {
	newTestCmd()
	flagFormat = []string{report.FormatJson}
	outputDir := filepath.Join(t.TempDir(), "out")
	tables := []report.TableValues{
		{
			Name:    frequencyTableName,
			HasRows: true,
			Fields: []report.Field{
				{Name: "ID", Values: []string{"scalar_iadd"}},
				{Name: "MHz", Values: []string{"3400"}},
			},
		},
	}
	require.NoError(t, writeReportFiles(outputDir, tables))

	reportBytes, err := os.ReadFile(filepath.Join(outputDir, "measurements.json"))
	require.NoError(t, err)
	var parsed map[string][]map[string]string
	require.NoError(t, json.Unmarshal(reportBytes, &parsed))
	require.Len(t, parsed[frequencyTableName], 1)
	assert.Equal(t, "3400", parsed[frequencyTableName][0]["MHz"])
}

func TestWriteReportFilesDuplicateFormats(t *testing.T) {
	newTestCmd()
	flagFormat = []string{report.FormatJson, report.FormatJson}
	outputDir := filepath.Join(t.TempDir(), "out")
	tables := []report.TableValues{
		{
			Name:    frequencyTableName,
			HasRows: true,
			Fields: []report.Field{
				{Name: "ID", Values: []string{"scalar_iadd"}},
			},
		},
	}
	require.NoError(t, writeReportFiles(outputDir, tables))

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteReportFilesNoFormats(t *testing.T) {
	newTestCmd()
	outputDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, writeReportFiles(outputDir, nil))
	// no formats requested, the output directory is not created
	_, err := os.Stat(outputDir)
	assert.True(t, os.IsNotExist(err))
}
