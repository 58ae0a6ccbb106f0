// Package measure is a subcommand of the root command. It runs the timed
// instruction kernels on one pinned CPU and reports the effective core
// frequency each kernel sustained.
package measure

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/fingera/avx-turbo/internal/affinity"
	"github.com/fingera/avx-turbo/internal/clock"
	"github.com/fingera/avx-turbo/internal/common"
	"github.com/fingera/avx-turbo/internal/cpus"
	"github.com/fingera/avx-turbo/internal/harness"
	"github.com/fingera/avx-turbo/internal/kernels"
	"github.com/fingera/avx-turbo/internal/metric"
	"github.com/fingera/avx-turbo/internal/probe"
	"github.com/fingera/avx-turbo/internal/progress"
	"github.com/fingera/avx-turbo/internal/report"
	"github.com/fingera/avx-turbo/internal/tsc"
	"github.com/fingera/avx-turbo/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

const cmdName = "measure"

var examples = []string{
	fmt.Sprintf("  Measure all supported kernels:         $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  Measure a single kernel by ID:         $ %s %s --test avx512_iadd", common.AppName, cmdName),
	fmt.Sprintf("  Longer trials on a chosen core:        $ %s %s --iters 500000 --cpu 2", common.AppName, cmdName),
	fmt.Sprintf("  Write report files in all formats:     $ %s %s --format all", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Measure effective core frequency under scalar and vector kernels",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

// globals
var (
	gSignalMutex    sync.Mutex
	gSignalReceived bool
)

func setSignalReceived() {
	gSignalMutex.Lock()
	defer gSignalMutex.Unlock()
	gSignalReceived = true
}

func getSignalReceived() bool {
	gSignalMutex.Lock()
	defer gSignalMutex.Unlock()
	return gSignalReceived
}

var (
	// measurement options
	flagIters             int
	flagTest              string
	flagCpu               int
	flagForceTscCalibrate bool
	// output options
	flagFormat []string
	// advanced options
	flagConfig string
)

const (
	flagItersName             = "iters"
	flagTestName              = "test"
	flagCpuName               = "cpu"
	flagForceTscCalibrateName = "force-tsc-calibrate"
	flagFormatName            = "format"
	flagConfigName            = "config"
)

// warmupIters is the iteration count of the discarded warm-up run that brings
// the core to its sustained frequency and power state.
const warmupIters = 1000000

const (
	setupTableName     = "Measurement Setup"
	frequencyTableName = "Effective Frequency"
)

func init() {
	Cmd.Flags().IntVar(&flagIters, flagItersName, 100000, "")
	Cmd.Flags().StringVar(&flagTest, flagTestName, "", "")
	Cmd.Flags().IntVar(&flagCpu, flagCpuName, 0, "")
	Cmd.Flags().BoolVar(&flagForceTscCalibrate, flagForceTscCalibrateName, false, "")
	Cmd.Flags().StringSliceVar(&flagFormat, flagFormatName, []string{}, "")
	Cmd.Flags().StringVar(&flagConfig, flagConfigName, "", "")

	Cmd.SetUsageFunc(usageFunc)
}

func usageFunc(cmd *cobra.Command) error {
	cmd.Printf("Usage: %s [flags]\n\n", cmd.CommandPath())
	cmd.Printf("Examples:\n%s\n\n", cmd.Example)
	cmd.Println("Flags:")
	for _, group := range getFlagGroups() {
		cmd.Printf("  %s:\n", group.GroupName)
		for _, flag := range group.Flags {
			flagDefault := ""
			if cmd.Flags().Lookup(flag.Name).DefValue != "" {
				flagDefault = fmt.Sprintf(" (default: %s)", cmd.Flags().Lookup(flag.Name).DefValue)
			}
			cmd.Printf("    --%-20s %s%s\n", flag.Name, flag.Help, flagDefault)
		}
	}
	cmd.Println("\nGlobal Flags:")
	cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
		flagDefault := ""
		if cmd.Parent().PersistentFlags().Lookup(pf.Name).DefValue != "" {
			flagDefault = fmt.Sprintf(" (default: %s)", cmd.Flags().Lookup(pf.Name).DefValue)
		}
		cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, flagDefault)
	})
	return nil
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagItersName,
			Help: fmt.Sprintf("number of operations per timed trial. Must be a positive multiple of %d.", kernels.LoopOps),
		},
		{
			Name: flagTestName,
			Help: "run only the kernel with the given ID. See the list command for IDs.",
		},
		{
			Name: flagCpuName,
			Help: "logical CPU the measurement thread is pinned to",
		},
		{
			Name: flagForceTscCalibrateName,
			Help: "force the TSC calibration loop, even if cpuid reports the TSC frequency",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Measurement Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagFormatName,
			Help: fmt.Sprintf("write report file(s) in format(s) chosen from: %s", strings.Join(append([]string{report.FormatAll}, report.FormatOptions...), ", ")),
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Output Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagConfigName,
			Help: "YAML file of flag values. Values given on the command line take precedence.",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Advanced Options",
		Flags:     flags,
	})
	return groups
}

// runConfig holds flag values read from a YAML run-configuration file.
// Pointer fields distinguish absent keys from zero values.
type runConfig struct {
	Iters             *int     `yaml:"iters"`
	Test              *string  `yaml:"test"`
	Cpu               *int     `yaml:"cpu"`
	ForceTscCalibrate *bool    `yaml:"force-tsc-calibrate"`
	Format            []string `yaml:"format"`
}

// applyConfigFile folds values from the file named by --config into the flag
// variables. Flags set on the command line keep their values.
func applyConfigFile(cmd *cobra.Command) error {
	if flagConfig == "" {
		return nil
	}
	yamlFile, err := os.ReadFile(flagConfig) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var cfg runConfig
	if err := yaml.Unmarshal(yamlFile, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", flagConfig, err)
	}
	if cfg.Iters != nil && !cmd.Flags().Changed(flagItersName) {
		flagIters = *cfg.Iters
	}
	if cfg.Test != nil && !cmd.Flags().Changed(flagTestName) {
		flagTest = *cfg.Test
	}
	if cfg.Cpu != nil && !cmd.Flags().Changed(flagCpuName) {
		flagCpu = *cfg.Cpu
	}
	if cfg.ForceTscCalibrate != nil && !cmd.Flags().Changed(flagForceTscCalibrateName) {
		flagForceTscCalibrate = *cfg.ForceTscCalibrate
	}
	if len(cfg.Format) > 0 && !cmd.Flags().Changed(flagFormatName) {
		flagFormat = cfg.Format
	}
	return nil
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagConfig != "" {
		exists, err := util.FileExists(flagConfig)
		if err != nil {
			return common.FlagValidationError(cmd, err.Error())
		}
		if !exists {
			return common.FlagValidationError(cmd, fmt.Sprintf("config file %s does not exist", flagConfig))
		}
	}
	if err := applyConfigFile(cmd); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	if flagIters <= 0 {
		return common.FlagValidationError(cmd, fmt.Sprintf("%s must be a positive multiple of %d", flagItersName, kernels.LoopOps))
	}
	if err := harness.ValidateIters(uint64(flagIters)); err != nil {
		return common.FlagValidationError(cmd, err.Error())
	}
	if flagCpu < 0 || flagCpu >= runtime.NumCPU() {
		return common.FlagValidationError(cmd, fmt.Sprintf("%s must be between 0 and %d", flagCpuName, runtime.NumCPU()-1))
	}
	for _, format := range flagFormat {
		formatOptions := []string{report.FormatAll}
		formatOptions = append(formatOptions, report.FormatOptions...)
		if !slices.Contains(formatOptions, format) {
			return common.FlagValidationError(cmd, fmt.Sprintf("format options are: %s", strings.Join(formatOptions, ", ")))
		}
	}
	return nil
}

// measurement is one kernel's timed result plus the counter deltas the probe
// captured across its final timing pass.
type measurement struct {
	kernel kernels.Kernel
	result harness.Result
	aperf  uint64
	mperf  uint64
	tsc    uint64
}

func runCmd(cmd *cobra.Command, args []string) error {
	// appContext is the application context that holds common data and resources.
	appContext := cmd.Parent().Context().Value(common.AppContext{}).(common.AppContext)
	// pin before touching anything per-core so the counters and the kernels
	// observe the same CPU
	if err := affinity.Pin(flagCpu); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	host := cpus.Identify()
	slog.Info("identified host CPU", slog.String("brand", host.BrandName), slog.String("uarch", host.MicroArchitecture))
	supported := kernels.SupportedISAs()
	fmt.Printf("CPU supports AVX2   : [%s]\n", supportIndicator(supported, kernels.AVX2))
	fmt.Printf("CPU supports AVX-512: [%s]\n", supportIndicator(supported, kernels.AVX512))
	// the serialized TSC clock when the architecture has one, the monotonic
	// wall clock otherwise
	var clk clock.Clock
	var clockName, tscDesc string
	var tscHz uint64
	if tsc.Supported() {
		hz, tscSource, err := tsc.Frequency(flagForceTscCalibrate)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
		tscClk, err := clock.NewTSC(hz)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
		clk = tscClk
		clockName = "tsc"
		tscHz = hz
		tscDesc = fmt.Sprintf("%.1f MHz (%s)", float64(hz)/1000000, tscSource)
		fmt.Printf("tsc_freq = %.1f MHz (%s)\n", float64(hz)/1000000, tscSource)
		slog.Info("TSC frequency determined", slog.Uint64("hz", hz), slog.String("source", tscSource))
	} else {
		clk = clock.NewWall()
		clockName = "wall"
		slog.Info("no time stamp counter on this architecture, timing against the wall clock")
	}
	prb, probeActive := probe.Detect(flagCpu)
	defer func() {
		if err := prb.Close(); err != nil {
			slog.Error("error closing counter probe", slog.String("error", err.Error()))
		}
	}()
	// handle signals so an interrupt stops the run between kernels rather
	// than inside a timing bracket
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChannel
		setSignalReceived()
		slog.Info("received signal", slog.String("signal", sig.String()))
	}()
	eligible := kernels.Eligible(supported, flagTest)
	slog.Info("selected kernels", slog.Int("count", len(eligible)), slog.String("focus", flagTest))
	measurements := make([]measurement, 0, len(eligible))
	if len(eligible) > 0 {
		spinner := progress.NewSpinner()
		spinner.Start()
		// one discarded full run so the core reaches its sustained frequency
		// before anything is recorded
		spinner.Status(fmt.Sprintf("warming up with %s", eligible[0].ID))
		if _, err := harness.Run(eligible[0].Func, warmupIters, clk, probe.Noop{}); err != nil {
			spinner.Finish()
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
		// a collection pause inside a timing bracket would land in the trial deltas
		runtime.GC()
		for _, k := range eligible {
			if getSignalReceived() {
				break
			}
			spinner.Status(fmt.Sprintf("measuring %s", k.ID))
			result, err := harness.Run(k.Func, uint64(flagIters), clk, prb)
			if err != nil {
				spinner.Finish()
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				slog.Error(err.Error())
				cmd.SilenceUsage = true
				return err
			}
			m := measurement{kernel: k, result: result}
			if probeActive {
				m.aperf, m.mperf, m.tsc = prb.Deltas()
			}
			measurements = append(measurements, m)
		}
		spinner.Finish()
		if getSignalReceived() {
			// partial results are misleading, report nothing
			fmt.Fprintln(os.Stderr, "Interrupted, no results reported.")
			slog.Info("measurement interrupted before completion")
			return nil
		}
	}
	defs := metric.Definitions(probeActive)
	allTableValues := []report.TableValues{
		setupTableValues(host, supported, tscDesc, clockName, prb.Name(), len(measurements)),
		frequencyTableValues(measurements, defs, tscHz),
	}
	out, err := report.Create(report.FormatTxt, allTableValues)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	fmt.Print(string(out))
	if err := writeReportFiles(appContext.OutputDir, allTableValues); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	return nil
}

// supportIndicator renders the bracketed YES/NO of the startup banner. The
// padded NO keeps the closing brackets aligned.
func supportIndicator(supported, isa kernels.ISA) string {
	if supported&isa != 0 {
		return "YES"
	}
	return "NO "
}

// isaList renders the supported extensions in registry order.
func isaList(supported kernels.ISA) string {
	var names []string
	for _, isa := range []kernels.ISA{kernels.BASE, kernels.AVX2, kernels.AVX512} {
		if supported&isa != 0 {
			names = append(names, isa.String())
		}
	}
	return strings.Join(names, ", ")
}

// metricVariables maps one measurement to the variable set consumed by the
// metric expressions.
func metricVariables(m measurement, tscHz uint64) map[string]any {
	return map[string]any{
		metric.VarIters:    float64(flagIters),
		metric.VarMedianNs: m.result.MedianNs,
		metric.VarAPerf:    float64(m.aperf),
		metric.VarMPerf:    float64(m.mperf),
		metric.VarTsc:      float64(m.tsc),
		metric.VarTscHz:    float64(tscHz),
	}
}

// setupTableValues builds the key-value table describing the measurement
// conditions. The TSC frequency cell is empty when the architecture has no
// time stamp counter, like the microarchitecture cell when the host is not
// in the definitions table.
func setupTableValues(host cpus.HostCPU, supported kernels.ISA, tscDesc string, clockName string, probeName string, measured int) report.TableValues {
	return report.TableValues{
		Name:    setupTableName,
		HasRows: false,
		Fields: []report.Field{
			{Name: "Brand", Values: []string{host.BrandName}},
			{Name: "Vendor", Values: []string{host.Vendor}},
			{Name: "Microarchitecture", Values: []string{host.MicroArchitecture}},
			{Name: "ISA support", Values: []string{isaList(supported)}},
			{Name: "Clock", Values: []string{clockName}},
			{Name: "TSC frequency", Values: []string{tscDesc}},
			{Name: "Frequency probe", Values: []string{probeName}},
			{Name: "Pinned CPU", Values: []string{strconv.Itoa(flagCpu)}},
			{Name: "Iterations", Values: []string{strconv.Itoa(flagIters)}},
			{Name: "Timing passes", Values: []string{fmt.Sprintf("%d x %d trials", harness.Warmup+1, harness.Tries)}},
			{Name: "Kernels measured", Values: []string{strconv.Itoa(measured)}},
		},
	}
}

// frequencyTableValues builds the per-kernel results table. Metric cells that
// fail to evaluate are left empty.
func frequencyTableValues(measurements []measurement, defs []metric.Definition, tscHz uint64) report.TableValues {
	fields := []report.Field{
		{Name: "ID", Values: []string{}},
		{Name: "Description", Values: []string{}},
	}
	for _, def := range defs {
		fields = append(fields, report.Field{Name: def.Name, Values: []string{}})
	}
	for _, m := range measurements {
		fields[0].Values = append(fields[0].Values, m.kernel.ID)
		fields[1].Values = append(fields[1].Values, m.kernel.Description)
		variables := metricVariables(m, tscHz)
		for i, def := range defs {
			cell := ""
			value, err := def.Evaluate(variables)
			if err != nil {
				slog.Error("error evaluating metric", slog.String("metric", def.Name), slog.String("kernel", m.kernel.ID), slog.String("error", err.Error()))
			} else {
				cell = fmt.Sprintf(def.Format, value)
			}
			fields[i+2].Values = append(fields[i+2].Values, cell)
		}
	}
	return report.TableValues{
		Name:        frequencyTableName,
		HasRows:     true,
		NoDataFound: "No kernels matched the supported instruction sets and the --test filter.",
		Fields:      fields,
	}
}

// writeReportFiles renders the tables in each requested format and writes
// them under the output directory.
func writeReportFiles(outputDir string, allTableValues []report.TableValues) error {
	var formats []string
	for _, format := range flagFormat {
		formats = util.UniqueAppend(formats, format)
	}
	if slices.Contains(formats, report.FormatAll) {
		formats = report.FormatOptions
	}
	if len(formats) == 0 {
		return nil
	}
	if err := common.CreateOutputDir(outputDir); err != nil {
		return err
	}
	reportFilePaths := []string{}
	for _, format := range formats {
		reportBytes, err := report.Create(format, allTableValues)
		if err != nil {
			return fmt.Errorf("failed to create %s report: %w", format, err)
		}
		reportPath := filepath.Join(outputDir, "measurements."+format)
		if err := common.WriteReport(reportBytes, reportPath); err != nil {
			return err
		}
		reportFilePaths = append(reportFilePaths, reportPath)
	}
	if len(reportFilePaths) > 0 {
		fmt.Println("Report files:")
	}
	for _, reportFilePath := range reportFilePaths {
		fmt.Printf("  %s\n", reportFilePath)
	}
	return nil
}
