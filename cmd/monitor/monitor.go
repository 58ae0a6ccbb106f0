// Package monitor is a subcommand of the root command. It samples the
// frequency counters of the selected CPUs at a fixed interval without
// running any kernels.
package monitor

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fingera/avx-turbo/internal/common"
	"github.com/fingera/avx-turbo/internal/probe"
	"github.com/fingera/avx-turbo/internal/tsc"
	"github.com/fingera/avx-turbo/internal/util"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const cmdName = "monitor"

var examples = []string{
	fmt.Sprintf("  Monitor CPU 0 once per second:       $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  Monitor a range of CPUs:             $ %s %s --cpus 0-3,8", common.AppName, cmdName),
	fmt.Sprintf("  Five samples, two seconds apart:     $ %s %s --count 5 --interval 2", common.AppName, cmdName),
	fmt.Sprintf("  Expose samples to Prometheus:        $ %s %s --prometheus", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Watch per-CPU frequency counters without running kernels",
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
	// monitor options
	flagCpus     string
	flagInterval int
	flagCount    int
	// prometheus options
	flagPrometheus        bool
	flagPrometheusAddress string
)

const (
	flagCpusName              = "cpus"
	flagIntervalName          = "interval"
	flagCountName             = "count"
	flagPrometheusName        = "prometheus"
	flagPrometheusAddressName = "prometheus-address"
)

func init() {
	Cmd.Flags().StringVar(&flagCpus, flagCpusName, "0", "")
	Cmd.Flags().IntVar(&flagInterval, flagIntervalName, 1, "")
	Cmd.Flags().IntVar(&flagCount, flagCountName, 0, "")
	Cmd.Flags().BoolVar(&flagPrometheus, flagPrometheusName, false, "")
	Cmd.Flags().StringVar(&flagPrometheusAddress, flagPrometheusAddressName, ":2112", "")

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
			Name: flagCpusName,
			Help: "comma separated list of logical CPUs and CPU ranges to monitor, e.g., 0-3,8",
		},
		{
			Name: flagIntervalName,
			Help: "number of seconds between samples",
		},
		{
			Name: flagCountName,
			Help: "number of samples to take. If 0, sampling continues until interrupted.",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Monitor Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagPrometheusName,
			Help: "expose the samples as Prometheus gauges on /metrics",
		},
		{
			Name: flagPrometheusAddressName,
			Help: "listen address of the Prometheus metrics server",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Prometheus Options",
		Flags:     flags,
	})
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	cpuList, err := util.SelectiveIntRangeToIntList(flagCpus)
	if err != nil {
		return common.FlagValidationError(cmd, fmt.Sprintf("invalid %s: %v", flagCpusName, err))
	}
	for _, cpu := range cpuList {
		if cpu >= runtime.NumCPU() {
			return common.FlagValidationError(cmd, fmt.Sprintf("cpu %d is beyond the last logical CPU, %d", cpu, runtime.NumCPU()-1))
		}
	}
	if flagInterval < 1 {
		return common.FlagValidationError(cmd, "interval must be 1 or greater")
	}
	if flagCount < 0 {
		return common.FlagValidationError(cmd, "count must be 0 or greater")
	}
	return nil
}

// sample is one bracketed reading of a CPU's counters. The ratios are zero
// when the core was halted for the whole bracket.
type sample struct {
	cpu          int
	aperf        uint64
	mperf        uint64
	tsc          uint64
	amRatio      float64
	effectiveMHz float64
	mtscRatio    float64
}

func newSample(cpu int, prb probe.Probe, tscHz uint64) sample {
	aperf, mperf, tsc := prb.Deltas()
	s := sample{cpu: cpu, aperf: aperf, mperf: mperf, tsc: tsc}
	if mperf > 0 && tsc > 0 {
		s.amRatio = float64(aperf) / float64(mperf)
		s.effectiveMHz = s.amRatio * float64(tscHz) / 1000000
		s.mtscRatio = float64(mperf) / float64(tsc)
	}
	return s
}

func runCmd(cmd *cobra.Command, args []string) error {
	cpuList, err := util.SelectiveIntRangeToIntList(flagCpus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	// every monitored CPU needs readable counters, there is nothing to
	// report without them
	probes := make([]probe.Probe, 0, len(cpuList))
	defer func() {
		for _, prb := range probes {
			if err := prb.Close(); err != nil {
				slog.Error("error closing counter probe", slog.String("error", err.Error()))
			}
		}
	}()
	for _, cpu := range cpuList {
		prb, active := probe.Detect(cpu)
		if !active {
			err := fmt.Errorf("frequency counters are not readable on cpu %d; access to msr or perf is required, try running as root", cpu)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
		probes = append(probes, prb)
	}
	tscHz, tscSource, err := tsc.Frequency(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	slog.Info("TSC frequency determined", slog.Uint64("hz", tscHz), slog.String("source", tscSource))
	if flagPrometheus {
		startPrometheusServer(flagPrometheusAddress)
	}
	// an interrupt stops the loop after the in-flight tick
	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChannel
		setSignalReceived()
		slog.Info("received signal", slog.String("signal", sig.String()))
	}()
	printer := message.NewPrinter(language.English) // commas at thousands for the counter deltas
	printSampleHeader()
	interval := time.Duration(flagInterval) * time.Second
	for tick := 0; flagCount == 0 || tick < flagCount; tick++ {
		if getSignalReceived() {
			break
		}
		for _, prb := range probes {
			prb.Start()
		}
		time.Sleep(interval)
		for _, prb := range probes {
			prb.Stop()
		}
		timestamp := time.Now().Local().Format("15:04:05")
		for i, prb := range probes {
			s := newSample(cpuList[i], prb, tscHz)
			printSample(printer, timestamp, s)
			if flagPrometheus {
				updatePrometheusMetrics(s)
			}
		}
	}
	return nil
}

func printSampleHeader() {
	fmt.Printf("%-8s  %3s  %9s  %7s  %9s  %16s  %16s  %16s\n",
		"Time", "CPU", "A/M-ratio", "A/M-MHz", "Unhalted%", "aperf", "mperf", "tsc")
}

func printSample(printer *message.Printer, timestamp string, s sample) {
	printer.Printf("%-8s  %3d  %9.2f  %7.0f  %9.1f  %16d  %16d  %16d\n",
		timestamp, s.cpu, s.amRatio, s.effectiveMHz, s.mtscRatio*100, s.aperf, s.mperf, s.tsc)
}
