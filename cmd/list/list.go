// Package list is a subcommand of the root command. It prints the kernel
// registry along with each kernel's eligibility on the current machine.
package list

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fingera/avx-turbo/internal/common"
	"github.com/fingera/avx-turbo/internal/kernels"
	"github.com/fingera/avx-turbo/internal/report"

	"github.com/spf13/cobra"
)

const cmdName = "list"

var examples = []string{
	fmt.Sprintf("  List the available kernels:    $ %s %s", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "List the measurement kernels and their eligibility on this machine",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

const kernelTableName = "Kernels"

func runCmd(cmd *cobra.Command, args []string) error {
	allTableValues := []report.TableValues{kernelTableValues(kernels.SupportedISAs())}
	out, err := report.Create(report.FormatTxt, allTableValues)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	fmt.Print(string(out))
	return nil
}

// kernelTableValues builds one row per registry kernel, in registry order.
func kernelTableValues(supported kernels.ISA) report.TableValues {
	fields := []report.Field{
		{Name: "ID", Values: []string{}},
		{Name: "Description", Values: []string{}},
		{Name: "ISA", Values: []string{}},
		{Name: "Eligible", Values: []string{}},
	}
	for _, k := range kernels.All() {
		fields[0].Values = append(fields[0].Values, k.ID)
		fields[1].Values = append(fields[1].Values, k.Description)
		fields[2].Values = append(fields[2].Values, k.ISA.String())
		fields[3].Values = append(fields[3].Values, eligibleIndicator(kernels.ShouldRun(k, supported, "")))
	}
	return report.TableValues{
		Name:    kernelTableName,
		HasRows: true,
		Fields:  fields,
	}
}

func eligibleIndicator(eligible bool) string {
	if eligible {
		return "yes"
	}
	return "no"
}
