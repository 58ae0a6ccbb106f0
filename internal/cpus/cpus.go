// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cpus identifies the host CPU and maps x86 family/model/stepping to
// a microarchitecture name.
package cpus

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/klauspost/cpuid/v2"
)

const IntelVendor = "GenuineIntel"
const AMDVendor = "AuthenticAMD"

var IntelFamilies = []int{6, 19}

// Microarchitecture constants
const (
	// Intel Core CPUs
	UarchHSW = "HSW"
	UarchBDW = "BDW"
	UarchSKL = "SKL"
	UarchKBL = "KBL"
	UarchCFL = "CFL"
	UarchRKL = "RKL"
	UarchTGL = "TGL"
	UarchADL = "ADL"
	UarchMTL = "MTL"
	UarchARL = "ARL"
	// Intel Xeon CPUs
	UarchHSX = "HSX"
	UarchBDX = "BDX"
	UarchSKX = "SKX"
	UarchCLX = "CLX"
	UarchCPX = "CPX"
	UarchICX = "ICX"
	UarchSPR = "SPR"
	UarchEMR = "EMR"
	UarchSRF = "SRF"
	UarchGNR = "GNR"
	UarchCWF = "CWF"
	UarchDMR = "DMR"
	// AMD CPUs
	UarchNaples     = "Naples"
	UarchRome       = "Rome"
	UarchMilan      = "Milan"
	UarchGenoa      = "Genoa"
	UarchBergamo    = "Bergamo"
	UarchTurinZen5  = "Turin (Zen 5)"
	UarchTurinZen5c = "Turin (Zen 5c)"
)

type CPUIdentifier struct {
	Family   string // decimal family number
	Model    string // regex match over the decimal model number
	Stepping string // empty field means 'any' stepping, otherwise regex match
}

// cpuIdentifiers maps x86 CPU identification to microarchitecture names
var cpuIdentifiers = []struct {
	Identifier        CPUIdentifier
	MicroArchitecture string
}{
	// Intel Core CPUs
	{CPUIdentifier{Family: "6", Model: "(50|69|70)", Stepping: ""}, UarchHSW},             // Haswell
	{CPUIdentifier{Family: "6", Model: "(61|71)", Stepping: ""}, UarchBDW},                // Broadwell
	{CPUIdentifier{Family: "6", Model: "(78|94)", Stepping: ""}, UarchSKL},                // Skylake
	{CPUIdentifier{Family: "6", Model: "(142|158)", Stepping: "9"}, UarchKBL},             // Kabylake
	{CPUIdentifier{Family: "6", Model: "(142|158)", Stepping: "(10|11|12|13)"}, UarchCFL}, // Coffeelake
	{CPUIdentifier{Family: "6", Model: "167", Stepping: ""}, UarchRKL},                    // Rocket Lake
	{CPUIdentifier{Family: "6", Model: "(140|141)", Stepping: ""}, UarchTGL},              // Tiger Lake
	{CPUIdentifier{Family: "6", Model: "(151|154)", Stepping: ""}, UarchADL},              // Alder Lake
	{CPUIdentifier{Family: "6", Model: "170", Stepping: "4"}, UarchMTL},                   // Meteor Lake
	{CPUIdentifier{Family: "6", Model: "197", Stepping: "2"}, UarchARL},                   // Arrow Lake
	// Intel Xeon CPUs
	{CPUIdentifier{Family: "6", Model: "63", Stepping: ""}, UarchHSX},            // Haswell
	{CPUIdentifier{Family: "6", Model: "(79|86)", Stepping: ""}, UarchBDX},       // Broadwell
	{CPUIdentifier{Family: "6", Model: "85", Stepping: "(0|1|2|3|4)"}, UarchSKX}, // Skylake
	{CPUIdentifier{Family: "6", Model: "85", Stepping: "(5|6|7)"}, UarchCLX},     // Cascadelake
	{CPUIdentifier{Family: "6", Model: "85", Stepping: "11"}, UarchCPX},          // Cooperlake
	{CPUIdentifier{Family: "6", Model: "(106|108)", Stepping: ""}, UarchICX},     // Icelake
	{CPUIdentifier{Family: "6", Model: "143", Stepping: ""}, UarchSPR},           // Sapphire Rapids
	{CPUIdentifier{Family: "6", Model: "207", Stepping: ""}, UarchEMR},           // Emerald Rapids
	{CPUIdentifier{Family: "6", Model: "175", Stepping: ""}, UarchSRF},           // Sierra Forest
	{CPUIdentifier{Family: "6", Model: "173", Stepping: ""}, UarchGNR},           // Granite Rapids
	{CPUIdentifier{Family: "6", Model: "221", Stepping: ""}, UarchCWF},           // Clearwater Forest
	{CPUIdentifier{Family: "19", Model: "1", Stepping: ""}, UarchDMR},            // Diamond Rapids
	// AMD CPUs
	{CPUIdentifier{Family: "23", Model: "1", Stepping: ""}, UarchNaples},                    // Naples
	{CPUIdentifier{Family: "23", Model: "49", Stepping: ""}, UarchRome},                     // Rome
	{CPUIdentifier{Family: "25", Model: "1", Stepping: ""}, UarchMilan},                     // Milan
	{CPUIdentifier{Family: "25", Model: "(1[6-9]|2[0-9]|3[01])", Stepping: ""}, UarchGenoa}, // Genoa, model 16-31
	{CPUIdentifier{Family: "25", Model: "(16[0-9]|17[0-5])", Stepping: ""}, UarchBergamo},   // Bergamo, model 160-175
	{CPUIdentifier{Family: "26", Model: "2", Stepping: ""}, UarchTurinZen5},                 // Turin (Zen 5)
	{CPUIdentifier{Family: "26", Model: "17", Stepping: ""}, UarchTurinZen5c},               // Turin (Zen 5c)
}

// GetMicroArchitecture returns the microarchitecture name for the given x86
// family, model, and stepping. An error is returned when no definition matches.
func GetMicroArchitecture(family, model, stepping int) (uarch string, err error) {
	familyStr := strconv.Itoa(family)
	modelStr := strconv.Itoa(model)
	steppingStr := strconv.Itoa(stepping)
	for _, entry := range cpuIdentifiers {
		id := entry.Identifier
		// if family matches
		if id.Family == familyStr {
			var reModel *regexp.Regexp
			reModel, err = regexp.Compile(id.Model)
			if err != nil {
				return
			}
			// if model matches
			if reModel.FindString(modelStr) == modelStr {
				// if there is a stepping
				if id.Stepping != "" {
					var reStepping *regexp.Regexp
					reStepping, err = regexp.Compile(id.Stepping)
					if err != nil {
						return
					}
					// if stepping does NOT match
					if reStepping.FindString(steppingStr) == "" {
						// no match
						continue
					}
				}
				uarch = entry.MicroArchitecture
				return
			}
		}
	}
	err = fmt.Errorf("CPU match not found for family %d, model %d, stepping %d", family, model, stepping)
	return
}

// IsIntelCPUFamily checks if the CPU family corresponds to Intel CPUs.
func IsIntelCPUFamily(family int) bool {
	return slices.Contains(IntelFamilies, family)
}

// HostCPU holds identification details for the CPU this process runs on.
type HostCPU struct {
	BrandName         string
	Vendor            string
	MicroArchitecture string
	Family            int
	Model             int
	Stepping          int
	LogicalCores      int
}

// Identify collects identification details for the host CPU. The
// microarchitecture name is empty when the family/model/stepping is not in
// the definitions table.
func Identify() HostCPU {
	host := HostCPU{
		BrandName:    cpuid.CPU.BrandName,
		Vendor:       cpuid.CPU.VendorString,
		Family:       cpuid.CPU.Family,
		Model:        cpuid.CPU.Model,
		Stepping:     cpuid.CPU.Stepping,
		LogicalCores: cpuid.CPU.LogicalCores,
	}
	uarch, err := GetMicroArchitecture(host.Family, host.Model, host.Stepping)
	if err == nil {
		host.MicroArchitecture = uarch
	}
	return host
}
