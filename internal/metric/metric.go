// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package metric defines the derived columns computed from kernel timings
// and counter deltas. Each definition holds a parsed expression; values are
// produced by evaluating it against a per-row variable map.
package metric

import (
	"fmt"
	"math"
	"strings"

	"github.com/casbin/govaluate"
	mapset "github.com/deckarep/golang-set/v2"
)

// Definition is one derived column. The expression is parsed once at
// process start and evaluated per kernel row.
type Definition struct {
	Name       string
	Expression string
	Format     string // printf verb used to render the value
	NeedsProbe bool   // true when the expression consumes counter deltas
	variables  mapset.Set[string]
	evaluable  *govaluate.EvaluableExpression
}

// Variable names supplied by the orchestration for each kernel row.
const (
	VarIters    = "iters"
	VarMedianNs = "median_ns"
	VarAPerf    = "aperf"
	VarMPerf    = "mperf"
	VarTsc      = "tsc"
	VarTscHz    = "tsc_hz"
)

var definitions = []Definition{
	newDefinition("MHz", "iters / median_ns * 1000", "%4.0f", false),
	newDefinition("A/M-ratio", "aperf / mperf", "%.2f", true),
	newDefinition("A/M-MHz", "aperf / mperf * tsc_hz / 1000000", "%4.0f", true),
	newDefinition("M/tsc-ratio", "mperf / tsc", "%.2f", true),
}

// expressions are compiled-in literals, failing to parse one is a
// programming error
func newDefinition(name, expression, format string, needsProbe bool) Definition {
	evaluable, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		panic(fmt.Sprintf("failed to parse expression for metric %s: %v", name, err))
	}
	return Definition{
		Name:       name,
		Expression: expression,
		Format:     format,
		NeedsProbe: needsProbe,
		variables:  mapset.NewSet(evaluable.Vars()...),
		evaluable:  evaluable,
	}
}

// Definitions returns the column set for a run. Probe-dependent columns are
// excluded when no counter source is active, so an unprivileged run still
// produces the throughput column.
func Definitions(probeActive bool) []Definition {
	if probeActive {
		return definitions
	}
	var defs []Definition
	for _, d := range definitions {
		if !d.NeedsProbe {
			defs = append(defs, d)
		}
	}
	return defs
}

// Evaluate computes the column value from the supplied variables. Missing
// variables, a non-numeric result, and division by zero are reported as
// errors so a single bad cell never takes down the run.
func (d Definition) Evaluate(variables map[string]any) (value float64, err error) {
	supplied := mapset.NewSetFromMapKeys(variables)
	missing := d.variables.Difference(supplied)
	if missing.Cardinality() > 0 {
		return 0, fmt.Errorf("metric %s missing variables: %s", d.Name, strings.Join(missing.ToSlice(), ", "))
	}
	// the evaluator panics on some malformed inputs, catch those here
	defer func() {
		if errx := recover(); errx != nil {
			err = fmt.Errorf("failed to evaluate metric %s: %v", d.Name, errx)
		}
	}()
	result, err := d.evaluable.Evaluate(variables)
	if err != nil {
		return 0, fmt.Errorf("%v : %s : %s", err, d.Name, d.Expression)
	}
	f, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("metric %s produced non-numeric result: %v", d.Name, result)
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("metric %s produced %v, check for zero denominators", d.Name, f)
	}
	return f, nil
}
