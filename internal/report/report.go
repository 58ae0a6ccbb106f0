// Package report renders measurement tables in txt, json, and xlsx formats.
package report

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"strings"
)

const (
	FormatTxt  = "txt"
	FormatJson = "json"
	FormatXlsx = "xlsx"
	FormatAll  = "all"
)

const NoDataFound = "No data found."

var FormatOptions = []string{FormatTxt, FormatJson, FormatXlsx}

// Field represents the values for one column (or one key in a key-value
// table) of a table.
type Field struct {
	Name   string
	Values []string
}

// TableValues holds one table's layout and content. HasRows selects the
// columnar layout; without it fields render as key-value pairs using the
// first value only.
type TableValues struct {
	Name        string
	HasRows     bool
	NoDataFound string // overrides the default no-data message
	Fields      []Field
}

// Create generates a report in the specified format from the provided
// tables. All fields in a table must carry the same number of values. An
// unsupported format is a programming error and panics.
func Create(format string, allTableValues []TableValues) (out []byte, err error) {
	for _, tableValues := range allTableValues {
		numRows := -1
		for _, field := range tableValues.Fields {
			if numRows == -1 {
				numRows = len(field.Values)
				continue
			}
			if len(field.Values) != numRows {
				return nil, fmt.Errorf("table %s: expected %d value(s) for field %s, found %d", tableValues.Name, numRows, field.Name, len(field.Values))
			}
		}
	}
	switch format {
	case FormatTxt:
		return createTextReport(allTableValues)
	case FormatJson:
		return createJsonReport(allTableValues)
	case FormatXlsx:
		return createXlsxReport(allTableValues)
	}
	panic(fmt.Sprintf("expected one of %s, got %s", strings.Join(FormatOptions, ", "), format))
}
