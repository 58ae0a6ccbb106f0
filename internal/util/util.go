// Package util provides small helpers shared by the command packages: home
// directory expansion, file and directory checks, and CPU list parsing.
package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ExpandUser replaces a leading '~' in path with the current user's home
// directory. The path is returned unchanged when it has no '~' prefix or the
// home directory cannot be determined.
func ExpandUser(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return filepath.Join(home, path[2:])
	}
	return path
}

// AbsPath makes path absolute after expanding a leading '~'.
// Use everywhere in place of filepath.Abs()
func AbsPath(path string) (string, error) {
	return filepath.Abs(ExpandUser(path))
}

// FileExists reports whether a regular file exists at path. An error is
// returned when path names something other than a regular file, e.g., a
// directory.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("%s not a file", path)
	}
	return true, nil
}

// DirectoryExists reports whether a directory exists at path. An error is
// returned when path names something other than a directory.
func DirectoryExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%s not a directory", path)
	}
	return true, nil
}

// UniqueAppend appends item to slice unless the slice already contains it.
func UniqueAppend[T comparable](slice []T, item T) []T {
	if !slices.Contains(slice, item) {
		slice = append(slice, item)
	}
	return slice
}

// matches "start-end" or a bare "start", digits only
var intRangeRe = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)

// IntRangeToIntList expands "start-end" into the inclusive list of integers
// the range covers, e.g., "1-3" becomes [1, 2, 3]. A bare value expands to a
// single-element list.
func IntRangeToIntList(input string) ([]int, error) {
	m := intRangeRe.FindStringSubmatch(input)
	if m == nil {
		return nil, fmt.Errorf("invalid range: %q", input)
	}
	start, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("bad start of range %q: %w", input, err)
	}
	if m[2] == "" {
		return []int{start}, nil
	}
	end, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("bad end of range %q: %w", input, err)
	}
	if start > end {
		return nil, fmt.Errorf("start greater than end in range %q", input)
	}
	list := make([]int, 0, end-start+1)
	for v := start; v <= end; v++ {
		list = append(list, v)
	}
	return list, nil
}

// SelectiveIntRangeToIntList expands a comma separated list of ranges and
// bare values, e.g., "0-2,8,10-11" becomes [0, 1, 2, 8, 10, 11].
func SelectiveIntRangeToIntList(input string) ([]int, error) {
	var list []int
	for _, part := range strings.Split(input, ",") {
		vals, err := IntRangeToIntList(part)
		if err != nil {
			return nil, err
		}
		list = append(list, vals...)
	}
	return list, nil
}
