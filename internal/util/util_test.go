package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestIntRangeToIntList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
		err      bool
	}{
		{"1-5", []int{1, 2, 3, 4, 5}, false},            // Valid range
		{"10-15", []int{10, 11, 12, 13, 14, 15}, false}, // Valid range
		{"5-5", []int{5}, false},                        // Single value range
		{"", []int{}, true},                             // Empty input
		{"5-3", nil, true},                              // Invalid range (start > end)
		{"abc-def", nil, true},                          // Invalid input format
		{"1-", nil, true},                               // Missing end value
		{"-5", nil, true},                               // Missing start value
		{"1-5-10", nil, true},                           // Invalid format with extra dash
		{"3", []int{3}, false},                          // Single value without range
	}

	for _, test := range tests {
		result, err := IntRangeToIntList(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %s, err: %v", test.err, err != nil, test.input, err)
		}
		if !test.err && !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %s", test.expected, result, test.input)
		}
	}
}

func TestSelectiveIntRangeToIntList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
		err      bool
	}{
		{"1-3,5,7-9", []int{1, 2, 3, 5, 7, 8, 9}, false},             // Valid mixed ranges and single values
		{"10-12,15,20-22", []int{10, 11, 12, 15, 20, 21, 22}, false}, // Valid mixed ranges
		{"5", []int{5}, false},                                       // Single value
		{"1-3,5-5,7", []int{1, 2, 3, 5, 7}, false},                   // Mixed ranges with single value range
		{"", nil, true},            // Empty input
		{"1-3,abc,7-9", nil, true}, // Invalid input with non-numeric value
		{"1-3,5-2,7-9", nil, true}, // Invalid range (start > end)
		{"1-3,,7-9", nil, true},    // Invalid format with empty segment
	}

	for _, test := range tests {
		result, err := SelectiveIntRangeToIntList(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %s, err: %v", test.err, err != nil, test.input, err)
		}
		if !test.err && !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %s", test.expected, result, test.input)
		}
	}
}

func TestUniqueAppend(t *testing.T) {
	strs := []string{"a", "b"}
	strs = UniqueAppend(strs, "b")
	if !slices.Equal(strs, []string{"a", "b"}) {
		t.Errorf("expected no append for duplicate, got %v", strs)
	}
	strs = UniqueAppend(strs, "c")
	if !slices.Equal(strs, []string{"a", "b", "c"}) {
		t.Errorf("expected append of new item, got %v", strs)
	}

	ints := UniqueAppend(nil, 7)
	if !slices.Equal(ints, []int{7}) {
		t.Errorf("expected append to nil slice, got %v", ints)
	}
}

func TestFileExists(t *testing.T) {
	tempDir := t.TempDir()

	filePath := filepath.Join(tempDir, "exists.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	exists, err := FileExists(filePath)
	if err != nil {
		t.Fatalf("FileExists returned error: %v", err)
	}
	if !exists {
		t.Errorf("expected file to exist: %s", filePath)
	}

	exists, err = FileExists(filepath.Join(tempDir, "missing.txt"))
	if err != nil {
		t.Fatalf("FileExists returned error: %v", err)
	}
	if exists {
		t.Errorf("expected file to not exist")
	}

	// a directory is not a file
	_, err = FileExists(tempDir)
	if err == nil {
		t.Errorf("expected error for directory path")
	}
}

func TestDirectoryExists(t *testing.T) {
	tempDir := t.TempDir()

	exists, err := DirectoryExists(tempDir)
	if err != nil {
		t.Fatalf("DirectoryExists returned error: %v", err)
	}
	if !exists {
		t.Errorf("expected directory to exist: %s", tempDir)
	}

	exists, err = DirectoryExists(filepath.Join(tempDir, "missing"))
	if err != nil {
		t.Fatalf("DirectoryExists returned error: %v", err)
	}
	if exists {
		t.Errorf("expected directory to not exist")
	}

	// a file is not a directory
	filePath := filepath.Join(tempDir, "file.txt")
	if err := os.WriteFile(filePath, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	_, err = DirectoryExists(filePath)
	if err == nil {
		t.Errorf("expected error for file path")
	}
}
