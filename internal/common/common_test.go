package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestFlagValidationError(t *testing.T) {
	cmd := &cobra.Command{Use: "measure"}
	err := FlagValidationError(cmd, "iterations must be a multiple of 100")
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "iterations must be a multiple of 100" {
		t.Errorf("unexpected error text: %v", err)
	}
	if !cmd.SilenceUsage {
		t.Error("SilenceUsage not set")
	}
}

func TestCreateOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	if err := CreateOutputDir(dir); err != nil {
		t.Fatalf("CreateOutputDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}
	// idempotent
	if err := CreateOutputDir(dir); err != nil {
		t.Fatalf("CreateOutputDir on existing dir failed: %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "measurements.txt")
	if err := WriteReport([]byte("hello"), path); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(content) != "hello" {
		t.Errorf("unexpected content: %q", content)
	}
}
