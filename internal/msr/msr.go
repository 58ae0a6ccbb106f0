// Package msr reads model specific registers through the msr kernel module's
// per-CPU device files.
package msr

import (
	"encoding/binary"
	"fmt"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

const msrPath = "/dev/cpu/%d/msr"

// Register offsets for the free-running counters this tool samples.
const (
	TimeStampCounter int64 = 0x10 // IA32_TIME_STAMP_COUNTER
	MPerf            int64 = 0xe7 // IA32_MPERF, counts at the nominal rate while unhalted
	APerf            int64 = 0xe8 // IA32_APERF, counts at the actual rate while unhalted
)

// MSR is an open handle to one CPU's MSR device file.
type MSR struct {
	fd  int
	cpu int
}

// Validate checks that the msr kernel module exposes a device file for the
// given CPU.
func Validate(cpu int) error {
	msrDir := fmt.Sprintf(msrPath, cpu)
	if _, err := os.Stat(msrDir); err != nil {
		return errors.Wrap(err, fmt.Sprintf("MSR modules aren't loaded at %s, please load them using modprobe msr command", msrDir))
	}
	return nil
}

// Open opens the MSR device file for the given CPU. Reading the counter
// registers requires root or CAP_SYS_RAWIO.
func Open(cpu int) (*MSR, error) {
	path := fmt.Sprintf(msrPath, cpu)
	fd, err := syscall.Open(path, syscall.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("couldn't open the msr interface %s", path))
	}
	return &MSR{fd: fd, cpu: cpu}, nil
}

// Read returns the 64-bit value of the register at the given offset.
func (m *MSR) Read(offset int64) (uint64, error) {
	buf := make([]byte, 8)
	rc, err := syscall.Pread(m.fd, buf, offset)
	if err != nil {
		return 0, errors.Wrap(err, fmt.Sprintf("couldn't read msr %#x on cpu %d", offset, m.cpu))
	}
	if rc != 8 {
		return 0, fmt.Errorf("wrong byte count %d", rc)
	}
	// assuming all x86 uses little endian format
	return binary.LittleEndian.Uint64(buf), nil
}

// CPU returns the CPU this handle reads from.
func (m *MSR) CPU() int {
	return m.cpu
}

// Close releases the device file.
func (m *MSR) Close() error {
	return syscall.Close(m.fd)
}
