// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package probe

import (
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"
)

const msrPMUPath = "/sys/bus/event_source/devices/msr"

// perfSource reads the counters through perf_event_open against the kernel's
// msr PMU. Events are opened CPU-wide on the target CPU so the deltas cover
// wall time on that CPU, which requires CAP_PERFMON or a permissive
// perf_event_paranoid setting.
type perfSource struct {
	fds map[Counter]int
}

func newPerfSource(cpu int) (*perfSource, error) {
	pmuType, err := readSysfsInt(msrPMUPath + "/type")
	if err != nil {
		return nil, fmt.Errorf("msr PMU not present: %w", err)
	}
	events := map[Counter]string{TSC: "tsc", MPerf: "mperf", APerf: "aperf"}
	src := &perfSource{fds: make(map[Counter]int)}
	for counter, event := range events {
		config, err := readSysfsEventConfig(fmt.Sprintf("%s/events/%s", msrPMUPath, event))
		if err != nil {
			src.Close()
			return nil, err
		}
		attr := unix.PerfEventAttr{
			Type:   uint32(pmuType), // #nosec G115
			Size:   uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
			Config: config,
		}
		fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
		if err != nil {
			src.Close()
			return nil, fmt.Errorf("perf_event_open for %s on cpu %d: %w", events[counter], cpu, err)
		}
		src.fds[counter] = fd
	}
	// verify all three events deliver values
	for c := range events {
		if _, err := src.Read(c); err != nil {
			src.Close()
			return nil, err
		}
	}
	return src, nil
}

func (s *perfSource) Read(c Counter) (uint64, error) {
	fd, ok := s.fds[c]
	if !ok {
		return 0, fmt.Errorf("no perf event for counter %s", c)
	}
	buf := make([]byte, 8)
	n, err := unix.Read(fd, buf)
	if err != nil {
		return 0, fmt.Errorf("perf read for %s: %w", c, err)
	}
	if n != 8 {
		return 0, fmt.Errorf("short perf read for %s: %d bytes", c, n)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func (s *perfSource) Name() string {
	return "perf"
}

func (s *perfSource) Close() error {
	var firstErr error
	for c, fd := range s.fds {
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.fds, c)
	}
	return firstErr
}

func readSysfsInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// readSysfsEventConfig parses an event description like "event=0x01" into
// the perf attr config value.
func readSysfsEventConfig(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	value, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "event=")
	if !ok {
		return 0, fmt.Errorf("unexpected event format %q in %s", strings.TrimSpace(string(data)), path)
	}
	config, err := strconv.ParseUint(value, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable event config in %s: %w", path, err)
	}
	return config, nil
}
