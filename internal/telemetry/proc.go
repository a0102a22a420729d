package telemetry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ProcSource reports the memory of another process from /proc/<pid>/status.
// Non-Go processes have no managed heap, so anonymous resident memory stands
// in for heapUsed and the data segment for heapTotal. No regions are reported.
type ProcSource struct {
	pid int
}

// NewProcSource creates a ProcSource for pid.
func NewProcSource(pid int) (*ProcSource, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	return &ProcSource{pid: pid}, nil
}

// Name implements Source.
func (s *ProcSource) Name() string {
	return "proc:" + strconv.Itoa(s.pid)
}

// CurrentMemoryStats implements Source.
func (s *ProcSource) CurrentMemoryStats(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	st, err := readProcStatus(s.pid)
	if err != nil {
		return Stats{}, fmt.Errorf("read /proc/%d/status: %w", s.pid, err)
	}
	limit, err := processMemoryLimit(s.pid)
	if err != nil || limit == 0 {
		limit, _ = systemMemory()
	}
	return Stats{
		HeapUsed:  st.RssAnon,
		HeapTotal: st.VmData,
		External:  st.RssFile + st.RssShmem,
		RSS:       st.VmRSS,
		HeapLimit: limit,
	}, nil
}

// procStatus holds the memory lines of /proc/<pid>/status, in bytes.
type procStatus struct {
	VmRSS    uint64
	VmData   uint64
	VmSwap   uint64
	RssAnon  uint64
	RssFile  uint64
	RssShmem uint64
}

// parseProcStatus parses "Key:   1234 kB" lines. Unknown keys are ignored.
func parseProcStatus(r io.Reader) (procStatus, error) {
	var st procStatus
	fields := map[string]*uint64{
		"VmRSS":    &st.VmRSS,
		"VmData":   &st.VmData,
		"VmSwap":   &st.VmSwap,
		"RssAnon":  &st.RssAnon,
		"RssFile":  &st.RssFile,
		"RssShmem": &st.RssShmem,
	}
	seen := 0
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		dst, ok := fields[strings.TrimSpace(line[:idx])]
		if !ok {
			continue
		}
		v, err := parseStatusKB(line[idx+1:])
		if err != nil {
			return procStatus{}, fmt.Errorf("parse %q: %w", line, err)
		}
		*dst = v
		seen++
	}
	if err := scanner.Err(); err != nil {
		return procStatus{}, err
	}
	if seen == 0 {
		return procStatus{}, fmt.Errorf("no memory fields found")
	}
	return st, nil
}

// parseStatusKB parses a value like "1234 kB" into bytes.
func parseStatusKB(s string) (uint64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty value")
	}
	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, err
	}
	if len(fields) > 1 && strings.EqualFold(fields[1], "kB") {
		n *= 1024
	}
	return n, nil
}
