//go:build linux

package telemetry

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func readProcStatus(pid int) (procStatus, error) {
	f, err := os.Open("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return procStatus{}, err
	}
	defer f.Close()
	return parseProcStatus(f)
}

// selfRSS reads resident pages from /proc/self/statm, falling back to the
// peak RSS reported by getrusage.
func selfRSS() (uint64, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err == nil {
		fields := strings.Fields(string(data))
		if len(fields) >= 2 {
			pages, perr := strconv.ParseUint(fields[1], 10, 64)
			if perr == nil {
				return pages * uint64(os.Getpagesize()), nil
			}
		}
	}
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, fmt.Errorf("getrusage: %w", err)
	}
	// Maxrss is in kilobytes on Linux.
	return uint64(ru.Maxrss) * 1024, nil
}

// systemMemory returns total physical memory.
func systemMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}

// processMemoryLimit returns the address-space rlimit of pid, or 0 when it
// is unlimited.
func processMemoryLimit(pid int) (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Prlimit(pid, unix.RLIMIT_AS, nil, &rlim); err != nil {
		return 0, fmt.Errorf("prlimit: %w", err)
	}
	if rlim.Cur == unix.RLIM_INFINITY {
		return 0, nil
	}
	return rlim.Cur, nil
}
