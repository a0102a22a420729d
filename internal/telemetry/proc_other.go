//go:build !linux

package telemetry

func readProcStatus(int) (procStatus, error) {
	return procStatus{}, ErrUnsupported
}

func selfRSS() (uint64, error) {
	return 0, ErrUnsupported
}

func systemMemory() (uint64, error) {
	return 0, ErrUnsupported
}

func processMemoryLimit(int) (uint64, error) {
	return 0, ErrUnsupported
}
