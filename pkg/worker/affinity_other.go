//go:build !linux

package worker

// PinCPU is a no-op outside Linux: SchedSetaffinity has no portable
// equivalent, and CPU pinning is best-effort per spec.md §4.3.
func PinCPU(cpu int) error {
	return nil
}
