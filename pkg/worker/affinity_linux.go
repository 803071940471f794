package worker

import "golang.org/x/sys/unix"

// PinCPU pins the current process to the given CPU, mirroring
// initializeIpc's sched_setaffinity call in suil/worker.cpp.
func PinCPU(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
