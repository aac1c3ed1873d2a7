// Package cpupin pins the calling goroutine to a single CPU for the
// duration of a closure, restoring its prior affinity afterward. It
// generalizes codewanderer42820-evm_triarb's ring/setaffinity_linux.go —
// which pins a dedicated consumer goroutine for its own lifetime and
// swallows affinity errors, a fine tradeoff for a fire-and-forget
// low-latency consumer — into a scoped, error-returning helper, since a
// silently failed pin here would let a probe run on the wrong CPU.
package cpupin

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// On pins the calling goroutine's OS thread to cpu, runs fn, then restores
// the thread's previous affinity mask. The goroutine is locked to its OS
// thread for the duration of the call, since Go's scheduler is otherwise
// free to migrate a goroutine between OS threads and undo the pin.
func On(cpu int, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var prior unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prior); err != nil {
		return fmt.Errorf("cpupin: saving affinity before pinning to CPU %d: %w", cpu, err)
	}

	var pinned unix.CPUSet
	pinned.Zero()
	pinned.Set(cpu)
	if err := unix.SchedSetaffinity(0, &pinned); err != nil {
		return fmt.Errorf("cpupin: pinning to CPU %d: %w", cpu, err)
	}

	fnErr := fn()

	if err := unix.SchedSetaffinity(0, &prior); err != nil {
		if fnErr != nil {
			return fmt.Errorf("cpupin: restoring affinity after error %q from pinned work: %w", fnErr, err)
		}
		return fmt.Errorf("cpupin: restoring affinity after pinning to CPU %d: %w", cpu, err)
	}

	return fnErr
}
