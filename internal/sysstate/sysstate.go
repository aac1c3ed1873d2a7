// Package sysstate captures and restores the parts of process/thread state
// that the rest of this module perturbs while it samples the TSC: the
// calling goroutine's CPU affinity and its starting CPU. Every exported
// entry point that migrates the calling goroutine across CPUs captures
// state first and restores it on every return path, mirroring wtmlib.c's
// own wtmlib_GetProcAndSystemState/wtmlib_RestoreInitialProcState pair.
package sysstate

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/golang/glog"
	"github.com/templexxx/cpu"
	"golang.org/x/sys/unix"

	"github.com/AndreyNevolin/wtmlib/internal/xpad"
)

// State is the snapshot captured before this module starts moving the
// calling goroutine between CPUs, and restored once it's done.
type State struct {
	// InitialCPU is the CPU the calling goroutine was running on when
	// CaptureState was called.
	InitialCPU int
	// InitialAffinity is the affinity mask the calling goroutine had
	// when CaptureState was called.
	InitialAffinity unix.CPUSet
	// AllowedCPUs is InitialAffinity decoded into a sorted CPU id list.
	// This is the set every sampling component confines itself to.
	AllowedCPUs []int
	// HasInvariantTSC is an informational flag only; it never gates any
	// decision this module makes.
	HasInvariantTSC bool
}

// CacheLineSize is the assumed coherency line size, re-exported from
// internal/xpad so callers that only import sysstate don't also need to
// import xpad.
const CacheLineSize = xpad.CacheLineSize

// getCPU returns the CPU the calling OS thread is currently running on, via
// the raw getcpu(2) syscall (the same syscall glibc's sched_getcpu wraps).
func getCPU() (int, error) {
	var cpu, node uint32
	_, _, errno := unix.Syscall(unix.SYS_GETCPU,
		uintptr(unsafe.Pointer(&cpu)), uintptr(unsafe.Pointer(&node)), 0)
	if errno != 0 {
		return 0, errno
	}
	return int(cpu), nil
}

// CaptureState records the calling goroutine's current CPU and affinity
// mask, then locks it to its OS thread so the affinity stays meaningful
// for the remainder of the calling component's work. Callers MUST call
// RestoreState (typically via defer) once they're done, which also
// unlocks the OS thread.
func CaptureState() (*State, error) {
	runtime.LockOSThread()

	initialCPU, err := getCPU()
	if err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("sysstate: getting current CPU: %w", err)
	}

	var affinity unix.CPUSet
	if err := unix.SchedGetaffinity(0, &affinity); err != nil {
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("sysstate: getting CPU affinity: %w", err)
	}

	// unix.CPUSet is fixed-size (1024 CPUs' worth of bits, matching the
	// kernel's CPU_SETSIZE); scan the whole thing rather than guessing a
	// smaller bound from Count().
	const maxCPUs = 1024
	allowed := make([]int, 0, affinity.Count())
	for id := 0; id < maxCPUs; id++ {
		if affinity.IsSet(id) {
			allowed = append(allowed, id)
		}
	}

	hasInvariantTSC := cpu.X86.HasInvariantTSC
	glog.V(2).Infof("sysstate: captured state: initial_cpu=%d allowed_cpus=%v invariant_tsc=%v",
		initialCPU, allowed, hasInvariantTSC)

	return &State{
		InitialCPU:      initialCPU,
		InitialAffinity: affinity,
		AllowedCPUs:     allowed,
		HasInvariantTSC: hasInvariantTSC,
	}, nil
}

// RestoreState returns the calling goroutine to the CPU and affinity mask
// recorded by CaptureState, then unlocks the OS thread. It restores in two
// steps — pin to the exact initial CPU first, then widen back to the full
// initial affinity mask — because going straight to the full mask could
// leave the goroutine on a different member CPU than the one it started
// on, and callers upstream of this module may have CPU-local state (cache
// contents, NUMA-local allocations) tied to that exact CPU.
func RestoreState(state *State) error {
	defer runtime.UnlockOSThread()

	var single unix.CPUSet
	single.Zero()
	single.Set(state.InitialCPU)

	if err := unix.SchedSetaffinity(0, &single); err != nil {
		return fmt.Errorf("sysstate: returning to initial CPU %d: %w", state.InitialCPU, err)
	}

	if err := unix.SchedSetaffinity(0, &state.InitialAffinity); err != nil {
		return fmt.Errorf("sysstate: restoring initial affinity: %w", err)
	}

	glog.V(2).Infof("sysstate: restored state: initial_cpu=%d", state.InitialCPU)
	return nil
}
