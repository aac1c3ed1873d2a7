// Package carousel implements the "CPU Switching" TSC sampling method: a
// single goroutine is migrated across an ordered list of CPUs, taking one
// TSC reading right after each migration. It is the Go counterpart of
// wtmlib.c's wtmlib_CollectTSCInCPUCarousel, generalized from a raw
// pthread_setaffinity_np loop to golang.org/x/sys/unix affinity calls on a
// goroutine locked to its OS thread.
package carousel

import (
	"fmt"
	"runtime"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/AndreyNevolin/wtmlib/internal/tscread"
)

// Sample holds the TSC values collected while riding the carousel across
// cpus. Samples[i] holds one reading per round on cpus[i]; Samples[0] holds
// one extra trailing reading, taken after the carousel returns to cpus[0],
// so the first and last TSC values in a round-trip are measured on the
// same CPU.
type Sample struct {
	CPUs    []int
	Samples [][]uint64
	Rounds  int
}

// Collect runs rounds iterations of the carousel across cpus, reading the
// TSC once after each migration, plus one trailing reading back on cpus[0].
func Collect(cpus []int, rounds int) (Sample, error) {
	if len(cpus) == 0 {
		return Sample{}, fmt.Errorf("carousel: empty CPU list")
	}
	if rounds <= 0 {
		return Sample{}, fmt.Errorf("carousel: rounds must be positive, got %d", rounds)
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	samples := make([][]uint64, len(cpus))
	for i := range samples {
		n := rounds
		if i == 0 {
			n++
		}
		samples[i] = make([]uint64, n)
	}

	var set unix.CPUSet
	for round := 0; round < rounds; round++ {
		for idx, cpu := range cpus {
			set.Zero()
			set.Set(cpu)
			if err := unix.SchedSetaffinity(0, &set); err != nil {
				return Sample{}, fmt.Errorf("carousel: pinning to CPU %d: %w", cpu, err)
			}
			samples[idx][round] = tscread.Read()
		}
	}

	set.Zero()
	set.Set(cpus[0])
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return Sample{}, fmt.Errorf("carousel: returning to CPU %d: %w", cpus[0], err)
	}
	samples[0][rounds] = tscread.Read()

	glog.V(2).Infof("carousel: collected %d rounds across %d CPUs", rounds, len(cpus))

	return Sample{CPUs: cpus, Samples: samples, Rounds: rounds}, nil
}
