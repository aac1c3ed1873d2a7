// Package monotonic checks whether TSC values measured across CPUs
// increase (or stay level) in the order they were taken, never decrease.
// It is the Go counterpart of wtmlib.c's wtmlib_EvalTSCMonotonicityCPUSW
// and wtmlib_IsProbeSequenceMonotonic/wtmlib_EvalTSCMonotonicityCOP.
//
// A reported non-monotonic result does not by itself prove the TSC is
// unreliable: a legitimate TSC wrap can look identical to a local
// decrease. Callers combine this with internal/deltarange before drawing
// conclusions about whether the TSC is trustworthy.
package monotonic

import (
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/AndreyNevolin/wtmlib/internal/carousel"
	"github.com/AndreyNevolin/wtmlib/internal/probe"
)

// ErrPoorStatistics is wrapped into the error FromCASProbes returns when
// too few full loops were observed to trust the monotonicity verdict.
var ErrPoorStatistics = errors.New("monotonic: insufficient full-loop observations")

// FromCarousel reports whether TSC values collected while riding the
// carousel across cs.CPUs increased monotonically, treating the trailing
// sample back on cs.CPUs[0] as the final value in the sequence.
func FromCarousel(cs carousel.Sample) (bool, error) {
	n := len(cs.Samples)
	if n == 0 {
		return false, fmt.Errorf("monotonic: empty carousel sample")
	}

	for i, s := range cs.Samples {
		last := cs.Rounds
		if i != 0 {
			last = cs.Rounds - 1
		}
		if s[0] == s[last] {
			return false, fmt.Errorf("monotonic: first and last TSC values on CPU index %d are equal", i)
		}
	}

	var prev uint64
	isMonotonic := true

rounds:
	for round := 0; round < cs.Rounds; round++ {
		for series := 0; series < n; series++ {
			v := cs.Samples[series][round]
			if v < prev {
				isMonotonic = false
				glog.V(1).Infof("monotonic: carousel growth broke at round %d, CPU index %d", round, series)
				break rounds
			}
			prev = v
		}
	}

	if isMonotonic && cs.Samples[0][cs.Rounds] < prev {
		isMonotonic = false
	}

	return isMonotonic, nil
}

// FromCASProbes reports whether the TSC probes collected across probesByCPU
// (each entry's Probes in increasing SeqNum order, together spanning every
// sequence number from 0) increase monotonically in global sequence order,
// requiring at least loopThreshold "full loops" — minimal sub-sequences
// that start and end on the first-seen CPU and touch every CPU at least
// once — to call the result statistically significant.
func FromCASProbes(probesByCPU [][]probe.Probe, loopThreshold uint64) (bool, error) {
	numCPUs := len(probesByCPU)
	if numCPUs == 0 {
		return false, fmt.Errorf("monotonic: no CPUs given")
	}
	probesNum := len(probesByCPU[0])
	for i, p := range probesByCPU {
		if len(p) != probesNum {
			return false, fmt.Errorf("monotonic: CPU index %d has %d probes, want %d", i, len(p), probesNum)
		}
		if p[0].TSCVal == p[probesNum-1].TSCVal {
			return false, fmt.Errorf("monotonic: first and last TSC values on CPU index %d are equal", i)
		}
	}

	firstCPUInd := -1
	for i, p := range probesByCPU {
		if p[0].SeqNum == 0 {
			firstCPUInd = i
			break
		}
	}
	if firstCPUInd == -1 {
		return false, fmt.Errorf("monotonic: no CPU holds sequence number 0")
	}

	// Dense sequence numbers mean the probe holding a given seq can be
	// located once, up front, in O(kP) total work, instead of scanning
	// every CPU's cursor on every step: owner[seq] names which CPU holds
	// that sequence number, so the walk below needs one lookup per step.
	total := probesNum * numCPUs
	owner := make([]int, total)
	for i := range owner {
		owner[i] = -1
	}
	for c, probes := range probesByCPU {
		for _, pr := range probes {
			if int(pr.SeqNum) >= total {
				return false, fmt.Errorf("monotonic: CPU index %d has out-of-range sequence number %d", c, pr.SeqNum)
			}
			owner[pr.SeqNum] = c
		}
	}

	indexes := make([]int, numCPUs)
	cpuSeenNum := make([]uint64, numCPUs)
	var prev uint64
	var numLoops uint64
	cpusSeen := 0
	isMonotonic := true

	for seq := 0; seq < total; seq++ {
		c := owner[seq]
		if c == -1 {
			return false, fmt.Errorf("monotonic: couldn't find a TSC probe with sequence number %d", seq)
		}

		pr := probesByCPU[c][indexes[c]]

		if pr.TSCVal < prev {
			isMonotonic = false
			glog.V(1).Infof("monotonic: CAS-probe growth broke at sequence number %d", seq)
			break
		}

		indexes[c]++
		prev = pr.TSCVal

		if cpusSeen == numCPUs && c == firstCPUInd {
			numLoops++
			cpusSeen = 0
		}

		if cpuSeenNum[c] < numLoops+1 {
			cpuSeenNum[c]++
			cpusSeen++
		}
	}

	if isMonotonic && numLoops < loopThreshold {
		return false, fmt.Errorf("monotonic: only %d full loops observed, need at least %d: %w", numLoops, loopThreshold, ErrPoorStatistics)
	}

	return isMonotonic, nil
}
