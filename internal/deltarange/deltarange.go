// Package deltarange computes a closed integer interval bounding the
// offset between the TSC on some "other" CPU and the TSC on a base CPU,
// from samples collected by either sampling method (internal/carousel or
// internal/probe). It is the Go counterpart of wtmlib.c's
// wtmlib_CalcTSCDeltaRangeCPUSW and wtmlib_CalcTSCDeltaRangeCOP.
package deltarange

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/glog"

	"github.com/AndreyNevolin/wtmlib/internal/carousel"
	"github.com/AndreyNevolin/wtmlib/internal/probe"
)

// ErrPoorStatistics is wrapped into the error FromCASProbes returns when
// too few independent probe sub-sequences were observed to trust the
// computed range. Callers use errors.Is against it to distinguish a
// statistical shortfall from a hard TSC inconsistency.
var ErrPoorStatistics = errors.New("deltarange: insufficient independent observations")

// Range is a closed interval [Min, Max] bounding a cross-CPU TSC offset.
type Range struct {
	Min int64
	Max int64
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// FromCarousel computes the delta range between cs.Samples[0] (the base
// CPU) and cs.Samples[1] (the other CPU), intersecting the per-round bound
// across all cs.Rounds rounds. cs must describe a two-CPU carousel.
func FromCarousel(cs carousel.Sample) (Range, error) {
	if len(cs.Samples) != 2 {
		return Range{}, fmt.Errorf("deltarange: carousel sample must cover exactly 2 CPUs, got %d", len(cs.Samples))
	}

	base, other := cs.Samples[0], cs.Samples[1]

	if base[0] == base[len(base)-1] {
		return Range{}, fmt.Errorf("deltarange: first and last TSC values on the base CPU are equal")
	}
	if other[0] == other[len(other)-1] {
		return Range{}, fmt.Errorf("deltarange: first and last TSC values on CPU index 1 are equal")
	}

	dMin, dMax := int64(math.MinInt64), int64(math.MaxInt64)

	for i := 0; i < cs.Rounds; i++ {
		if base[i+1] < base[i] || (i > 0 && other[i] < other[i-1]) {
			return Range{}, fmt.Errorf("deltarange: successive TSC values on the same CPU decreased; possible TSC wrap")
		}

		diff1 := absDiff(other[i], base[i])
		diff2 := absDiff(other[i], base[i+1])
		if diff1 > math.MaxInt64 || diff2 > math.MaxInt64 {
			return Range{}, fmt.Errorf("deltarange: cross-CPU TSC difference too large; possible TSC wrap")
		}

		boundMin := int64(other[i]) - int64(base[i+1])
		boundMax := int64(other[i]) - int64(base[i])

		if boundMin > dMax || boundMax < dMin {
			return Range{}, fmt.Errorf("deltarange: delta ranges from different carousel rounds don't overlap")
		}

		if boundMin > dMin {
			dMin = boundMin
		}
		if boundMax < dMax {
			dMax = boundMax
		}
	}

	glog.V(2).Infof("deltarange: carousel-derived range [%d, %d]", dMin, dMax)
	return Range{Min: dMin, Max: dMax}, nil
}

// FromCASProbes computes the delta range between base (probes collected on
// the base CPU) and other (probes collected on some other CPU), both
// globally ordered by SeqNum, intersecting the bound derived from every
// base-probe-enclosed sub-sequence of other. It requires at least
// countThreshold independent sub-sequences to be statistically significant.
func FromCASProbes(base, other []probe.Probe, countThreshold uint64) (Range, error) {
	n := uint64(len(base))
	if n == 0 || uint64(len(other)) != n {
		return Range{}, fmt.Errorf("deltarange: base and other probe sequences must have the same non-zero length")
	}

	if base[0].TSCVal == base[n-1].TSCVal {
		return Range{}, fmt.Errorf("deltarange: first and last TSC values on the base CPU are equal")
	}
	if other[0].TSCVal == other[n-1].TSCVal {
		return Range{}, fmt.Errorf("deltarange: first and last TSC values on the other CPU are equal")
	}

	for i := uint64(1); i < n; i++ {
		if base[i].TSCVal < base[i-1].TSCVal || other[i].TSCVal < other[i-1].TSCVal {
			return Range{}, fmt.Errorf("deltarange: successive TSC values on the same CPU decreased; possible TSC wrap")
		}
	}

	dMin, dMax := int64(math.MinInt64), int64(math.MaxInt64)
	var ig uint64
	var seqNum uint64
	var numRanges uint64

	// Skip probes on "other" that precede the base CPU's first probe in
	// the global ordering — they aren't enclosed by any pair of base
	// probes and can't contribute a bound.
	if other[0].SeqNum == 0 {
		for ig < n && other[ig].SeqNum == ig {
			ig++
			seqNum++
		}
	}

	for ib := uint64(1); ib < n; ib, seqNum = ib+1, seqNum+1 {
		if base[ib].SeqNum == seqNum+1 {
			continue
		}

		numRanges++

		tscBasePrev := base[ib-1].TSCVal
		tscBaseCurr := base[ib].TSCVal
		subSeqFirst := ig

		for ig < n && other[ig].SeqNum < base[ib].SeqNum {
			ig++
			seqNum++
		}
		if ig == subSeqFirst {
			return Range{}, fmt.Errorf("deltarange: no other-CPU probe enclosed between base-CPU sequence numbers %d and %d; sequence isn't dense over exactly these two CPUs", base[ib-1].SeqNum, base[ib].SeqNum)
		}
		subSeqLast := ig - 1

		tscGivenMin := other[subSeqFirst].TSCVal
		tscGivenMax := other[subSeqLast].TSCVal

		diff1 := absDiff(tscGivenMin, tscBasePrev)
		diff2 := absDiff(tscGivenMax, tscBaseCurr)
		if diff1 > math.MaxInt64 || diff2 > math.MaxInt64 {
			return Range{}, fmt.Errorf("deltarange: cross-CPU TSC difference too large; possible TSC wrap")
		}

		if tscBaseCurr-tscBasePrev < tscGivenMax-tscGivenMin {
			return Range{}, fmt.Errorf("deltarange: base-CPU probe interval shorter than enclosed other-CPU interval; TSCs run at different rates")
		}

		boundMin := int64(tscGivenMax) - int64(tscBaseCurr)
		boundMax := int64(tscGivenMin) - int64(tscBasePrev)

		if boundMin > dMax || boundMax < dMin {
			return Range{}, fmt.Errorf("deltarange: delta ranges from different probe sub-sequences don't intersect")
		}

		if boundMin > dMin {
			dMin = boundMin
		}
		if boundMax < dMax {
			dMax = boundMax
		}
	}

	if numRanges < countThreshold {
		return Range{}, fmt.Errorf("deltarange: only %d independent sub-sequences observed, need at least %d: %w", numRanges, countThreshold, ErrPoorStatistics)
	}

	glog.V(2).Infof("deltarange: CAS-probe-derived range [%d, %d] from %d sub-sequences", dMin, dMax, numRanges)
	return Range{Min: dMin, Max: dMax}, nil
}
