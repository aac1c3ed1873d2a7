package deltarange

import (
	"errors"
	"testing"

	"github.com/AndreyNevolin/wtmlib/internal/carousel"
	"github.com/AndreyNevolin/wtmlib/internal/probe"
)

// denseTwoCPUProbes builds a synthetic globally-ordered probe sequence over
// exactly two CPUs: base takes every even sequence number, other takes
// every odd one in between, running ahead of base by a constant 100 ticks.
func denseTwoCPUProbes(n int) (base, other []probe.Probe) {
	base = make([]probe.Probe, n)
	other = make([]probe.Probe, n)
	for i := 0; i < n; i++ {
		base[i] = probe.Probe{TSCVal: uint64(1000 + i*200), SeqNum: uint64(2 * i)}
		other[i] = probe.Probe{TSCVal: uint64(1000 + i*200 + 100), SeqNum: uint64(2*i + 1)}
	}
	return base, other
}

func TestFromCarouselConstantOffset(t *testing.T) {
	t.Parallel()

	cs := carousel.Sample{
		CPUs:    []int{0, 1},
		Samples: [][]uint64{{1000, 1100, 1200, 1300}, {1050, 1150, 1250}},
		Rounds:  3,
	}

	r, err := FromCarousel(cs)
	if err != nil {
		t.Fatalf("FromCarousel: %v", err)
	}
	if r.Min != -50 || r.Max != 50 {
		t.Fatalf("FromCarousel range = [%d, %d], want [-50, 50]", r.Min, r.Max)
	}
}

func TestFromCarouselRejectsWrongCPUCount(t *testing.T) {
	t.Parallel()

	cs := carousel.Sample{Samples: [][]uint64{{1, 2}}}
	if _, err := FromCarousel(cs); err == nil {
		t.Fatal("want error for a carousel sample covering only 1 CPU")
	}
}

func TestFromCarouselRejectsFlatBaseSeries(t *testing.T) {
	t.Parallel()

	cs := carousel.Sample{
		Samples: [][]uint64{{1000, 1000}, {1050}},
		Rounds:  1,
	}
	if _, err := FromCarousel(cs); err == nil {
		t.Fatal("want error when the base CPU's first and last TSC values are equal")
	}
}

func TestFromCarouselRejectsDecrease(t *testing.T) {
	t.Parallel()

	// Two rounds, so neither CPU's first and last values are equal and the
	// error comes from base[2] (1050) < base[1] (1100).
	cs := carousel.Sample{
		Samples: [][]uint64{{1000, 1100, 1050}, {1050, 1080}},
		Rounds:  2,
	}
	if _, err := FromCarousel(cs); err == nil {
		t.Fatal("want error when the base CPU's TSC decreases between rounds")
	}
}

func TestFromCASProbesConstantOffset(t *testing.T) {
	t.Parallel()

	base, other := denseTwoCPUProbes(12)

	r, err := FromCASProbes(base, other, 10)
	if err != nil {
		t.Fatalf("FromCASProbes: %v", err)
	}
	if r.Min != -100 || r.Max != 100 {
		t.Fatalf("FromCASProbes range = [%d, %d], want [-100, 100]", r.Min, r.Max)
	}
}

func TestFromCASProbesPoorStatistics(t *testing.T) {
	t.Parallel()

	base, other := denseTwoCPUProbes(12)

	// 12 probes each produce 11 independent sub-sequences; ask for one
	// more than that so the statistical gate rejects the result.
	_, err := FromCASProbes(base, other, 12)
	if !errors.Is(err, ErrPoorStatistics) {
		t.Fatalf("FromCASProbes with an unreachable count threshold: err = %v, want ErrPoorStatistics", err)
	}
}

func TestFromCASProbesRejectsNonDenseSequence(t *testing.T) {
	t.Parallel()

	// Sequence numbers 1 and 2 belong to a third CPU not represented in
	// either of these two arrays, so no "other" probe falls between
	// base's sequence numbers 0 and 3: deltarange.FromCASProbes only
	// ever sees a valid dense two-CPU sequence when its caller collects
	// probes per base/other pair (see internal/enclosing), never a
	// sparse slice of a sequence numbered across more CPUs than these
	// two. This must be reported as an error, not a panic.
	base := []probe.Probe{{TSCVal: 1000, SeqNum: 0}, {TSCVal: 2000, SeqNum: 3}}
	other := []probe.Probe{{TSCVal: 1500, SeqNum: 4}, {TSCVal: 2500, SeqNum: 5}}

	if _, err := FromCASProbes(base, other, 0); err == nil {
		t.Fatal("want error for a base/other pair with no enclosed probe between two successive base probes")
	}
}
