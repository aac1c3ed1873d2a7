package monotonic

import (
	"errors"
	"testing"

	"github.com/AndreyNevolin/wtmlib/internal/carousel"
	"github.com/AndreyNevolin/wtmlib/internal/probe"
)

func TestFromCarouselDetectsIncreasing(t *testing.T) {
	t.Parallel()

	cs := carousel.Sample{
		CPUs:    []int{0, 1},
		Samples: [][]uint64{{100, 300, 500}, {200, 400}},
		Rounds:  2,
	}

	ok, err := FromCarousel(cs)
	if err != nil {
		t.Fatalf("FromCarousel: %v", err)
	}
	if !ok {
		t.Fatal("want monotonic=true for strictly increasing samples")
	}
}

func TestFromCarouselDetectsDecrease(t *testing.T) {
	t.Parallel()

	cs := carousel.Sample{
		CPUs:    []int{0, 1},
		Samples: [][]uint64{{100, 300, 500}, {200, 250}},
		Rounds:  2,
	}

	ok, err := FromCarousel(cs)
	if err != nil {
		t.Fatalf("FromCarousel: %v", err)
	}
	if ok {
		t.Fatal("want monotonic=false: CPU index 1 round 1 (250) is less than CPU index 0 round 1 (300)")
	}
}

func twoCPURoundRobin() [][]probe.Probe {
	return [][]probe.Probe{
		{{TSCVal: 100, SeqNum: 0}, {TSCVal: 300, SeqNum: 2}, {TSCVal: 500, SeqNum: 4}},
		{{TSCVal: 200, SeqNum: 1}, {TSCVal: 400, SeqNum: 3}, {TSCVal: 600, SeqNum: 5}},
	}
}

func TestFromCASProbesCountsFullLoops(t *testing.T) {
	t.Parallel()

	ok, err := FromCASProbes(twoCPURoundRobin(), 2)
	if err != nil {
		t.Fatalf("FromCASProbes: %v", err)
	}
	if !ok {
		t.Fatal("want monotonic=true for a clean round-robin sequence")
	}
}

func TestFromCASProbesPoorStatistics(t *testing.T) {
	t.Parallel()

	_, err := FromCASProbes(twoCPURoundRobin(), 3)
	if !errors.Is(err, ErrPoorStatistics) {
		t.Fatalf("FromCASProbes with an unreachable loop threshold: err = %v, want ErrPoorStatistics", err)
	}
}

func TestFromCASProbesDetectsRegression(t *testing.T) {
	t.Parallel()

	probes := twoCPURoundRobin()
	probes[1][1].TSCVal = 250 // regresses below CPU 0's seq-2 reading of 300

	ok, err := FromCASProbes(probes, 1)
	if err != nil {
		t.Fatalf("FromCASProbes: %v", err)
	}
	if ok {
		t.Fatal("want monotonic=false after introducing a regression")
	}
}
