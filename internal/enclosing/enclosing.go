// Package enclosing triangulates the per-pair bounds computed by
// internal/deltarange into a single worst-case range: the smallest
// interval guaranteed to contain the TSC offset between the base CPU and
// every other allowed CPU. It is the Go counterpart of wtmlib.c's
// wtmlib_CalcTSCEnclosingRangeCPUSW and wtmlib_CalcTSCEnclosingRangeCOP.
package enclosing

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/glog"

	"github.com/AndreyNevolin/wtmlib/internal/carousel"
	"github.com/AndreyNevolin/wtmlib/internal/deltarange"
	"github.com/AndreyNevolin/wtmlib/internal/probe"
)

// FromCarousel runs a two-CPU carousel between baseCPU and every other
// entry of allowedCPUs, combining each pairwise deltarange.Range into the
// widest span and returning its size — wtmlib.c's "enclosing TSC range".
func FromCarousel(baseCPU int, allowedCPUs []int, rounds int) (int64, error) {
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	pairsSeen := 0

	for _, cpu := range allowedCPUs {
		if cpu == baseCPU {
			continue
		}

		sample, err := carousel.Collect([]int{baseCPU, cpu}, rounds)
		if err != nil {
			return 0, fmt.Errorf("enclosing: carousel between base CPU %d and CPU %d: %w", baseCPU, cpu, err)
		}

		r, err := deltarange.FromCarousel(sample)
		if err != nil {
			return 0, fmt.Errorf("enclosing: delta range between base CPU %d and CPU %d: %w", baseCPU, cpu, err)
		}

		if r.Min < lo {
			lo = r.Min
		}
		if r.Max > hi {
			hi = r.Max
		}
		pairsSeen++
	}

	if pairsSeen == 0 {
		glog.V(1).Infof("enclosing: only the base CPU %d is allowed; enclosing range is 0", baseCPU)
		return 0, nil
	}

	glog.V(1).Infof("enclosing: carousel-derived enclosing range size %d over %d other CPUs", hi-lo, pairsSeen)
	return hi - lo, nil
}

// FromCASProbes runs, for baseCPU paired with each other entry of
// allowedCPUs in turn, a fresh two-CPU CAS-ordered probe collection, then
// combines the deltarange between baseCPU and every other CPU into the
// widest span.
//
// A single probe.CollectCASOrdered call across every allowed CPU at once
// would give deltarange.FromCASProbes a sparse two-array view of a
// sequence numbered densely over all of them — deltarange.FromCASProbes
// assumes base and other between them cover every sequence number, the
// same assumption wtmlib.c's wtmlib_CalcTSCDeltaRangeCOP makes. wtmlib.c's
// own wtmlib_CalcTSCEnclosingRangeCOP avoids that mismatch by collecting
// probes per pair (only base and the one other CPU pinned each time), and
// this does the same.
func FromCASProbes(baseCPU int, allowedCPUs []int, probesCount uint64, deltaCountThreshold uint64, runTimeout, cancelTimeout time.Duration) (int64, error) {
	if len(allowedCPUs) <= 1 {
		glog.V(1).Infof("enclosing: only the base CPU %d is allowed; enclosing range is 0, no probers launched", baseCPU)
		return 0, nil
	}

	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	pairsSeen := 0

	for _, cpu := range allowedCPUs {
		if cpu == baseCPU {
			continue
		}

		results, err := probe.CollectCASOrdered([]int{baseCPU, cpu}, probesCount, runTimeout, cancelTimeout)
		if err != nil {
			return 0, fmt.Errorf("enclosing: collecting CAS-ordered probes between base CPU %d and CPU %d: %w", baseCPU, cpu, err)
		}

		r, err := deltarange.FromCASProbes(results[0].Probes, results[1].Probes, deltaCountThreshold)
		if err != nil {
			return 0, fmt.Errorf("enclosing: delta range between base CPU %d and CPU %d: %w", baseCPU, cpu, err)
		}

		if r.Min < lo {
			lo = r.Min
		}
		if r.Max > hi {
			hi = r.Max
		}
		pairsSeen++
	}

	if pairsSeen == 0 {
		glog.V(1).Infof("enclosing: only the base CPU %d is allowed; enclosing range is 0", baseCPU)
		return 0, nil
	}

	glog.V(1).Infof("enclosing: CAS-probe-derived enclosing range size %d over %d other CPUs", hi-lo, pairsSeen)
	return hi - lo, nil
}
