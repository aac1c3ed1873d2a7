// Package probe implements the CAS-ordered TSC probing method: one
// goroutine per allowed CPU, each pinned to its own CPU, races a shared
// atomic sequence counter via compare-and-swap so that every recorded
// probe gets a globally-ordered sequence number. It is the Go counterpart
// of wtmlib.c's wtmlib_TSCProbeThread plus its supervisor
// (wtmlib_WaitForTSCProbeThreads).
package probe

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/AndreyNevolin/wtmlib/internal/cpupin"
	"github.com/AndreyNevolin/wtmlib/internal/tscread"
	"github.com/AndreyNevolin/wtmlib/internal/xpad"
)

// Probe is a single TSC reading plus its position in the global,
// CAS-established probe ordering.
type Probe struct {
	TSCVal uint64
	SeqNum uint64
}

// Result is the per-CPU outcome of a CAS-ordered collection: a set of
// probes taken on one CPU, in increasing SeqNum order, or an error if that
// CPU's goroutine could not complete its run.
type Result struct {
	CPU    int
	Probes []Probe
	Err    error
}

// CollectCASOrdered runs one pinned goroutine per entry in cpus, each
// collecting probesCount TSC probes ordered by a shared CAS sequence
// counter. runTimeout bounds how long the supervisor waits for probing to
// finish before requesting cooperative cancellation; cancelTimeout bounds
// how long it then waits for cancelled goroutines to notice and return.
//
// If any goroutine still hasn't returned when both budgets elapse, it is
// logged as leaked and the call returns an error with no results — Go has
// no pthread_cancel/pthread_detach equivalent, so the supervisor simply
// stops waiting on it.
func CollectCASOrdered(cpus []int, probesCount uint64, runTimeout, cancelTimeout time.Duration) ([]Result, error) {
	if len(cpus) == 0 {
		return nil, fmt.Errorf("probe: empty CPU list")
	}

	n := len(cpus)
	var seqCounter xpad.Uint64
	var readyCounter xpad.Uint64
	var abort atomic.Bool

	results := make([]Result, n)
	done := make(chan int, n)

	for i, cpu := range cpus {
		i, cpu := i, cpu
		go func() {
			// Reserve the whole run up front so the probe loop doesn't
			// allocate, but cap the reservation: a count too large to
			// allocate (or to finish within runTimeout) still has to reach
			// the abort path instead of failing in make.
			const maxPrealloc = 1 << 20
			capHint := probesCount
			if capHint > maxPrealloc {
				capHint = maxPrealloc
			}
			probes := make([]Probe, 0, capHint)

			err := cpupin.On(cpu, func() error {
				atomic.AddUint64(&readyCounter.V, 1)
				for atomic.LoadUint64(&readyCounter.V) < uint64(n) {
					if abort.Load() {
						return fmt.Errorf("aborted before all %d probers became ready", n)
					}
				}

				for uint64(len(probes)) < probesCount {
					if abort.Load() {
						return fmt.Errorf("aborted after collecting %d/%d probes", len(probes), probesCount)
					}

					var seq uint64
					var tsc uint64
					for {
						seq = atomic.LoadUint64(&seqCounter.V)
						// The acquire-load above only orders other loads
						// and stores around it; it does nothing to stop
						// RDTSC, which touches no memory at all, from
						// executing before the load completes. ReadFenced
						// issues an LFENCE first so the TSC read can't
						// drift outside this load/CAS window.
						tsc = tscread.ReadFenced()
						if atomic.CompareAndSwapUint64(&seqCounter.V, seq, seq+1) {
							break
						}
					}
					probes = append(probes, Probe{TSCVal: tsc, SeqNum: seq})
				}
				return nil
			})

			results[i] = Result{CPU: cpu, Probes: probes, Err: err}
			done <- i
		}()
	}

	seen := 0
	timer := time.NewTimer(runTimeout)
	defer timer.Stop()

waitLoop:
	for seen < n {
		select {
		case <-done:
			seen++
		case <-timer.C:
			break waitLoop
		}
	}

	if seen < n {
		glog.V(1).Infof("probe: run timeout elapsed with %d/%d probers still running, requesting abort", n-seen, n)
		abort.Store(true)

		cancelTimer := time.NewTimer(cancelTimeout)
		defer cancelTimer.Stop()

	cancelWaitLoop:
		for seen < n {
			select {
			case <-done:
				seen++
			case <-cancelTimer.C:
				break cancelWaitLoop
			}
		}
	}

	if seen < n {
		leaked := n - seen
		glog.V(1).Infof("probe: %d prober(s) did not return after cancellation budget elapsed; treating as leaked", leaked)
		return nil, fmt.Errorf("probe: %d of %d CAS probers leaked past the cancellation timeout", leaked, n)
	}

	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("probe: CPU %d: %w", r.CPU, r.Err)
		}
	}

	return results, nil
}
