// Package rate estimates how many TSC ticks elapse per second of wall-clock
// time, by pairing clock_gettime(CLOCK_MONOTONIC_RAW) with a TSC read in
// matched order across many independent samples, then filtering outliers
// with Welford's incremental mean/variance. It is the Go counterpart of
// wtmlib.c's wtmlib_CalcTSCCountPerSecond and
// wtmlib_CalcFreeFromNoiseTSCPerSec — the latter credited there, and here,
// to FIO's TSC calibration code.
package rate

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/AndreyNevolin/wtmlib/internal/tscread"
)

// SampleOnce measures how many TSC ticks elapse per second of
// CLOCK_MONOTONIC_RAW time, by busy-waiting until at least period has
// elapsed. The start and end (time, TSC) pairs are each read in the same
// order — time first, then TSC — so that the roughly constant overhead of
// the clock_gettime call biases both measurements the same way and mostly
// cancels out of the ratio.
func SampleOnce(period time.Duration) (uint64, error) {
	var start, end unix.Timespec

	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &start); err != nil {
		return 0, fmt.Errorf("rate: clock_gettime: %w", err)
	}
	startTSC := tscread.Read()

	var elapsed time.Duration
	var endTSC uint64
	for elapsed < period {
		if err := unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &end); err != nil {
			return 0, fmt.Errorf("rate: clock_gettime: %w", err)
		}
		endTSC = tscread.Read()
		elapsed = time.Duration(unix.TimespecToNsec(end) - unix.TimespecToNsec(start))
	}

	if startTSC >= endTSC {
		return 0, fmt.Errorf("rate: end TSC value (%d) is not greater than start TSC value (%d); possible TSC wrap", endTSC, startTSC)
	}

	tscDelta := endTSC - startTSC
	if tscDelta > math.MaxUint64/1000000000 {
		return 0, fmt.Errorf("rate: TSC delta %d too large to scale to ticks-per-second without overflow", tscDelta)
	}

	return tscDelta * 1000000000 / uint64(elapsed), nil
}

// CleanAverage filters statistical outliers out of samples (values further
// than one corrected sample standard deviation from the mean) and returns
// the average of what remains, shifted from the minimum sample during
// summation to avoid uint64 overflow on the way.
func CleanAverage(samples []uint64) (uint64, error) {
	n := len(samples)
	if n == 0 {
		return 0, fmt.Errorf("rate: no samples to average")
	}

	var mean, s float64
	for i, v := range samples {
		delta := float64(v) - mean
		mean += delta / float64(i+1)
		s += delta * (float64(v) - mean)
	}

	var sigma float64
	if n > 1 {
		sigma = math.Sqrt(s / float64(n-1))
	} else {
		sigma = math.Sqrt(s)
	}

	minSample := samples[0]
	maxSample := samples[0]
	for _, v := range samples {
		if v < minSample {
			minSample = v
		}
		if v > maxSample {
			maxSample = v
		}
	}

	var sum, numGood uint64
	for _, v := range samples {
		if math.Abs(float64(v)-mean) > sigma {
			continue
		}
		numGood++
		shifted := v - minSample
		if math.MaxUint64-sum < shifted {
			return 0, fmt.Errorf("rate: overflow while averaging filtered samples")
		}
		sum += shifted
	}

	if numGood == 0 {
		return 0, fmt.Errorf("rate: every sample was filtered out as an outlier")
	}

	average := sum/numGood + minSample

	glog.V(2).Infof("rate: min=%d max=%d mean=%.2f sigma=%.2f cleaned_average=%d (%d/%d samples kept)",
		minSample, maxSample, mean, sigma, average, numGood, n)

	return average, nil
}
