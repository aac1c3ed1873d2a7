// Package wtmlib decides whether the x86 Time-Stamp Counter is fit to use
// as a nanosecond wall-clock source on the CPUs the calling process is
// allowed to run on, and — if so — builds a division-free tick-to-
// nanosecond converter plus a wrap-time budget. It measures and reports;
// it never attempts to correct a TSC it finds unreliable.
package wtmlib

import (
	"errors"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/AndreyNevolin/wtmlib/internal/carousel"
	"github.com/AndreyNevolin/wtmlib/internal/convparams"
	"github.com/AndreyNevolin/wtmlib/internal/cpupin"
	"github.com/AndreyNevolin/wtmlib/internal/deltarange"
	"github.com/AndreyNevolin/wtmlib/internal/enclosing"
	"github.com/AndreyNevolin/wtmlib/internal/monotonic"
	"github.com/AndreyNevolin/wtmlib/internal/probe"
	"github.com/AndreyNevolin/wtmlib/internal/rate"
	"github.com/AndreyNevolin/wtmlib/internal/sysstate"
	"github.com/AndreyNevolin/wtmlib/internal/tscread"
)

// Reliability summarizes what this module learned about the TSC across
// every CPU the calling process is allowed to run on.
type Reliability struct {
	// MaxShiftTicks bounds, in TSC ticks, how far apart two CPUs' TSCs
	// can be observed to be at the same instant.
	MaxShiftTicks int64
	// Monotonic reports whether TSC values increased (or stayed equal)
	// everywhere they were sampled, in sampling order.
	Monotonic bool
}

// ConversionParams is the multiply-shift arithmetic that converts a raw
// TSC reading into nanoseconds; see its TicksToNs method.
type ConversionParams = convparams.Params

// ReadTSC returns the raw Time-Stamp Counter value on the calling CPU.
func ReadTSC() uint64 {
	return tscread.Read()
}

// EvaluateTSCReliabilityCarousel measures TSC reliability by migrating a
// single goroutine across the allowed CPUs in a round-robin carousel —
// wtmlib.c's "CPU Switching" method.
func EvaluateTSCReliabilityCarousel(cfg Config) (Reliability, error) {
	state, err := sysstate.CaptureState()
	if err != nil {
		return Reliability{}, newError(StatusGenericError, "capturing process state: "+err.Error())
	}

	rangeSize, err := enclosing.FromCarousel(state.InitialCPU, state.AllowedCPUs, cfg.CarouselRounds)
	if err != nil {
		_ = sysstate.RestoreState(state)
		return Reliability{}, classifyRangeErr(err)
	}

	isMonotonic, err := evalMonotonicityCarousel(state.AllowedCPUs, cfg.CarouselRounds)
	if err != nil {
		_ = sysstate.RestoreState(state)
		return Reliability{}, classifyMonotonicErr(err)
	}

	if err := sysstate.RestoreState(state); err != nil {
		return Reliability{}, newError(StatusGenericError, "restoring process state: "+err.Error())
	}

	glog.V(1).Infof("wtmlib: carousel evaluation: max_shift=%d monotonic=%v", rangeSize, isMonotonic)
	return Reliability{MaxShiftTicks: rangeSize, Monotonic: isMonotonic}, nil
}

// EvaluateTSCReliabilityCAS measures TSC reliability using one pinned
// goroutine per allowed CPU, racing a shared CAS sequence counter —
// wtmlib.c's "CAS-ordered probes" method.
func EvaluateTSCReliabilityCAS(cfg Config) (Reliability, error) {
	state, err := sysstate.CaptureState()
	if err != nil {
		return Reliability{}, newError(StatusGenericError, "capturing process state: "+err.Error())
	}

	rangeSize, err := enclosing.FromCASProbes(state.InitialCPU, state.AllowedCPUs,
		cfg.CASProbesCountRange, cfg.DeltaRangeCountThreshold, cfg.ProbeRunTimeout, cfg.ProbeCancelTimeout)
	if err != nil {
		_ = sysstate.RestoreState(state)
		return Reliability{}, classifyRangeErr(err)
	}

	isMonotonic, err := evalMonotonicityCAS(state.AllowedCPUs, cfg.CASProbesCountMonotonic,
		cfg.FullLoopCountThreshold, cfg.ProbeRunTimeout, cfg.ProbeCancelTimeout)
	if err != nil {
		_ = sysstate.RestoreState(state)
		return Reliability{}, classifyMonotonicErr(err)
	}

	if err := sysstate.RestoreState(state); err != nil {
		return Reliability{}, newError(StatusGenericError, "restoring process state: "+err.Error())
	}

	glog.V(1).Infof("wtmlib: CAS-probe evaluation: max_shift=%d monotonic=%v", rangeSize, isMonotonic)
	return Reliability{MaxShiftTicks: rangeSize, Monotonic: isMonotonic}, nil
}

// BuildConversionParams measures the TSC's tick rate and builds the
// multiply-shift conversion constants used by ConversionParams.TicksToNs,
// along with how many seconds remain before the earliest TSC wrap across
// every allowed CPU.
func BuildConversionParams(cfg Config) (ConversionParams, uint64, error) {
	samples := make([]uint64, cfg.RateSampleCount)
	for i := range samples {
		v, err := rate.SampleOnce(cfg.RateSamplePeriod)
		if err != nil {
			var errno syscall.Errno
			if errors.As(err, &errno) {
				return ConversionParams{}, 0, newError(StatusGenericError, "sampling TSC rate: "+err.Error())
			}
			return ConversionParams{}, 0, newError(StatusTSCInconsistency, "sampling TSC rate: "+err.Error())
		}
		samples[i] = v
	}

	tscPerSec, err := rate.CleanAverage(samples)
	if err != nil {
		return ConversionParams{}, 0, newError(StatusGenericError, "averaging TSC rate samples: "+err.Error())
	}

	params, err := convparams.Build(tscPerSec, cfg.ConversionModulusSecs)
	if err != nil {
		return ConversionParams{}, 0, newError(StatusGenericError, "building conversion parameters: "+err.Error())
	}

	state, err := sysstate.CaptureState()
	if err != nil {
		return ConversionParams{}, 0, newError(StatusGenericError, "capturing process state: "+err.Error())
	}

	var maxTSC uint64
	for _, cpu := range state.AllowedCPUs {
		pinErr := cpupin.On(cpu, func() error {
			if v := tscread.Read(); v > maxTSC {
				maxTSC = v
			}
			return nil
		})
		if pinErr != nil {
			_ = sysstate.RestoreState(state)
			return ConversionParams{}, 0, newError(StatusGenericError, "sampling max TSC across allowed CPUs: "+pinErr.Error())
		}
	}

	if err := sysstate.RestoreState(state); err != nil {
		return ConversionParams{}, 0, newError(StatusGenericError, "restoring process state: "+err.Error())
	}

	secondsBeforeWrap := convparams.SecondsBeforeWrap(params, maxTSC)
	return params, secondsBeforeWrap, nil
}

func evalMonotonicityCarousel(allowedCPUs []int, rounds int) (bool, error) {
	cs, err := carousel.Collect(allowedCPUs, rounds)
	if err != nil {
		return false, newError(StatusGenericError, "collecting carousel samples: "+err.Error())
	}
	return monotonic.FromCarousel(cs)
}

func evalMonotonicityCAS(allowedCPUs []int, probesCount uint64, loopThreshold uint64, runTimeout, cancelTimeout time.Duration) (bool, error) {
	if len(allowedCPUs) <= 1 {
		glog.V(1).Infof("wtmlib: only one CPU allowed; monotonicity holds trivially, no probers launched")
		return true, nil
	}

	results, err := probe.CollectCASOrdered(allowedCPUs, probesCount, runTimeout, cancelTimeout)
	if err != nil {
		return false, newError(StatusGenericError, "collecting CAS-ordered probes: "+err.Error())
	}

	probesByCPU := make([][]probe.Probe, len(results))
	for i, r := range results {
		probesByCPU[i] = r.Probes
	}

	return monotonic.FromCASProbes(probesByCPU, loopThreshold)
}

func classifyRangeErr(err error) *Error {
	var alreadyClassified *Error
	if errors.As(err, &alreadyClassified) {
		return alreadyClassified
	}
	if errors.Is(err, deltarange.ErrPoorStatistics) {
		return newError(StatusPoorStatistics, err.Error())
	}
	return newError(StatusTSCInconsistency, err.Error())
}

func classifyMonotonicErr(err error) *Error {
	var alreadyClassified *Error
	if errors.As(err, &alreadyClassified) {
		return alreadyClassified
	}
	if errors.Is(err, monotonic.ErrPoorStatistics) {
		return newError(StatusPoorStatistics, err.Error())
	}
	return newError(StatusTSCInconsistency, err.Error())
}
