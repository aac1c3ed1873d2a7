package wtmlib

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every tunable parameter this module exposes, with defaults
// carried over from the original C library's wtmlib_config.h constants.
// Field names and grouping follow capsule8's pkg/config/config.go style of
// one struct per subsystem loaded with envconfig, rather than capsule8's
// own field values (which are unrelated to TSC measurement).
type Config struct {
	// CarouselRounds is how many round trips the carousel sampler makes
	// across its CPU list when computing an enclosing range or checking
	// monotonicity.
	CarouselRounds int `envconfig:"CAROUSEL_ROUNDS" default:"100"`

	// CASProbesCountRange is how many CAS-ordered probes per CPU are
	// collected when computing an enclosing range.
	CASProbesCountRange uint64 `envconfig:"CAS_PROBES_COUNT_RANGE" default:"1000"`

	// CASProbesCountMonotonic is how many CAS-ordered probes per CPU are
	// collected when checking monotonicity.
	CASProbesCountMonotonic uint64 `envconfig:"CAS_PROBES_COUNT_MONOTONIC" default:"1000"`

	// ProbeRunTimeout bounds how long the CAS-probe supervisor waits for
	// probing goroutines to finish normally before requesting abort.
	ProbeRunTimeout time.Duration `envconfig:"PROBE_RUN_TIMEOUT" default:"300s"`

	// ProbeCancelTimeout bounds how long the supervisor then waits for
	// aborted goroutines to notice and return.
	ProbeCancelTimeout time.Duration `envconfig:"PROBE_CANCEL_TIMEOUT" default:"10s"`

	// DeltaRangeCountThreshold is the minimum number of independent
	// probe sub-sequences required before a CAS-probe delta range is
	// considered statistically significant. The carousel path does not
	// apply it.
	DeltaRangeCountThreshold uint64 `envconfig:"DELTA_RANGE_COUNT_THRESHOLD" default:"10"`

	// FullLoopCountThreshold is the minimum number of full loops
	// required before a CAS-probe monotonicity verdict is considered
	// statistically significant.
	FullLoopCountThreshold uint64 `envconfig:"FULL_LOOP_COUNT_THRESHOLD" default:"10"`

	// RateSampleCount is how many independent TSC-ticks-per-second
	// samples are collected before averaging them.
	RateSampleCount int `envconfig:"RATE_SAMPLE_COUNT" default:"30"`

	// RateSamplePeriod is how long each TSC-ticks-per-second sample
	// waits between its start and end measurements.
	RateSamplePeriod time.Duration `envconfig:"RATE_SAMPLE_PERIOD" default:"500ms"`

	// ConversionModulusSecs bounds how many seconds a single
	// multiply-shift conversion round is accurate over; see
	// internal/convparams for the accuracy/overflow tradeoff this
	// controls.
	ConversionModulusSecs uint64 `envconfig:"CONVERSION_MODULUS_SECS" default:"10"`
}

// DefaultConfig returns the struct-tag defaults without consulting the
// environment.
func DefaultConfig() Config {
	return Config{
		CarouselRounds:           100,
		CASProbesCountRange:      1000,
		CASProbesCountMonotonic:  1000,
		ProbeRunTimeout:          300 * time.Second,
		ProbeCancelTimeout:       10 * time.Second,
		DeltaRangeCountThreshold: 10,
		FullLoopCountThreshold:   10,
		RateSampleCount:          30,
		RateSamplePeriod:         500 * time.Millisecond,
		ConversionModulusSecs:    10,
	}
}

// ConfigFromEnv returns DefaultConfig() overridden by any WTM_* environment
// variables that are set (e.g. WTM_CAROUSEL_ROUNDS).
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("wtm", &cfg); err != nil {
		return Config{}, &Error{Status: StatusGenericError, msg: "loading configuration from environment: " + err.Error()}
	}
	return cfg, nil
}
