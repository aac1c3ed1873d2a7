// Package convparams builds the multiply-shift arithmetic that converts
// raw TSC ticks into nanoseconds without runtime division, and computes
// how many seconds remain before the TSC wraps. It is the Go counterpart
// of wtmlib.c's wtmlib_CalcTSCToNsecConversionParams and
// wtmlib_CalcTimeBeforeTSCWrap — both borrowed there, and here, from FIO's
// TSC clock source.
package convparams

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/golang/glog"
)

// Params holds the precomputed constants needed to turn a raw TSC tick
// count into nanoseconds using only multiplication and shifts:
//
//	ns(tsc) = (tsc>>RemainderBits)*NsPerModulus + ((tsc&RemainderMask)*Mult)>>Shift
type Params struct {
	Mult          uint64
	Shift         int
	NsPerModulus  uint64
	RemainderBits int
	RemainderMask uint64
}

// TicksToNs converts a raw TSC reading into nanoseconds using p.
func (p Params) TicksToNs(tsc uint64) uint64 {
	whole := (tsc >> uint(p.RemainderBits)) * p.NsPerModulus
	remainder := ((tsc & p.RemainderMask) * p.Mult) >> uint(p.Shift)
	return whole + remainder
}

// Build derives Params for a TSC ticking at tscPerSec ticks/second, valid
// for conversions spanning up to conversionModulusSecs seconds at a time
// without truncating rounds through mult/shift's fixed-point arithmetic.
func Build(tscPerSec uint64, conversionModulusSecs uint64) (Params, error) {
	if tscPerSec == 0 {
		return Params{}, fmt.Errorf("convparams: tscPerSec must be positive")
	}
	if conversionModulusSecs == 0 {
		return Params{}, fmt.Errorf("convparams: conversionModulusSecs must be positive")
	}
	if math.MaxUint64/conversionModulusSecs < tscPerSec {
		return Params{}, fmt.Errorf("convparams: conversion modulus too large; TSC worth of it doesn't fit in a uint64")
	}

	tscWorthOfModulus := conversionModulusSecs * tscPerSec
	multBound := math.MaxUint64 / tscWorthOfModulus
	factorBound := multBound * tscPerSec / 1000000000

	shift := 0
	for factorBound > 1 {
		factorBound >>= 1
		shift++
	}
	factor := uint64(1) << uint(shift)
	mult := factor * 1000000000 / tscPerSec

	remainderBits := bits.Len64(tscWorthOfModulus) - 1
	tscModulus := uint64(1) << uint(remainderBits)
	nsPerModulus := (tscModulus * mult) >> uint(shift)
	remainderMask := tscModulus - 1

	glog.V(1).Infof("convparams: mult=%d shift=%d remainder_bits=%d ns_per_modulus=%d remainder_mask=%#x",
		mult, shift, remainderBits, nsPerModulus, remainderMask)

	return Params{
		Mult:          mult,
		Shift:         shift,
		NsPerModulus:  nsPerModulus,
		RemainderBits: remainderBits,
		RemainderMask: remainderMask,
	}, nil
}

// SecondsBeforeWrap returns how many whole seconds remain before a TSC
// reading of math.MaxUint64 is reached, given the TSC value furthest along
// among maxObservedTSC (the caller samples the TSC on every allowed CPU and
// passes in the largest value seen, since wrap happens independently per
// CPU and the earliest one to wrap sets the budget).
func SecondsBeforeWrap(p Params, maxObservedTSC uint64) uint64 {
	return p.TicksToNs(math.MaxUint64-maxObservedTSC) / 1000000000
}
