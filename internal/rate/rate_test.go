package rate

import (
	"runtime"
	"testing"
	"time"

	"github.com/AndreyNevolin/wtmlib/internal/tscread"
)

func requireTSC(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" || !tscread.Supported() {
		t.Skip("rate sampling needs Linux clock_gettime and a hardware TSC")
	}
}

func TestSampleOnceReturnsPlausibleRate(t *testing.T) {
	requireTSC(t)

	ticksPerSec, err := SampleOnce(2 * time.Millisecond)
	if err != nil {
		t.Fatalf("SampleOnce: %v", err)
	}

	// Any real x86 TSC runs well within these bounds (hundreds of MHz to
	// tens of GHz); this just guards against a unit or overflow error.
	if ticksPerSec < 1e8 || ticksPerSec > 1e11 {
		t.Fatalf("SampleOnce returned an implausible rate: %d ticks/sec", ticksPerSec)
	}
}

func TestCleanAverageFiltersOutliers(t *testing.T) {
	t.Parallel()

	samples := []uint64{2800000100, 2800000200, 2800000050, 2800099999, 2800000150}
	avg, err := CleanAverage(samples)
	if err != nil {
		t.Fatalf("CleanAverage: %v", err)
	}

	if avg < 2799999000 || avg > 2800001000 {
		t.Fatalf("CleanAverage = %d, want close to 2800000000 with the outlier filtered out", avg)
	}
}

func TestCleanAverageRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	if _, err := CleanAverage(nil); err == nil {
		t.Fatal("want error for no samples")
	}
}
