package carousel

import (
	"runtime"
	"testing"

	"github.com/AndreyNevolin/wtmlib/internal/tscread"
)

func TestCollectRejectsEmptyCPUList(t *testing.T) {
	t.Parallel()

	if _, err := Collect(nil, 10); err == nil {
		t.Fatal("want error for an empty CPU list")
	}
}

func TestCollectRejectsNonPositiveRounds(t *testing.T) {
	t.Parallel()

	if _, err := Collect([]int{0}, 0); err == nil {
		t.Fatal("want error for zero rounds")
	}
}

func TestCollectOnCurrentCPU(t *testing.T) {
	if runtime.GOOS != "linux" || !tscread.Supported() {
		t.Skip("carousel sampling needs Linux CPU affinity and a hardware TSC")
	}

	sample, err := Collect([]int{0}, 5)
	if err != nil {
		t.Skipf("Collect: %v (likely no permission to pin to CPU 0 in this environment)", err)
	}

	if len(sample.Samples) != 1 {
		t.Fatalf("len(Samples) = %d, want 1", len(sample.Samples))
	}
	if len(sample.Samples[0]) != 6 {
		t.Fatalf("len(Samples[0]) = %d, want Rounds+1 = 6", len(sample.Samples[0]))
	}

	for i := 1; i < len(sample.Samples[0]); i++ {
		if sample.Samples[0][i] < sample.Samples[0][i-1] {
			t.Fatalf("TSC decreased across single-CPU carousel rounds at index %d", i)
		}
	}
}
