package wtmlib

import (
	"errors"
	"testing"
)

func TestErrorIsMatchesItsOwnStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status Status
		target error
	}{
		{StatusGenericError, ErrGenericFailure},
		{StatusTSCInconsistency, ErrTSCInconsistency},
		{StatusPoorStatistics, ErrPoorStatistics},
	}

	for _, c := range cases {
		err := newError(c.status, "boom")
		if !errors.Is(err, c.target) {
			t.Errorf("status %v: errors.Is(err, %v) = false, want true", c.status, c.target)
		}
	}
}

func TestErrorIsRejectsOtherSentinels(t *testing.T) {
	t.Parallel()

	err := newError(StatusTSCInconsistency, "boom")
	if errors.Is(err, ErrPoorStatistics) {
		t.Fatal("a TSC-inconsistency error should not match ErrPoorStatistics")
	}
	if errors.Is(err, ErrGenericFailure) {
		t.Fatal("a TSC-inconsistency error should not match ErrGenericFailure")
	}
}

func TestStatusString(t *testing.T) {
	t.Parallel()

	if got := StatusOK.String(); got != "ok" {
		t.Errorf("StatusOK.String() = %q, want %q", got, "ok")
	}
	if got := Status(99).String(); got != "unknown status" {
		t.Errorf("Status(99).String() = %q, want %q", got, "unknown status")
	}
}
