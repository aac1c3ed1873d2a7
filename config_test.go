package wtmlib

import (
	"testing"
	"time"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if cfg != DefaultConfig() {
		t.Fatalf("ConfigFromEnv() with no WTM_* vars set = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestConfigFromEnvOverride(t *testing.T) {
	t.Setenv("WTM_CAROUSEL_ROUNDS", "42")
	t.Setenv("WTM_PROBE_RUN_TIMEOUT", "1500ms")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}

	if cfg.CarouselRounds != 42 {
		t.Errorf("CarouselRounds = %d, want 42", cfg.CarouselRounds)
	}
	if cfg.ProbeRunTimeout != 1500*time.Millisecond {
		t.Errorf("ProbeRunTimeout = %v, want 1.5s", cfg.ProbeRunTimeout)
	}
}

func TestConfigFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("WTM_CAROUSEL_ROUNDS", "not-a-number")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatal("want error for a non-numeric WTM_CAROUSEL_ROUNDS")
	}
}
