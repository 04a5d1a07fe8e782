package session

import (
	"math"
	"math/rand"
	"time"
)

// BackoffConfig spaces retries of whole read sessions after failures. It never
// applies between the pages of one session.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 5 * time.Minute,
		Multiplier:   2.0,
		MaxDelay:     time.Hour,
		Jitter:       true,
	}
}

// NextBackoffDelay returns the delay after the Nth consecutive failure (1-based).
// Jitter scales the delay by a factor in [0.5, 1.5) and never exceeds MaxDelay.
func NextBackoffDelay(cfg BackoffConfig, failures int, rng *rand.Rand) time.Duration {
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if failures < 1 {
		failures = 1
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(failures-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter && rng != nil {
		delay = delay * (0.5 + rng.Float64())
		if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
			delay = float64(cfg.MaxDelay)
		}
	}
	return time.Duration(delay)
}
