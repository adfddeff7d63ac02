// Package resilience wraps calls to unreliable collaborators with bounded
// retries, per-attempt timeouts, a circuit breaker, and a bulkhead. Results
// come back as an Outcome envelope rather than a bare error so callers can
// log and meter every call uniformly.
package resilience

import "time"

type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffExponential BackoffKind = "exponential"
)

type RetryConfig struct {
	// MaxAttempts counts the first try; 3 means at most two retries.
	MaxAttempts  int           `yaml:"max_attempts"`
	Backoff      BackoffKind   `yaml:"backoff"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

type BreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold"`
	HalfOpenAfter    time.Duration `yaml:"half_open_after"`
	SuccessThreshold int           `yaml:"success_threshold"`
}

type BulkheadConfig struct {
	Enabled bool `yaml:"enabled"`
	// MaxConcurrent calls run at once; up to MaxQueued more wait for a slot.
	// Anything beyond that is rejected immediately.
	MaxConcurrent int `yaml:"max_concurrent"`
	MaxQueued     int `yaml:"max_queued"`
}

type Config struct {
	Retry RetryConfig `yaml:"retry"`
	// Timeout bounds each individual attempt, not the whole call.
	Timeout  time.Duration  `yaml:"timeout"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Bulkhead BulkheadConfig `yaml:"bulkhead"`
}

// withDefaults fills the zero values a hand-written config usually omits.
func (c Config) withDefaults() Config {
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = BackoffConstant
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = 100 * time.Millisecond
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 10 * time.Second
	}
	if c.Breaker.FailureThreshold < 1 {
		c.Breaker.FailureThreshold = 5
	}
	if c.Breaker.HalfOpenAfter <= 0 {
		c.Breaker.HalfOpenAfter = 30 * time.Second
	}
	if c.Breaker.SuccessThreshold < 1 {
		c.Breaker.SuccessThreshold = 1
	}
	if c.Bulkhead.MaxConcurrent < 1 {
		c.Bulkhead.MaxConcurrent = 8
	}
	if c.Bulkhead.MaxQueued < 0 {
		c.Bulkhead.MaxQueued = 0
	}
	return c
}

// backoffDelay returns the pause before the next attempt, where attempt is
// the number of attempts already made (1-based).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.InitialDelay
	if cfg.Backoff == BackoffExponential {
		// Shifting past 32 would overflow long before any sane MaxDelay.
		shift := attempt - 1
		if shift > 32 {
			shift = 32
		}
		delay = cfg.InitialDelay << shift
		if delay <= 0 {
			delay = cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
