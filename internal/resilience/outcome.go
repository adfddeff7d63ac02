package resilience

import (
	"errors"
	"time"
)

var (
	ErrTimeout      = errors.New("operation timed out")
	ErrCircuitOpen  = errors.New("circuit breaker open")
	ErrBulkheadFull = errors.New("bulkhead capacity exhausted")
)

// Info records what the engine did while producing an outcome.
type Info struct {
	// RetryAttempts counts attempts beyond the first.
	RetryAttempts       int          `json:"retryAttempts"`
	CircuitBreakerState BreakerState `json:"circuitBreakerState"`
}

// Outcome is the envelope every guarded call returns. It is never a bare
// error: failures still carry the provider name, duration, and resilience
// telemetry so callers can decide what to do next.
type Outcome[T any] struct {
	Success      bool      `json:"success"`
	Payload      T         `json:"payload,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Provider     string    `json:"providerName"`
	DurationMs   int64     `json:"durationMs"`
	Timestamp    time.Time `json:"timestamp"`
	Resilience   Info      `json:"resilience"`

	// Err preserves the underlying error for errors.Is checks; it mirrors
	// ErrorMessage and is not serialized.
	Err error `json:"-"`
}

func success[T any](provider string, payload T, started time.Time, info Info) Outcome[T] {
	return Outcome[T]{
		Success:    true,
		Payload:    payload,
		Provider:   provider,
		DurationMs: time.Since(started).Milliseconds(),
		Timestamp:  started.UTC(),
		Resilience: info,
	}
}

func failure[T any](provider string, err error, started time.Time, info Info) Outcome[T] {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Outcome[T]{
		Success:      false,
		ErrorMessage: msg,
		Provider:     provider,
		DurationMs:   time.Since(started).Milliseconds(),
		Timestamp:    started.UTC(),
		Resilience:   info,
		Err:          err,
	}
}

// Reject builds a failed outcome for calls that never reached the engine,
// such as a disabled provider.
func Reject[T any](provider string, err error, state BreakerState) Outcome[T] {
	return failure[T](provider, err, time.Now(), Info{CircuitBreakerState: state})
}
