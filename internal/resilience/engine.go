package resilience

import (
	"context"
	"errors"
	"time"
)

// Operation is one attempt against an external collaborator. The context it
// receives carries the per-attempt timeout and must bound any I/O inside.
type Operation[T any] func(ctx context.Context) (T, error)

// Engine applies one resilience policy to every call made through it. One
// engine guards one provider, so its breaker and bulkhead see that
// provider's full call stream.
type Engine struct {
	name     string
	cfg      Config
	breaker  *breaker
	bulkhead *bulkhead
}

func NewEngine(name string, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		name:     name,
		cfg:      cfg,
		breaker:  newBreaker(cfg.Breaker),
		bulkhead: newBulkhead(cfg.Bulkhead),
	}
}

func (e *Engine) Name() string { return e.name }

// State reports the breaker state as of the last completed attempt.
func (e *Engine) State() BreakerState { return e.breaker.current() }

// Execute runs op under the engine's policy and always returns an Outcome,
// never a bare error. Attempts stop early when the breaker opens, the parent
// context ends, or the bulkhead rejects the call outright.
func Execute[T any](ctx context.Context, e *Engine, op Operation[T]) Outcome[T] {
	started := time.Now()

	if err := e.bulkhead.acquire(ctx); err != nil {
		return failure[T](e.name, err, started, Info{CircuitBreakerState: e.breaker.current()})
	}
	defer e.bulkhead.release()

	var lastErr error
	attempts := 0
	for attempts < e.cfg.Retry.MaxAttempts {
		if !e.breaker.allow() {
			if attempts == 0 {
				lastErr = ErrCircuitOpen
			}
			break
		}
		attempts++

		payload, err := runAttempt(ctx, e.cfg.Timeout, op)
		if err == nil {
			e.breaker.onSuccess()
			return success(e.name, payload, started, Info{
				RetryAttempts:       attempts - 1,
				CircuitBreakerState: e.breaker.current(),
			})
		}
		e.breaker.onFailure()
		lastErr = err

		// A finished parent context makes further attempts pointless.
		if ctx.Err() != nil {
			break
		}
		if attempts < e.cfg.Retry.MaxAttempts {
			if serr := sleep(ctx, backoffDelay(e.cfg.Retry, attempts)); serr != nil {
				break
			}
		}
	}

	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}
	return failure[T](e.name, lastErr, started, Info{
		RetryAttempts:       retries,
		CircuitBreakerState: e.breaker.current(),
	})
}

// runAttempt invokes op under the per-attempt timeout. The operation runs in
// its own goroutine so a deadline fires even when op ignores its context;
// the result channel is buffered so a late finisher does not leak.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		payload T
		err     error
	}
	done := make(chan result, 1)
	go func() {
		p, err := op(attemptCtx)
		done <- result{payload: p, err: err}
	}()

	select {
	case r := <-done:
		return r.payload, r.err
	case <-attemptCtx.Done():
		var zero T
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, ErrTimeout
		}
		return zero, attemptCtx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
