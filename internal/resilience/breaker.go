package resilience

import (
	"sync"
	"time"
)

type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "halfOpen"
)

// breaker counts consecutive attempt results across every call made through
// one engine. FailureThreshold consecutive failures open it; after
// HalfOpenAfter it lets probes through, and SuccessThreshold consecutive
// probe successes close it again. One probe failure re-opens it.
type breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{cfg: cfg, now: time.Now, state: BreakerClosed}
}

// allow reports whether an attempt may proceed, moving an open breaker to
// half-open once the cooldown has elapsed.
func (b *breaker) allow() bool {
	if !b.cfg.Enabled {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != BreakerOpen {
		return true
	}
	if b.now().Sub(b.openedAt) >= b.cfg.HalfOpenAfter {
		b.state = BreakerHalfOpen
		b.successes = 0
		return true
	}
	return false
}

func (b *breaker) onSuccess() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
			b.successes = 0
		}
	default:
		b.failures = 0
	}
}

func (b *breaker) onFailure() {
	if !b.cfg.Enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case BreakerHalfOpen:
		b.open()
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.open()
		}
	}
}

// open must be called with the mutex held.
func (b *breaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}

func (b *breaker) current() BreakerState {
	if !b.cfg.Enabled {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
