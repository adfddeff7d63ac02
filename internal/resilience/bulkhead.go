package resilience

import (
	"context"
	"sync/atomic"
)

// bulkhead caps how many calls run at once. MaxConcurrent slots execute;
// MaxQueued more may wait for a slot; anything past that is rejected without
// blocking.
type bulkhead struct {
	cfg      BulkheadConfig
	slots    chan struct{}
	inflight atomic.Int64
}

func newBulkhead(cfg BulkheadConfig) *bulkhead {
	return &bulkhead{cfg: cfg, slots: make(chan struct{}, cfg.MaxConcurrent)}
}

func (b *bulkhead) acquire(ctx context.Context) error {
	if !b.cfg.Enabled {
		return nil
	}
	limit := int64(b.cfg.MaxConcurrent + b.cfg.MaxQueued)
	for {
		cur := b.inflight.Load()
		if cur >= limit {
			return ErrBulkheadFull
		}
		if b.inflight.CompareAndSwap(cur, cur+1) {
			break
		}
	}
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		b.inflight.Add(-1)
		return ctx.Err()
	}
}

func (b *bulkhead) release() {
	if !b.cfg.Enabled {
		return
	}
	<-b.slots
	b.inflight.Add(-1)
}
