package recommend

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"

	"github.com/pavelanni/mediarec/internal/metrics"
)

// Pool bounds the number of pipeline runs in flight across all trigger paths.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool returns a pool with n slots; n < 1 is treated as 1.
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// Do waits for a free slot, then runs fn in the calling goroutine.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire worker slot: %w", err)
	}
	defer p.sem.Release(1)

	metrics.PipelineInFlight.Inc()
	defer metrics.PipelineInFlight.Dec()
	return fn(ctx)
}
