package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds in-flight generation calls process-wide. It is the one
// resource shared across concurrent runs; per-run orchestrator state is
// never shared. A nil *Limiter admits everything.
type Limiter struct {
	sem *semaphore.Weighted
}

// NewLimiter allows at most n concurrent generation calls. n <= 0 means
// unlimited.
func NewLimiter(n int64) *Limiter {
	if n <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(n)}
}

func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.sem == nil {
		return ctx.Err()
	}
	return l.sem.Acquire(ctx, 1)
}

func (l *Limiter) Release() {
	if l == nil || l.sem == nil {
		return
	}
	l.sem.Release(1)
}
