package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caseforge/moriarty/internal/llm"
)

// Invoker executes one generation call for a named stage: it acquires
// the shared limiter, applies the per-call timeout, and retries
// transient failures (timeouts, rate limits, transport errors) with
// backoff up to a fixed budget. Exhausting the budget escalates to a
// stage failure.
type Invoker struct {
	Gen                  Generator
	Limiter              *Limiter
	Timeout              time.Duration
	MaxTransientAttempts int
	Backoff              BackoffConfig
	RunID                string

	// onRetry is notified before each transient retry sleep.
	onRetry func(stage string, attempt int, delay time.Duration, cause error)
}

// Invoke returns the generation result, total wall-clock duration
// across transient attempts, and the accumulated cost of failed
// attempts folded into the result's CostUSD.
func (iv *Invoker) Invoke(ctx context.Context, req GenerateRequest) (GenerateResult, time.Duration, error) {
	maxAttempts := iv.MaxTransientAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := time.Now()
	spent := 0.0
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res, err := iv.invokeOnce(ctx, req)
		spent += res.CostUSD
		if err == nil {
			res.CostUSD = spent
			return res, time.Since(start), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if !llm.IsRetryable(err) || attempt == maxAttempts {
			break
		}
		delay := DelayForAttempt(attempt, iv.Backoff, backoffSeed(iv.RunID, req.Stage, attempt))
		if ra := retryAfterHint(err); ra != nil && *ra > delay {
			delay = *ra
		}
		if iv.onRetry != nil {
			iv.onRetry(req.Stage, attempt, delay, err)
		}
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return GenerateResult{CostUSD: spent}, time.Since(start), fmt.Errorf("stage %s generation: %w", req.Stage, lastErr)
}

func (iv *Invoker) invokeOnce(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := iv.Limiter.Acquire(ctx); err != nil {
		return GenerateResult{}, err
	}
	defer iv.Limiter.Release()

	if iv.Timeout > 0 {
		cctx, cancel := context.WithTimeout(ctx, iv.Timeout)
		defer cancel()
		ctx = cctx
	}
	res, err := iv.Gen.Generate(ctx, req)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		// A per-call deadline is a transient generation failure, not a
		// run cancellation.
		return res, llm.NewRequestTimeoutError("", err.Error())
	}
	return res, err
}

func retryAfterHint(err error) *time.Duration {
	var le llm.Error
	if errors.As(err, &le) {
		return le.RetryAfter()
	}
	return nil
}

func sleepWithContext(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
