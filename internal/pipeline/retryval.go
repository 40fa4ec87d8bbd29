package pipeline

import (
	"context"
	"fmt"
)

// Validation is the schema-contract result the retry wrapper branches
// on. It never inspects error contents, only Valid.
type Validation struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// GenerateArtifactFn produces one artifact attempt. priorErrors holds
// the previous attempt's validation errors verbatim so the generation
// capability can self-correct; it is nil on the first attempt.
type GenerateArtifactFn func(ctx context.Context, attempt int, priorErrors []string) (artifact []byte, costUSD float64, err error)

// ValidateArtifactFn checks a completed artifact against its contract.
type ValidateArtifactFn func(artifact []byte) Validation

// RetryOutcome reports what the wrapper did. TotalCost sums every
// attempt, which is what the orchestrator ledgers; Attempts is always
// >= 1 even when maxAttempts disables retry.
type RetryOutcome struct {
	Artifact  []byte
	Attempts  int
	TotalCost float64
	Final     Validation
}

// RunWithValidation invokes generate, validates, and on failure
// re-invokes with the errors fed back, up to maxAttempts. If the last
// attempt still fails validation the last artifact is returned with its
// failing result rather than an error: the caller decides whether that
// is fatal. A non-nil error is returned only for generation failures
// (transport, cancellation), which are not recoverable by feedback.
func RunWithValidation(ctx context.Context, generate GenerateArtifactFn, validate ValidateArtifactFn, maxAttempts int) (RetryOutcome, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	out := RetryOutcome{}
	var priorErrors []string
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		artifact, cost, err := generate(ctx, attempt, priorErrors)
		out.TotalCost += cost
		if err != nil {
			out.Attempts = attempt
			return out, fmt.Errorf("generate attempt %d: %w", attempt, err)
		}
		out.Artifact = artifact
		out.Attempts = attempt
		out.Final = validate(artifact)
		if out.Final.Valid {
			return out, nil
		}
		priorErrors = out.Final.Errors
	}
	return out, nil
}
