// Package resilience classifies transient faults and owns the retry loop
// used by pipeline steps, the warehouse loader and the enrichment client.
// Steps stay free of retry logic; they surface errors and the framework
// consults the classification here.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// tierPolicy fixes attempts and the backoff schedule per tier.
type tierPolicy struct {
	maxAttempts int
	backoff     []time.Duration
}

var tierPolicies = map[Tier]tierPolicy{
	TierDatabase:   {maxAttempts: 5, backoff: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}},
	TierNetwork:    {maxAttempts: 3, backoff: []time.Duration{time.Second, 2 * time.Second}},
	TierHTTPSlow:   {maxAttempts: 3, backoff: []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}},
	TierHTTPServer: {maxAttempts: 2, backoff: []time.Duration{time.Second}},
}

// MaxAttempts returns the attempt ceiling for a tier (1 for TierNone).
func MaxAttempts(tier Tier) int {
	if p, ok := tierPolicies[tier]; ok {
		return p.maxAttempts
	}
	return 1
}

// delayFor returns the sleep before retry attempt n (1-based).
func delayFor(tier Tier, attempt int) time.Duration {
	p, ok := tierPolicies[tier]
	if !ok || len(p.backoff) == 0 {
		return 0
	}
	if attempt-1 < len(p.backoff) {
		return p.backoff[attempt-1]
	}
	return p.backoff[len(p.backoff)-1]
}

// Result carries the outcome of a retried call.
type Result struct {
	Attempts int
	Tier     Tier
}

// Do executes fn, retrying per the classified tier of each failure.
// Context cancellation stops retries at once. The returned Result
// reports the attempts spent and the tier of the final failure
// (TierNone on success or data error).
func Do(ctx context.Context, operation string, fn func(ctx context.Context) error) (Result, error) {
	res := Result{}
	var lastErr error

	for {
		res.Attempts++
		lastErr = fn(ctx)
		if lastErr == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, lastErr
		}

		tier := Classify(lastErr)
		res.Tier = tier
		if tier == TierNone {
			return res, lastErr
		}
		if res.Attempts >= MaxAttempts(tier) {
			return res, lastErr
		}

		delay := delayFor(tier, res.Attempts)
		zap.L().Warn("retrying after transient failure",
			zap.String("operation", operation),
			zap.String("tier", string(tier)),
			zap.Int("attempt", res.Attempts),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, lastErr
		case <-timer.C:
		}
	}
}

// DoVal is Do for functions returning a value.
func DoVal[T any](ctx context.Context, operation string, fn func(ctx context.Context) (T, error)) (T, Result, error) {
	var out T
	res, err := Do(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, res, err
}
