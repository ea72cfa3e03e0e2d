package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryProvider retries transient failures with exponential backoff and
// jitter. Malformed output gets one more chance; rejected requests,
// truncation and caller cancellation are returned at once.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
	logger *zap.Logger
}

// WithRetry wraps p. A nil logger is allowed.
func WithRetry(p Provider, cfg RetryConfig, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	return &RetryProvider{inner: p, config: cfg, logger: logger}
}

type retryClass int

const (
	retryNever retryClass = iota
	retryOnce
	retryTransient
)

func classifyRetry(err error) retryClass {
	var (
		rejected  *ErrRequestRejected
		truncated *ErrMaxTokensExceeded
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return retryNever
	case errors.As(err, &rejected), errors.As(err, &truncated):
		return retryNever
	case IsInvalidResponse(err):
		return retryOnce
	}
	return retryTransient
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	log := r.logger.With(zap.String("purpose", PurposeFrom(ctx)), zap.String("trace_id", TraceFrom(ctx)))
	malformedSeen := false

	for attempt := 1; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		switch classifyRetry(err) {
		case retryNever:
			return nil, err
		case retryOnce:
			if malformedSeen {
				return nil, err
			}
			malformedSeen = true
		}
		if attempt >= r.config.MaxAttempts {
			log.Warn("llm request failed, giving up", zap.Int("attempts", attempt), zap.Error(err))
			return nil, err
		}

		wait := r.backoff(attempt, err)
		log.Debug("retrying llm request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// backoff is the wait before the retry that follows attempt (1-based). A
// provider Retry-After wins over the computed delay.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt-1))
	wait = min(wait, float64(r.config.MaxWait))
	wait *= 1 + 0.2*(2*rand.Float64()-1) // ±20%
	return time.Duration(max(wait, 0))
}
