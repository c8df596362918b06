package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"mailpilot/pkg/metrics"
)

// Policy is bound per call-site and immutable at runtime.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Retryable  func(error) bool
}

// DefaultPolicy returns the standard activity retry policy: up to 3 retries,
// 1s base delay doubling to a 10s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		Retryable:  IsRetryable,
	}
}

// Invoker wraps every external call with classified retry and
// backoff-with-jitter. Coordinators never call collaborators directly.
type Invoker struct {
	logger *zap.Logger

	// Injectable for deterministic tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64 // uniform in [0, 1)
}

func NewInvoker(logger *zap.Logger) *Invoker {
	return &Invoker{
		logger: logger,
		sleep:  sleepContext,
		jitter: rand.Float64,
	}
}

// NewInvokerWithClock creates an invoker with injected sleep and jitter
// sources, for tests.
func NewInvokerWithClock(logger *zap.Logger, sleep func(ctx context.Context, d time.Duration) error, jitter func() float64) *Invoker {
	return &Invoker{logger: logger, sleep: sleep, jitter: jitter}
}

// Invoke runs op under the policy. A retryable failure sleeps
// min(base*2^attempt, max) plus up to 25% jitter and tries again; a fatal
// failure or exhausted retries returns the last error. The op is called at
// most MaxRetries+1 times.
func (i *Invoker) Invoke(ctx context.Context, name string, policy Policy, op func(ctx context.Context) error) error {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		metrics.RetryAttemptCount.WithLabelValues(name).Inc()
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			i.logger.Warn("Activity failed with non-retryable error",
				zap.String("activity", name),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr),
			)
			return lastErr
		}

		if attempt == policy.MaxRetries {
			break
		}

		delay := i.backoff(policy, attempt)
		i.logger.Warn("Activity failed, retrying",
			zap.String("activity", name),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(lastErr),
		)

		if err := i.sleep(ctx, delay); err != nil {
			return err
		}
	}

	metrics.RetryExhaustedCount.WithLabelValues(name).Inc()
	i.logger.Error("Activity exhausted retries",
		zap.String("activity", name),
		zap.Int("attempts", policy.MaxRetries+1),
		zap.Error(lastErr),
	)
	return fmt.Errorf("%s exhausted %d attempts: %w", name, policy.MaxRetries+1, lastErr)
}

// backoff computes min(base*2^attempt, max) plus jitter in [0, 25%].
func (i *Invoker) backoff(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay << uint(attempt)
	if delay > policy.MaxDelay || delay <= 0 {
		delay = policy.MaxDelay
	}
	jitter := time.Duration(i.jitter() * 0.25 * float64(delay))
	return delay + jitter
}

// Invoke runs an op returning a value under the invoker's retry discipline.
func Invoke[T any](ctx context.Context, inv *Invoker, name string, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := inv.Invoke(ctx, name, policy, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
