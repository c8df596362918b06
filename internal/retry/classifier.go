package retry

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"mailpilot/pkg/circuitbreaker"
)

// ErrNonRetryable marks an error that must not be retried regardless of its
// message. Wrap with fmt.Errorf("...: %w", ErrNonRetryable) or use Fatal().
var ErrNonRetryable = errors.New("non-retryable")

// retryableFragments is the fixed predicate set: an error whose message
// contains one of these is considered transient.
var retryableFragments = []string{
	"rate limit",
	"timeout",
	"429",
	"500",
	"502",
	"503",
	"network",
	"econnreset",
	"connection",
}

// IsRetryable classifies err as transient (retryable) or fatal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNonRetryable) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	// An open breaker means the dependency is already known-bad; hammering
	// it defeats the point.
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}

// Fatal wraps err so the invoker rethrows it immediately.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }
func (e *fatalError) Is(target error) bool {
	return target == ErrNonRetryable
}
