// Package retry provides a generic exponential-backoff executor for
// unreliable network calls.
package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"
)

const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 30 * time.Second
)

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatus() int
}

type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// ShouldRetry gates further attempts. When it returns false the
	// error propagates immediately. Nil means DefaultShouldRetry.
	ShouldRetry func(error) bool
	// OnRetry is invoked before each backoff wait with the failed
	// attempt's error and the 1-based number of the upcoming retry.
	OnRetry func(err error, attempt int)
}

// DefaultConfig mirrors the retry settings used across collectors.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
	}
}

// Do runs fn up to MaxRetries+1 times with exponential backoff between
// attempts: min(InitialDelay * 2^attempt, MaxDelay), attempt counted
// from zero. The last error is returned when attempts are exhausted.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoValue(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = DefaultShouldRetry
	}
	initial := cfg.InitialDelay
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	maxDelay := cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}
		if !shouldRetry(err) {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(err, attempt+1)
		}

		delay := initial << uint(attempt)
		if delay > maxDelay || delay <= 0 {
			delay = maxDelay
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, lastErr
}

// DefaultShouldRetry retries transient network failures (connection
// reset/refused, timeouts, DNS lookup misses), HTTP 5xx, and HTTP 429.
// Other client errors are not retried.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		return status >= 500 || status == 429
	}

	return false
}
