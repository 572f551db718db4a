/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
)

// RetryConfig bounds the retries a transport makes on transient provider
// errors such as rate limits and overload.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// 0 disables retrying.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	MaxJitter   time.Duration
}

// DefaultRetryConfig keeps the total retry time well inside the default
// repair timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  15 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// Validate rejects negative values.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return errors.New("max retries cannot be negative")
	case c.BaseBackoff < 0, c.MaxBackoff < 0, c.MaxJitter < 0:
		return errors.New("backoff durations cannot be negative")
	}
	return nil
}

// backoff returns the wait before retry number attempt (zero based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := min(c.BaseBackoff<<attempt, c.MaxBackoff)
	if c.MaxJitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(c.MaxJitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// statusOverloaded is Anthropic's overload status.
const statusOverloaded = 529

// Transient reports whether a provider status is worth retrying: rate
// limits, gateway failures and overload.
func Transient(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout, statusOverloaded:
		return true
	}
	return false
}

// Retryable reports whether err carries a StatusError with a transient
// status. Network errors without a status are not retried; the invoker's
// timeout already bounds them.
func Retryable(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && Transient(se.StatusCode)
}

// RetryWithBackoff calls fn until it succeeds, fails with an error that is
// not Retryable, or the retries are used up. Transports wrap provider
// statuses in StatusError inside fn. Waiting stops early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, operation string, fn func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, err = fn()
		if err == nil || !Retryable(err) {
			return result, err
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		var se *StatusError
		errors.As(err, &se)
		wait := cfg.backoff(attempt)
		clog.FromContext(ctx).With("operation", operation).
			With("provider", se.Provider).
			With("status", se.StatusCode).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", wait).
			Warnf("%s returned %d, retrying in %s", se.Provider, se.StatusCode, wait)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}
	}
	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
}
