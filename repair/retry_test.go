/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/acoyfellow/loop-demo/repair"
)

var errTransient = &repair.StatusError{Provider: "test", StatusCode: 529, Err: errors.New("overloaded")}

func testRetryConfig() repair.RetryConfig {
	return repair.RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, err: errTransient, wantCalls: 1},
		{name: "recovers", failures: 2, err: errTransient, wantCalls: 3},
		{name: "exhausted", failures: 10, err: errTransient, wantCalls: 4, wantErr: true},
		{name: "permanent status", failures: 10, err: &repair.StatusError{Provider: "test", StatusCode: http.StatusBadRequest, Err: errors.New("bad request")}, wantCalls: 1, wantErr: true},
		{name: "no status", failures: 10, err: errors.New("connection refused"), wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := repair.RetryWithBackoff(context.Background(), testRetryConfig(), "complete", func() (string, error) {
				calls++
				if calls <= tt.failures {
					return "", tt.err
				}
				return "ok", nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls: got = %d, wanted = %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("error: got = %v, wanted error = %v", err, tt.wantErr)
			}
			if err == nil && got != "ok" {
				t.Errorf("result: got = %q, wanted = %q", got, "ok")
			}
			if err != nil && !errors.Is(err, tt.err) {
				t.Errorf("error: got = %v, wanted wrapping %v", err, tt.err)
			}
		})
	}
}

func TestRetryWithBackoffCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := testRetryConfig()
	cfg.BaseBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	_, err := repair.RetryWithBackoff(ctx, cfg, "complete", func() (int, error) {
		cancel()
		return 0, errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error: got = %v, wanted %v", err, context.Canceled)
	}
}

func TestRetryConfigValidate(t *testing.T) {
	if err := repair.DefaultRetryConfig().Validate(); err != nil {
		t.Errorf("DefaultRetryConfig().Validate() = %v", err)
	}
	if err := (repair.RetryConfig{MaxRetries: -1}).Validate(); err == nil {
		t.Error("Validate(MaxRetries: -1): got nil error")
	}
	if err := (repair.RetryConfig{MaxJitter: -1}).Validate(); err == nil {
		t.Error("Validate(MaxJitter: -1): got nil error")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limited", err: &repair.StatusError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "bad gateway", err: &repair.StatusError{StatusCode: http.StatusBadGateway}, want: true},
		{name: "unavailable", err: &repair.StatusError{StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "gateway timeout", err: &repair.StatusError{StatusCode: http.StatusGatewayTimeout}, want: true},
		{name: "overloaded", err: &repair.StatusError{StatusCode: 529}, want: true},
		{name: "wrapped", err: fmt.Errorf("calling: %w", &repair.StatusError{StatusCode: http.StatusTooManyRequests}), want: true},
		{name: "internal error", err: &repair.StatusError{StatusCode: http.StatusInternalServerError}, want: false},
		{name: "unauthorized", err: &repair.StatusError{StatusCode: http.StatusUnauthorized}, want: false},
		{name: "plain error", err: errors.New("eof"), want: false},
		{name: "nil", err: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repair.Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v): got = %v, wanted = %v", tt.err, got, tt.want)
			}
		})
	}
}
