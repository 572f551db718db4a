/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials means no API key is configured for any provider.
	ErrNoCredentials = errors.New("no repair credentials configured")

	// ErrUpstream covers network failures, error statuses, timeouts and
	// responses that cannot be parsed.
	ErrUpstream = errors.New("repair upstream error")

	// ErrNoProposal means the response parsed but contained no file blocks.
	ErrNoProposal = errors.New("repair produced no proposals")

	// ErrMalformedResponse is returned by Parse for a response that breaks
	// the file block grammar. It matches ErrUpstream.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrUpstream)
)

// StatusError is an error status returned by a repair provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// Is implements errors.Is matching.
func (e *StatusError) Is(target error) bool {
	return target == ErrUpstream
}
