/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package loop

import (
	"errors"
	"io/fs"
	"os"
)

// DefaultPauseFile is the pause token checked by the CLI.
const DefaultPauseFile = ".gateproof/PAUSED"

// PauseFile returns a pause check that reports true while path exists.
// A stat failure other than not-exist also counts as paused, so an
// unreadable token still stops the loop.
func PauseFile(path string) func() bool {
	return func() bool {
		_, err := os.Stat(path)
		return err == nil || !errors.Is(err, fs.ErrNotExist)
	}
}

// NeverPaused is the pause check used when none is configured.
func NeverPaused() bool { return false }
