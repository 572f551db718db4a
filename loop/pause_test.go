/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package loop_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/acoyfellow/loop-demo/loop"
	"github.com/acoyfellow/loop-demo/runner"
	"github.com/stretchr/testify/require"
)

func TestPauseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), loop.DefaultPauseFile)
	paused := loop.PauseFile(path)
	require.False(t, paused())

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.True(t, paused())

	require.NoError(t, os.Remove(path))
	require.False(t, paused())
}

func TestPauseFileStatError(t *testing.T) {
	// .gateproof is a regular file, so stat fails with ENOTDIR rather than
	// not-exist and the token cannot be ruled out.
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gateproof"), []byte("x"), 0o644))

	paused := loop.PauseFile(filepath.Join(root, loop.DefaultPauseFile))
	if !paused() {
		t.Error("paused(): got = false, wanted = true on a stat error")
	}
}

func TestPauseFileHaltsController(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gateproof"), []byte("x"), 0o644))

	pass := &scriptedPass{reports: []*runner.Report{failing()}}
	c := newController(t, pass, &scriptedProposer{},
		loop.WithPause(loop.PauseFile(filepath.Join(root, loop.DefaultPauseFile))))

	out := c.Run(context.Background())
	if out.State != loop.StateHalted || out.Reason != loop.ReasonPaused {
		t.Errorf("outcome: got = %s, wanted = halted(paused)", out)
	}
	if pass.calls != 0 {
		t.Errorf("passes: got = %d, wanted = 0", pass.calls)
	}
}
