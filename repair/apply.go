/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package repair

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	gogit "github.com/go-git/go-git/v5"
)

// ErrPathEscapes is returned by Apply for a proposal whose path leaves the
// repository root.
var ErrPathEscapes = errors.New("path escapes repository root")

type applyConfig struct {
	stage bool
	mode  os.FileMode
}

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

// WithGitStaging stages every written file in the git index of the
// repository containing root. Roots outside a git repository are written
// without staging.
func WithGitStaging() ApplyOption {
	return func(c *applyConfig) { c.stage = true }
}

// WithFileMode sets the mode of newly created files. Existing files keep
// their mode.
func WithFileMode(mode os.FileMode) ApplyOption {
	return func(c *applyConfig) { c.mode = mode }
}

// Apply writes every proposal under root, creating parent directories and
// replacing existing content. Files are never deleted. All paths are
// validated before anything is written, including symlinks that resolve
// outside root, and writes go through an os.Root so none can leave it. It
// returns the written paths in proposal order.
func Apply(ctx context.Context, root string, proposals []Proposal, opts ...ApplyOption) ([]string, error) {
	cfg := applyConfig{mode: 0o644}
	for _, opt := range opts {
		opt(&cfg)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	locals := make([]string, len(proposals))
	for i, p := range proposals {
		local, err := resolvePath(realRoot, p.Path)
		if err != nil {
			return nil, err
		}
		locals[i] = local
	}

	r, err := os.OpenRoot(realRoot)
	if err != nil {
		return nil, fmt.Errorf("opening root: %w", err)
	}
	defer r.Close()

	log := clog.FromContext(ctx)
	written := make([]string, 0, len(proposals))
	for i, p := range proposals {
		if dir := filepath.Dir(locals[i]); dir != "." {
			if err := r.MkdirAll(dir, 0o755); err != nil {
				return written, fmt.Errorf("creating directory for %s: %w", p.Path, err)
			}
		}
		if err := r.WriteFile(locals[i], []byte(p.Content), cfg.mode); err != nil {
			return written, fmt.Errorf("writing %s: %w", p.Path, err)
		}
		log.With("path", p.Path).Infof("Wrote: %s", p.Path)
		written = append(written, p.Path)
	}

	if cfg.stage {
		full := make([]string, len(locals))
		for i, local := range locals {
			full[i] = filepath.Join(realRoot, local)
		}
		if err := stage(ctx, realRoot, full); err != nil {
			return written, err
		}
	}
	return written, nil
}

// resolvePath returns path relative to root, rejecting absolute paths, any
// path that leaves root lexically, and any path whose deepest existing
// ancestor resolves through a symlink to somewhere outside root. Dangling
// symlinks are rejected since their target cannot be checked. root must
// be absolute and free of symlinks.
func resolvePath(root, path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapes, path)
	}

	for p := filepath.Join(root, local); ; p = filepath.Dir(p) {
		resolved, err := filepath.EvalSymlinks(p)
		if errors.Is(err, fs.ErrNotExist) {
			if info, lerr := os.Lstat(p); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
				return "", fmt.Errorf("%w: %q passes through dangling symlink %s", ErrPathEscapes, path, p)
			}
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolving %q: %w", path, err)
		}
		if !within(root, resolved) {
			return "", fmt.Errorf("%w: %q resolves to %s", ErrPathEscapes, path, resolved)
		}
		return local, nil
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func stage(ctx context.Context, root string, paths []string) error {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		clog.FromContext(ctx).Warnf("%s is not in a git repository, skipping staging", root)
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}

	wtRoot, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return fmt.Errorf("resolving worktree root: %w", err)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if resolved, err := filepath.EvalSymlinks(abs); err == nil {
			abs = resolved
		}
		rel, err := filepath.Rel(wtRoot, abs)
		if err != nil {
			return fmt.Errorf("path %q: %w", p, err)
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("staging %s: %w", rel, err)
		}
	}
	return nil
}
