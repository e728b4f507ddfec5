package collab

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/forgeswarm/coordinator/pkg/procexec"
)

// LocalGitWorktreeAdapter is the reference WorktreeAdapter
// implementation: a thin wrapper over the git CLI, grounded directly
// on the original harness's GitManager (create_checkpoint, rollback,
// stash/stash_pop, diff_stat, retry-with-backoff). Create checks out a
// fresh worktree per issue under BaseDir using `git worktree add`.
type LocalGitWorktreeAdapter struct {
	// RepoDir is the primary checkout new worktrees branch from.
	RepoDir string
	// BaseDir holds one subdirectory per issue's worktree.
	BaseDir string
	// MaxRetries bounds the exponential backoff retry loop
	// (100ms, 200ms, 400ms, ...) transient git failures get.
	MaxRetries int
}

// NewLocalGitWorktreeAdapter builds an adapter with the original
// harness's default of 3 retries.
func NewLocalGitWorktreeAdapter(repoDir, baseDir string) *LocalGitWorktreeAdapter {
	return &LocalGitWorktreeAdapter{RepoDir: repoDir, BaseDir: baseDir, MaxRetries: 3}
}

func (a *LocalGitWorktreeAdapter) runGit(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := procexec.Run(ctx, "git", args, procexec.Options{Dir: dir, Timeout: 30 * time.Second})
	if err != nil {
		return "", fmt.Errorf("collab: git %s: %w", strings.Join(args, " "), err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("collab: git %s: %s", strings.Join(args, " "), strings.TrimSpace(res.Stderr))
	}
	return strings.TrimSpace(res.Stdout), nil
}

// runGitRetry retries transient failures with the same 100ms, 200ms,
// 400ms... exponential backoff as GitManager::run_git_with_retry.
func (a *LocalGitWorktreeAdapter) runGitRetry(ctx context.Context, dir string, args ...string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= a.MaxRetries; attempt++ {
		out, err := a.runGit(ctx, dir, args...)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == a.MaxRetries {
			break
		}
		delay := 100 * time.Millisecond * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", lastErr
}

// Create checks out a new worktree under BaseDir for issueID, branched
// from RepoDir's current HEAD.
func (a *LocalGitWorktreeAdapter) Create(ctx context.Context, issueID string) (Worktree, error) {
	path := filepath.Join(a.BaseDir, issueID)
	if err := os.MkdirAll(a.BaseDir, 0o755); err != nil {
		return Worktree{}, fmt.Errorf("collab: mkdir %s: %w", a.BaseDir, err)
	}
	branch := "issue/" + issueID
	if _, err := a.runGitRetry(ctx, a.RepoDir, "worktree", "add", "-b", branch, path); err != nil {
		return Worktree{}, err
	}
	return Worktree{Path: path, Branch: branch}, nil
}

// Commit stages every change in path and creates a checkpoint commit,
// mirroring GitManager::create_checkpoint.
func (a *LocalGitWorktreeAdapter) Commit(ctx context.Context, path, message string) (string, error) {
	if _, err := a.runGitRetry(ctx, path, "add", "-A"); err != nil {
		return "", err
	}
	status, err := a.runGit(ctx, path, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if status == "" {
		return "", fmt.Errorf("collab: nothing to commit")
	}
	if _, err := a.runGitRetry(ctx, path, "commit", "-m", message); err != nil {
		return "", err
	}
	return a.runGit(ctx, path, "rev-parse", "--short", "HEAD")
}

// DiffStat reports the diffstat since a checkpoint.
func (a *LocalGitWorktreeAdapter) DiffStat(ctx context.Context, path, since string) (string, error) {
	return a.runGit(ctx, path, "diff", "--stat", since)
}

// Rollback soft-resets to sha, preserving working-tree changes, the
// same posture as GitManager::rollback (not hard_rollback).
func (a *LocalGitWorktreeAdapter) Rollback(ctx context.Context, path, sha string) error {
	if _, err := a.runGit(ctx, path, "cat-file", "-t", sha); err != nil {
		return fmt.Errorf("collab: rollback target %s does not exist: %w", sha, err)
	}
	_, err := a.runGitRetry(ctx, path, "reset", "--soft", sha)
	return err
}

// Stash shelves uncommitted changes.
func (a *LocalGitWorktreeAdapter) Stash(ctx context.Context, path string) error {
	_, err := a.runGitRetry(ctx, path, "stash", "push", "-m", "orchestratord: auto-stash")
	return err
}

// Pop restores the most recently stashed changes.
func (a *LocalGitWorktreeAdapter) Pop(ctx context.Context, path string) error {
	_, err := a.runGitRetry(ctx, path, "stash", "pop")
	return err
}

// CommitsSince counts commits made after since on path's branch,
// mirroring GitManager::commits_since.
func (a *LocalGitWorktreeAdapter) CommitsSince(ctx context.Context, path, since string) (int, error) {
	out, err := a.runGit(ctx, path, "rev-list", "--count", since+"..HEAD")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(out)
}

var _ WorktreeAdapter = (*LocalGitWorktreeAdapter)(nil)
