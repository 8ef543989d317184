// Package gitops versions a CSV data directory with git so every ledger
// change leaves a commit behind.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Repo is a git working tree holding ledger data.
type Repo struct {
	Dir         string
	AuthorName  string
	AuthorEmail string
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if out, err := run(dir, nil, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %s: %w", out, err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// HasChanges reports whether the working tree differs from HEAD, including
// untracked files.
func (r Repo) HasChanges() (bool, error) {
	out, err := run(r.Dir, nil, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %s: %w", out, err)
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// CommitAll stages all files and creates a commit. Returns the short commit
// hash. The author also acts as committer so no global git identity is
// needed.
func (r Repo) CommitAll(message string) (string, error) {
	env := []string{
		"GIT_AUTHOR_NAME=" + r.AuthorName,
		"GIT_AUTHOR_EMAIL=" + r.AuthorEmail,
		"GIT_COMMITTER_NAME=" + r.AuthorName,
		"GIT_COMMITTER_EMAIL=" + r.AuthorEmail,
	}

	if out, err := run(r.Dir, nil, "add", "-A"); err != nil {
		return "", fmt.Errorf("git add: %s: %w", out, err)
	}
	if out, err := run(r.Dir, env, "commit", "--quiet", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}

	out, err := run(r.Dir, nil, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %s: %w", out, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// AutoCommit commits pending changes, if any. It returns an empty hash when
// the tree was clean.
func (r Repo) AutoCommit(message string) (string, error) {
	changed, err := r.HasChanges()
	if err != nil || !changed {
		return "", err
	}
	return r.CommitAll(message)
}

func run(dir string, env []string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	return cmd.CombinedOutput()
}
