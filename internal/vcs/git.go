package vcs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// defaultTimeout bounds every git invocation. A timed-out operation is
// reported as a failure of that stage, never silently dropped.
const defaultTimeout = 30 * time.Second

// Git runs patch validation, application, and commits through the git CLI.
type Git struct {
	// Binary is the git executable. Empty means "git" from PATH.
	Binary string
	// Timeout bounds each git invocation. Zero means defaultTimeout.
	Timeout time.Duration
}

var _ Backend = (*Git)(nil)

// ValidatePatch runs git apply --check against a temp patch file.
func (g *Git) ValidatePatch(ctx context.Context, repoRoot, patch string) error {
	path, cleanup, err := writePatchFile(patch)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := g.run(ctx, repoRoot, "apply", "--check", path); err != nil {
		return fmt.Errorf("patch validation failed: %w", err)
	}
	return nil
}

// ApplyPatch applies the patch to the working tree.
func (g *Git) ApplyPatch(ctx context.Context, repoRoot, patch string) error {
	path, cleanup, err := writePatchFile(patch)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := g.run(ctx, repoRoot, "apply", path); err != nil {
		return fmt.Errorf("patch application failed: %w", err)
	}
	return nil
}

// Commit stages everything and commits, returning the new HEAD hash.
func (g *Git) Commit(ctx context.Context, repoRoot, message string) (string, error) {
	if _, err := g.run(ctx, repoRoot, "add", "-A"); err != nil {
		return "", fmt.Errorf("stage failed: %w", err)
	}
	if _, err := g.run(ctx, repoRoot, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("commit failed: %w", err)
	}
	out, err := g.run(ctx, repoRoot, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve commit id: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// run executes one git command under the configured timeout.
func (g *Git) run(ctx context.Context, repoRoot string, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}
	timeout := g.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("git %s timed out after %s", args[0], timeout)
		}
		return "", fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// writePatchFile writes the patch to a temp file for git apply.
func writePatchFile(patch string) (string, func(), error) {
	f, err := os.CreateTemp("", "patchwarden-*.patch")
	if err != nil {
		return "", nil, fmt.Errorf("write patch file: %w", err)
	}
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}
	if _, err := f.WriteString(patch); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write patch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("write patch file: %w", err)
	}
	path := f.Name()
	return filepath.Clean(path), func() { os.Remove(path) }, nil
}
