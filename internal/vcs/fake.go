package vcs

import (
	"context"
	"fmt"
	"sync"

	"github.com/ppiankov/patchwarden/internal/diff"
)

// Fake is an in-memory Backend for tests. It validates and applies patches
// against a map of file contents and can be told to fail at any stage,
// simulating each failure mode without a real repository.
type Fake struct {
	mu      sync.Mutex
	Files   map[string]string
	Commits []string

	FailValidate error
	FailApply    error
	FailCommit   error
}

var _ Backend = (*Fake)(nil)

// NewFake creates a fake backend with the given working-tree contents.
func NewFake(files map[string]string) *Fake {
	if files == nil {
		files = make(map[string]string)
	}
	return &Fake{Files: files}
}

// ValidatePatch checks the patch against the in-memory tree. Never mutates.
func (f *Fake) ValidatePatch(ctx context.Context, repoRoot, patch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailValidate != nil {
		return f.FailValidate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	patches, err := diff.Parse(patch)
	if err != nil {
		return err
	}
	for _, fp := range patches {
		if err := diff.Validate(f.Files[fp.Path()], fp); err != nil {
			return fmt.Errorf("%s: %w", fp.Path(), err)
		}
	}
	return nil
}

// ApplyPatch applies the patch all-or-nothing to the in-memory tree.
func (f *Fake) ApplyPatch(ctx context.Context, repoRoot, patch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.FailApply != nil {
		return f.FailApply
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	patches, err := diff.Parse(patch)
	if err != nil {
		return err
	}

	updated := make(map[string]string, len(patches))
	for _, fp := range patches {
		content, err := diff.Apply(f.Files[fp.Path()], fp)
		if err != nil {
			return fmt.Errorf("%s: %w", fp.Path(), err)
		}
		updated[fp.Path()] = content
	}
	for path, content := range updated {
		f.Files[path] = content
	}
	return nil
}

// Commit records the message and returns a deterministic commit id.
func (f *Fake) Commit(ctx context.Context, repoRoot, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.FailCommit != nil {
		return "", f.FailCommit
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commits = append(f.Commits, message)
	return fmt.Sprintf("fake-%04d", len(f.Commits)), nil
}
