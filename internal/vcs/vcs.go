// Package vcs hides the version-control executable behind a small
// capability interface so the apply pipeline can be tested against a
// deterministic fake that simulates every failure mode.
package vcs

import "context"

// Backend is the version-control capability consumed by the patch applier.
type Backend interface {
	// ValidatePatch checks that the patch would apply cleanly against the
	// current working tree. It must not mutate anything.
	ValidatePatch(ctx context.Context, repoRoot, patch string) error

	// ApplyPatch applies the patch to the working tree.
	ApplyPatch(ctx context.Context, repoRoot, patch string) error

	// Commit stages all changes and creates one commit with the given
	// message, returning the resulting commit identifier.
	Commit(ctx context.Context, repoRoot, message string) (string, error)
}
