package diff

import (
	"errors"
	"fmt"
)

// ErrContextMismatch marks a patch whose context or deletion lines do not
// match the current file content.
var ErrContextMismatch = errors.New("patch context does not match file content")

// Apply applies a parsed file patch to old content and returns the result.
// Application is strict and byte-exact: every context and deletion line
// must match the file, with no fuzz. Apply never mutates its inputs, so it
// doubles as a dry-run check.
func Apply(old string, fp FilePatch) (string, error) {
	lines := splitKeepEnds(old)

	var out []string
	pos := 0

	for _, h := range fp.Hunks {
		// A zero-length old range addresses the insertion point directly;
		// otherwise the header is 1-based.
		start := h.OldStart - 1
		if h.OldCount == 0 {
			start = h.OldStart
		}

		if start < pos {
			return "", fmt.Errorf("hunk at -%d overlaps previous hunk", h.OldStart)
		}
		if start > len(lines) {
			return "", fmt.Errorf("%w: hunk at -%d beyond end of file (%d lines)",
				ErrContextMismatch, h.OldStart, len(lines))
		}

		out = append(out, lines[pos:start]...)
		pos = start

		for _, l := range h.Lines {
			switch l.Op {
			case ' ', '-':
				if pos >= len(lines) {
					return "", fmt.Errorf("%w: hunk at -%d runs past end of file",
						ErrContextMismatch, h.OldStart)
				}
				if lines[pos] != l.Text {
					return "", fmt.Errorf("%w: at line %d expected %q, file has %q",
						ErrContextMismatch, pos+1, l.Text, lines[pos])
				}
				if l.Op == ' ' {
					out = append(out, lines[pos])
				}
				pos++
			case '+':
				out = append(out, l.Text)
			}
		}
	}

	out = append(out, lines[pos:]...)

	var sb []byte
	for _, l := range out {
		sb = append(sb, l...)
	}
	return string(sb), nil
}

// Validate checks that a patch would apply cleanly without producing the
// result. This is the non-mutating dry-run used before any real apply.
func Validate(old string, fp FilePatch) error {
	_, err := Apply(old, fp)
	return err
}
