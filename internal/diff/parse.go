package diff

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrHunkMismatch marks a structurally inconsistent diff: a hunk whose
// body does not match its declared line counts.
var ErrHunkMismatch = errors.New("hunk body does not match declared line counts")

// Line is one body line of a hunk.
type Line struct {
	Op   byte   // ' ', '-', or '+'
	Text string // content including trailing newline, absent only at no-EOF
}

// Hunk is one @@-delimited change region.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []Line
}

// FilePatch is the parsed diff for a single file.
type FilePatch struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Path returns the target path with the b/ prefix stripped.
func (fp FilePatch) Path() string {
	p := fp.NewPath
	if strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse splits unified diff text into per-file patches and validates every
// hunk's body against its declared counts. An inconsistent hunk returns
// ErrHunkMismatch. Empty input returns no patches and no error.
func Parse(text string) ([]FilePatch, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")
	// A trailing newline leaves one empty element; drop it.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var patches []FilePatch
	var cur *FilePatch

	i := 0
	for i < len(lines) {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, "diff "), strings.HasPrefix(line, "index "):
			i++

		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				return nil, fmt.Errorf("line %d: file header %q not followed by +++", i+1, line)
			}
			patches = append(patches, FilePatch{
				OldPath: strings.TrimSpace(line[4:]),
				NewPath: strings.TrimSpace(lines[i+1][4:]),
			})
			cur = &patches[len(patches)-1]
			i += 2

		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				return nil, fmt.Errorf("line %d: hunk header before file header", i+1)
			}
			h, consumed, err := parseHunk(lines[i:], i+1)
			if err != nil {
				return nil, err
			}
			cur.Hunks = append(cur.Hunks, h)
			i += consumed

		default:
			return nil, fmt.Errorf("line %d: unexpected content %q", i+1, line)
		}
	}

	for _, fp := range patches {
		if len(fp.Hunks) == 0 {
			return nil, fmt.Errorf("file %s: no hunks", fp.Path())
		}
	}
	return patches, nil
}

// parseHunk parses one hunk starting at raw[0] and validates its counts.
// lineno is the 1-based position of raw[0] in the whole diff, for errors.
func parseHunk(raw []string, lineno int) (Hunk, int, error) {
	m := hunkHeader.FindStringSubmatch(raw[0])
	if m == nil {
		return Hunk{}, 0, fmt.Errorf("line %d: malformed hunk header %q", lineno, raw[0])
	}

	h := Hunk{
		OldStart: atoi(m[1]),
		OldCount: 1,
		NewStart: atoi(m[3]),
		NewCount: 1,
	}
	if m[2] != "" {
		h.OldCount = atoi(m[2])
	}
	if m[4] != "" {
		h.NewCount = atoi(m[4])
	}

	oldSeen, newSeen := 0, 0
	i := 1
	for i < len(raw) {
		line := raw[i]

		// Next hunk or next file ends this body.
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "--- ") ||
			strings.HasPrefix(line, "diff ") {
			break
		}

		if strings.HasPrefix(line, `\`) {
			// No-newline marker: the previous body line has no trailing \n.
			if len(h.Lines) == 0 {
				return Hunk{}, 0, fmt.Errorf("line %d: stray no-newline marker", lineno+i)
			}
			prev := &h.Lines[len(h.Lines)-1]
			prev.Text = strings.TrimSuffix(prev.Text, "\n")
			i++
			continue
		}

		var op byte
		var text string
		switch {
		case line == "":
			// Some tools emit empty context lines with the space stripped.
			op, text = ' ', "\n"
		case line[0] == ' ', line[0] == '-', line[0] == '+':
			op, text = line[0], line[1:]+"\n"
		default:
			return Hunk{}, 0, fmt.Errorf("line %d: unexpected hunk body line %q", lineno+i, line)
		}

		switch op {
		case ' ':
			oldSeen++
			newSeen++
		case '-':
			oldSeen++
		case '+':
			newSeen++
		}
		h.Lines = append(h.Lines, Line{Op: op, Text: text})
		i++

		if oldSeen >= h.OldCount && newSeen >= h.NewCount {
			// Body satisfied; a trailing marker may still follow.
			if i < len(raw) && strings.HasPrefix(raw[i], `\`) {
				prev := &h.Lines[len(h.Lines)-1]
				prev.Text = strings.TrimSuffix(prev.Text, "\n")
				i++
			}
			break
		}
	}

	if oldSeen != h.OldCount || newSeen != h.NewCount {
		return Hunk{}, 0, fmt.Errorf("%w: header @@ -%d,%d +%d,%d @@ but body has %d/%d lines",
			ErrHunkMismatch, h.OldStart, h.OldCount, h.NewStart, h.NewCount, oldSeen, newSeen)
	}
	return h, i, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
