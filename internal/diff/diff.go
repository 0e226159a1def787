// Package diff generates, parses, validates, and applies unified diffs.
//
// Generated diffs are always internally consistent: every hunk's line-count
// header matches its body exactly. Hand-authored diffs commonly get hunk
// counts wrong and then fail validation downstream; Parse rejects them.
package diff

import (
	"fmt"
	"strings"
)

// contextLines is the number of unchanged lines kept around each hunk.
const contextLines = 3

// noNewlineMarker follows a diff body line whose content does not end in a
// newline, per the unified diff convention.
const noNewlineMarker = `\ No newline at end of file`

// Make renders a unified diff turning old into new for the given path.
// A missing original is passed as empty old content (pure-addition diff).
// Identical contents yield "" — no change, nothing to propose.
//
// Headers use a/ b/ relative-path prefixes so the output is directly
// consumable by git apply.
func Make(path, old, new string) string {
	if old == new {
		return ""
	}

	a := splitKeepEnds(old)
	b := splitKeepEnds(new)

	groups := groupOpcodes(computeOpcodes(a, b), contextLines)
	if len(groups) == 0 {
		return ""
	}

	rel := strings.ReplaceAll(path, `\`, "/")

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", rel, rel)
	for _, g := range groups {
		first, last := g[0], g[len(g)-1]
		fmt.Fprintf(&sb, "@@ -%s +%s @@\n",
			formatRange(first.i1, last.i2), formatRange(first.j1, last.j2))
		for _, c := range g {
			switch c.tag {
			case opEqual:
				writeLines(&sb, ' ', a[c.i1:c.i2])
			case opDelete:
				writeLines(&sb, '-', a[c.i1:c.i2])
			case opInsert:
				writeLines(&sb, '+', b[c.j1:c.j2])
			}
		}
	}
	return sb.String()
}

// splitKeepEnds splits content into lines, each keeping its trailing
// newline. A final line without a newline is kept as-is. Empty content
// yields no lines.
func splitKeepEnds(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:i+1])
		s = s[i+1:]
		if s == "" {
			break
		}
	}
	return lines
}

func writeLines(sb *strings.Builder, op byte, lines []string) {
	for _, line := range lines {
		sb.WriteByte(op)
		if strings.HasSuffix(line, "\n") {
			sb.WriteString(line)
		} else {
			sb.WriteString(line)
			sb.WriteByte('\n')
			sb.WriteString(noNewlineMarker)
			sb.WriteByte('\n')
		}
	}
}

// formatRange renders a hunk range. Single-line ranges omit the count;
// zero-length ranges report the line before the insertion point.
func formatRange(start, stop int) string {
	beginning := start + 1
	length := stop - start
	if length == 1 {
		return fmt.Sprintf("%d", beginning)
	}
	if length == 0 {
		beginning--
	}
	return fmt.Sprintf("%d,%d", beginning, length)
}

type opTag int

const (
	opEqual opTag = iota
	opDelete
	opInsert
)

// opcode describes one edit region: a[i1:i2] corresponds to b[j1:j2].
type opcode struct {
	tag            opTag
	i1, i2, j1, j2 int
}

// computeOpcodes builds a minimal line-level edit script via LCS alignment.
// Common prefix and suffix are trimmed first to keep the DP table small.
func computeOpcodes(a, b []string) []opcode {
	n, m := len(a), len(b)

	p := 0
	for p < n && p < m && a[p] == b[p] {
		p++
	}
	s := 0
	for s < n-p && s < m-p && a[n-1-s] == b[m-1-s] {
		s++
	}

	var ops []opcode
	if p > 0 {
		ops = append(ops, opcode{opEqual, 0, p, 0, p})
	}
	ops = append(ops, lcsOpcodes(a[p:n-s], b[p:m-s], p, p)...)
	if s > 0 {
		ops = append(ops, opcode{opEqual, n - s, n, m - s, m})
	}
	return ops
}

// lcsOpcodes computes opcodes for the untrimmed middle section.
// ao and bo are the offsets of the section within the full line slices.
func lcsOpcodes(a, b []string, ao, bo int) []opcode {
	n, m := len(a), len(b)
	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		return []opcode{{opInsert, ao, ao, bo, bo + m}}
	}
	if m == 0 {
		return []opcode{{opDelete, ao, ao + n, bo, bo}}
	}

	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	// Backtrack, recording one tag per consumed line.
	var rev []opTag
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1]:
			rev = append(rev, opEqual)
			i--
			j--
		case j > 0 && (i == 0 || dp[i][j-1] >= dp[i-1][j]):
			rev = append(rev, opInsert)
			j--
		default:
			rev = append(rev, opDelete)
			i--
		}
	}

	// Walk forward, merging runs of the same tag into opcodes.
	var ops []opcode
	ai, bi := ao, bo
	for k := len(rev) - 1; k >= 0; {
		tag := rev[k]
		i1, j1 := ai, bi
		for k >= 0 && rev[k] == tag {
			switch tag {
			case opEqual:
				ai++
				bi++
			case opDelete:
				ai++
			case opInsert:
				bi++
			}
			k--
		}
		ops = append(ops, opcode{tag, i1, ai, j1, bi})
	}
	return ops
}

// groupOpcodes splits an edit script into hunk groups separated by more
// than 2n unchanged lines, trimming leading and trailing context to n.
func groupOpcodes(ops []opcode, n int) [][]opcode {
	if len(ops) == 0 {
		return nil
	}

	codes := make([]opcode, len(ops))
	copy(codes, ops)

	if c := codes[0]; c.tag == opEqual {
		codes[0] = opcode{opEqual, max(c.i1, c.i2-n), c.i2, max(c.j1, c.j2-n), c.j2}
	}
	if c := codes[len(codes)-1]; c.tag == opEqual {
		codes[len(codes)-1] = opcode{opEqual, c.i1, min(c.i2, c.i1+n), c.j1, min(c.j2, c.j1+n)}
	}

	var groups [][]opcode
	var group []opcode
	for _, c := range codes {
		if c.tag == opEqual && c.i2-c.i1 > 2*n {
			group = append(group, opcode{opEqual, c.i1, min(c.i2, c.i1+n), c.j1, min(c.j2, c.j1+n)})
			groups = append(groups, group)
			group = nil
			c = opcode{opEqual, max(c.i1, c.i2-n), c.i2, max(c.j1, c.j2-n), c.j2}
		}
		group = append(group, c)
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].tag == opEqual) {
		groups = append(groups, group)
	}
	return groups
}
