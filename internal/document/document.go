// Package document renders and parses governance proposal documents:
// a markdown record with ordered metadata fields followed by one fenced
// diff block per changed file.
package document

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/patchwarden/internal/model"
)

var (
	diffBlockRe = regexp.MustCompile("(?s)```diff\n(.*?)\n```")
	proposerRe  = regexp.MustCompile(`\*\*Proposer:\*\* (.+)`)
	typeRe      = regexp.MustCompile(`\*\*Type:\*\* (.+)`)
	summaryRe   = regexp.MustCompile(`## Summary\n\n(.+)`)
	newPathRe   = regexp.MustCompile(`(?m)^\+\+\+ b/(\S+)`)
	oldPathRe   = regexp.MustCompile(`(?m)^--- a/(\S+)`)

	// Agents sometimes emit "--- a/foo.py+++ b/foo.py" on one line.
	headerGlueRe = regexp.MustCompile(`(--- a/\S+)[ \t]*(\+\+\+ b/)`)
)

// Parsed holds the fields extracted from a proposal document.
type Parsed struct {
	Proposer   string
	ChangeType string
	Summary    string
	Diffs      []model.FileDiff
}

// Parse extracts metadata and diff blocks from a proposal document.
// A document with no diff blocks is an error: there is nothing to govern.
func Parse(data []byte) (*Parsed, error) {
	content := string(data)

	p := &Parsed{
		Proposer:   "Unknown",
		ChangeType: "Governance change",
	}
	if m := proposerRe.FindStringSubmatch(content); m != nil {
		p.Proposer = strings.TrimSpace(m[1])
	}
	if m := typeRe.FindStringSubmatch(content); m != nil {
		p.ChangeType = strings.TrimSpace(m[1])
	}
	if m := summaryRe.FindStringSubmatch(content); m != nil {
		p.Summary = strings.TrimSpace(m[1])
	}
	if p.Summary == "" {
		p.Summary = "Governance change"
	}

	blocks := diffBlockRe.FindAllStringSubmatch(content, -1)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no diff blocks in proposal document")
	}

	for _, b := range blocks {
		patch := normalizePatch(b[1])
		p.Diffs = append(p.Diffs, model.FileDiff{Path: patchPath(patch), Patch: patch})
	}

	return p, nil
}

// Render produces the canonical proposal document for a proposal.
func Render(p *model.Proposal) []byte {
	var sb strings.Builder

	sb.WriteString("# Governance Proposal\n\n")
	fmt.Fprintf(&sb, "**Proposer:** %s\n", p.Proposer)
	fmt.Fprintf(&sb, "**Type:** %s\n\n", p.ChangeType)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(p.Summary)
	sb.WriteString("\n")

	for _, d := range p.Diffs {
		sb.WriteString("\n```diff\n")
		sb.WriteString(strings.TrimSuffix(d.Patch, "\n"))
		sb.WriteString("\n```\n")
	}

	return []byte(sb.String())
}

// CombineDiffs concatenates a proposal's file diffs, in order, into one
// patch. Either the whole combined patch applies or none of it does.
func CombineDiffs(diffs []model.FileDiff) string {
	parts := make([]string, 0, len(diffs))
	for _, d := range diffs {
		parts = append(parts, strings.TrimSuffix(normalizePatch(d.Patch), "\n"))
	}
	combined := strings.Join(parts, "\n")
	if combined != "" && !strings.HasSuffix(combined, "\n") {
		combined += "\n"
	}
	return combined
}

// patchPath extracts the governed path from a patch's file headers. The
// new-file header wins; a deletion patch ("+++ /dev/null") falls back to
// the old-file header so the removed path is still classified.
func patchPath(patch string) string {
	if m := newPathRe.FindStringSubmatch(patch); m != nil {
		return m[1]
	}
	if m := oldPathRe.FindStringSubmatch(patch); m != nil {
		return m[1]
	}
	return ""
}

// normalizePatch repairs known agent formatting corruption: the old and
// new file headers landing on a single line.
func normalizePatch(patch string) string {
	return headerGlueRe.ReplaceAllString(patch, "$1\n$2")
}
