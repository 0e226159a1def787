package document

import (
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/patchwarden/internal/diff"
	"github.com/ppiankov/patchwarden/internal/model"
)

const sampleDoc = "# Governance Proposal\n\n" +
	"**Proposer:** kart\n" +
	"**Type:** Code Enhancement\n\n" +
	"## Summary\n\n" +
	"Replace b with x in foo.\n\n" +
	"```diff\n" +
	"--- a/core/foo.py\n" +
	"+++ b/core/foo.py\n" +
	"@@ -1,3 +1,3 @@\n" +
	" a\n" +
	"-b\n" +
	"+x\n" +
	" c\n" +
	"```\n"

func TestParseExtractsMetadata(t *testing.T) {
	p, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Proposer != "kart" {
		t.Errorf("Proposer = %q", p.Proposer)
	}
	if p.ChangeType != "Code Enhancement" {
		t.Errorf("ChangeType = %q", p.ChangeType)
	}
	if p.Summary != "Replace b with x in foo." {
		t.Errorf("Summary = %q", p.Summary)
	}
	if len(p.Diffs) != 1 {
		t.Fatalf("expected 1 diff, got %d", len(p.Diffs))
	}
	if p.Diffs[0].Path != "core/foo.py" {
		t.Errorf("diff path = %q", p.Diffs[0].Path)
	}
}

func TestParseMissingMetadataUsesDefaults(t *testing.T) {
	doc := "```diff\n--- a/f.txt\n+++ b/f.txt\n@@ -1 +1 @@\n-a\n+b\n```\n"
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Proposer != "Unknown" || p.Summary != "Governance change" {
		t.Errorf("defaults not applied: %+v", p)
	}
}

func TestParseDeletionDiffUsesOldPath(t *testing.T) {
	// A deletion patch has "+++ /dev/null", so the path must come from
	// the old-file header or the change escapes its tier.
	doc := "**Proposer:** kart\n**Type:** Cleanup\n\n" +
		"## Summary\n\nDrop the legacy shim.\n\n" +
		"```diff\n" +
		"--- a/core/old.py\n" +
		"+++ /dev/null\n" +
		"@@ -1,2 +0,0 @@\n" +
		"-a\n" +
		"-b\n" +
		"```\n"
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Diffs[0].Path != "core/old.py" {
		t.Errorf("deletion diff path = %q, want core/old.py", p.Diffs[0].Path)
	}
}

func TestParseNoDiffBlocksIsError(t *testing.T) {
	if _, err := Parse([]byte("**Proposer:** kart\n\n## Summary\n\nNothing.\n")); err == nil {
		t.Error("expected error for document without diff blocks")
	}
}

func TestParseRepairsGluedHeaders(t *testing.T) {
	doc := "```diff\n--- a/f.txt+++ b/f.txt\n@@ -1 +1 @@\n-a\n+b\n```\n"
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !strings.Contains(p.Diffs[0].Patch, "--- a/f.txt\n+++ b/f.txt") {
		t.Errorf("glued headers not repaired:\n%s", p.Diffs[0].Patch)
	}
	if _, err := diff.Parse(CombineDiffs(p.Diffs)); err != nil {
		t.Errorf("repaired patch should parse: %v", err)
	}
}

func TestRenderParseRoundTrip(t *testing.T) {
	prop := &model.Proposal{
		ID:         "kart_20260829T120000Z_ab12cd34",
		Proposer:   "kart",
		Summary:    "Two file change.",
		ChangeType: "Code Enhancement",
		CreatedAt:  time.Now().UTC(),
		Diffs: []model.FileDiff{
			{Path: "a.txt", Patch: diff.Make("a.txt", "1\n", "2\n")},
			{Path: "b.txt", Patch: diff.Make("b.txt", "x\n", "y\n")},
		},
	}

	p, err := Parse(Render(prop))
	if err != nil {
		t.Fatalf("Parse(Render): %v", err)
	}
	if p.Proposer != prop.Proposer || p.Summary != prop.Summary || p.ChangeType != prop.ChangeType {
		t.Errorf("metadata mismatch: %+v", p)
	}
	if len(p.Diffs) != 2 {
		t.Fatalf("expected 2 diffs, got %d", len(p.Diffs))
	}
	if p.Diffs[0].Path != "a.txt" || p.Diffs[1].Path != "b.txt" {
		t.Errorf("block order not preserved: %q, %q", p.Diffs[0].Path, p.Diffs[1].Path)
	}
}

func TestCombineDiffsProducesOneValidPatch(t *testing.T) {
	diffs := []model.FileDiff{
		{Path: "a.txt", Patch: diff.Make("a.txt", "1\n", "2\n")},
		{Path: "b.txt", Patch: diff.Make("b.txt", "x\n", "y\n")},
	}
	combined := CombineDiffs(diffs)

	if !strings.HasSuffix(combined, "\n") {
		t.Error("combined patch must end with a newline")
	}
	patches, err := diff.Parse(combined)
	if err != nil {
		t.Fatalf("combined patch does not parse: %v\n%s", err, combined)
	}
	if len(patches) != 2 {
		t.Errorf("expected 2 file patches in combined output, got %d", len(patches))
	}
}

func TestCombineDiffsEmpty(t *testing.T) {
	if got := CombineDiffs(nil); got != "" {
		t.Errorf("CombineDiffs(nil) = %q, want empty", got)
	}
}
