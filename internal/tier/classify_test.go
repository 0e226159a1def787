package tier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/patchwarden/internal/model"
)

func TestClassifyScenarios(t *testing.T) {
	table := MustCompileDefault()

	tests := []struct {
		path string
		tier model.Tier
	}{
		{`/home/sean/GitHub/willow/core/foo.py`, model.TierGovern},
		{`C:\Users\sean\GitHub\willow\core\foo.py`, model.TierGovern},
		{`/home/sean/GitHub/willow/artifacts/x.png`, model.TierInform},
		{`/home/sean/Desktop/notes.txt`, model.TierFree},
		{`/srv/other/file.txt`, model.TierInform}, // unmatched default
		{`/repo/governance/charter.md`, model.TierGovern},
		{`/repo/governance/commits/prop_001.commit`, model.TierInform},
		{`/repo/tests/test_router.py`, model.TierAllow},
		{`/home/sean/.claude/hooks/guard.ps1`, model.TierFree},
		{`/home/sean/.claude/projects/notes.md`, model.TierInform},
		{`/home/sean/Documents/GitHub/repo/readme.md`, model.TierInform},
		{`/home/sean/Documents/letter.docx`, model.TierFree},
	}

	for _, tt := range tests {
		got := table.Classify(tt.path)
		if got.Tier != tt.tier {
			t.Errorf("Classify(%q) = %s, want %s (matched %q)",
				tt.path, got.Label, tt.tier.Label(), got.MatchedPattern)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	table := MustCompileDefault()
	path := `/home/sean/GitHub/willow/core/router.py`

	first := table.Classify(path)
	for i := 0; i < 100; i++ {
		got := table.Classify(path)
		if got != first {
			t.Fatalf("classification not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestClassifyPrecedenceHigherScrutinyWins(t *testing.T) {
	// Path matches both a GOVERN rule (core) and an ALLOW rule (tests).
	// The numerically lower tier must win regardless of YAML order.
	cfg := &Config{
		RuleSets: []RuleSet{
			{Tier: 3, Reason: "dev", Rules: []Rule{{Pattern: `[/\\]tests[/\\]`}}},
			{Tier: 1, Reason: "core", Rules: []Rule{{Pattern: `[/\\]core[/\\]`}}},
		},
	}
	table, err := cfg.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got := table.Classify(`/repo/core/tests/test_x.py`)
	if got.Tier != model.TierGovern {
		t.Errorf("expected GOVERN to outrank ALLOW, got %s", got.Label)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	table := MustCompileDefault()
	if got := table.Classify(`/home/sean/DESKTOP/x.txt`); got.Tier != model.TierFree {
		t.Errorf("expected case-insensitive match, got %s", got.Label)
	}
}

func TestClassifyAlwaysReturnsValidTier(t *testing.T) {
	table := MustCompileDefault()
	paths := []string{"", "x", `/a/b/c`, `C:\z`, "core", "/core/", "////", "日本語/パス.txt"}
	for _, p := range paths {
		got := table.Classify(p)
		if got.Tier < model.TierGovern || got.Tier > model.TierFree {
			t.Errorf("Classify(%q) returned invalid tier %d", p, got.Tier)
		}
	}
}

func TestClassifyDefaultReportsNoPattern(t *testing.T) {
	table := MustCompileDefault()
	got := table.Classify(`/srv/other/file.txt`)
	if got.MatchedPattern != "" {
		t.Errorf("default classification should have no matched pattern, got %q", got.MatchedPattern)
	}
	if got.Reason != defaultReason {
		t.Errorf("unexpected default reason: %q", got.Reason)
	}
}

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.RuleSets) != 4 {
		t.Errorf("expected 4 default rule sets, got %d", len(cfg.RuleSets))
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rule_sets: [not: valid"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestDefaultConfigYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(DefaultConfigYAML()), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	table, err := cfg.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := table.Classify(`/repo/core/x.py`); got.Tier != model.TierGovern {
		t.Errorf("generated YAML: /repo/core/x.py = %s, want GOVERN", got.Label)
	}
}

func TestCompileRejectsBadPattern(t *testing.T) {
	cfg := &Config{RuleSets: []RuleSet{
		{Tier: 1, Rules: []Rule{{Pattern: `([unclosed`}}},
	}}
	if _, err := cfg.Compile(); err == nil {
		t.Error("expected error for invalid regexp")
	}
}

func TestCompileRejectsBadTier(t *testing.T) {
	cfg := &Config{RuleSets: []RuleSet{
		{Tier: 9, Rules: []Rule{{Pattern: `x`}}},
	}}
	if _, err := cfg.Compile(); err == nil {
		t.Error("expected error for out-of-range tier")
	}
}
