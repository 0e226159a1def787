package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PATCHWARDEN_HOME", "/var/lib/patchwarden")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != filepath.Join("/var/lib/patchwarden", "proposals.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.AuditPath != filepath.Join("/var/lib/patchwarden", "audit.jsonl") {
		t.Errorf("AuditPath = %q", cfg.AuditPath)
	}
	if cfg.GitBinary != "git" {
		t.Errorf("GitBinary = %q", cfg.GitBinary)
	}
	if cfg.GitTimeout != 30*time.Second {
		t.Errorf("GitTimeout = %v", cfg.GitTimeout)
	}
	if cfg.RetryBudget != 3 {
		t.Errorf("RetryBudget = %d", cfg.RetryBudget)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PATCHWARDEN_HOME", "/tmp/pw")
	t.Setenv("PATCHWARDEN_DB", "/elsewhere/p.db")
	t.Setenv("PATCHWARDEN_GIT_TIMEOUT", "2m")
	t.Setenv("PATCHWARDEN_REVIEWERS", "a,b,c")
	t.Setenv("PATCHWARDEN_QUORUM", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "/elsewhere/p.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.GitTimeout != 2*time.Minute {
		t.Errorf("GitTimeout = %v", cfg.GitTimeout)
	}
	if len(cfg.Reviewers) != 3 || cfg.Reviewers[1] != "b" {
		t.Errorf("Reviewers = %v", cfg.Reviewers)
	}
	if cfg.Quorum != 2 {
		t.Errorf("Quorum = %d", cfg.Quorum)
	}
	// Unset paths still derive from Home.
	if cfg.RulesPath != filepath.Join("/tmp/pw", "rules.yaml") {
		t.Errorf("RulesPath = %q", cfg.RulesPath)
	}
}
