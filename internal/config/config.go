// Package config loads daemon and CLI settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings. Paths left empty are derived from
// Home after parsing.
type Config struct {
	// Home is the state directory; defaults to ~/.patchwarden.
	Home string `env:"PATCHWARDEN_HOME"`

	DBPath    string `env:"PATCHWARDEN_DB"`
	AuditPath string `env:"PATCHWARDEN_AUDIT"`
	RulesPath string `env:"PATCHWARDEN_RULES"`
	ReviewDir string `env:"PATCHWARDEN_REVIEWS"`
	InboxDir  string `env:"PATCHWARDEN_INBOX"`

	// RepoRoot is the governed repository applied proposals commit into.
	RepoRoot string `env:"PATCHWARDEN_REPO"`

	GitBinary  string        `env:"PATCHWARDEN_GIT" envDefault:"git"`
	GitTimeout time.Duration `env:"PATCHWARDEN_GIT_TIMEOUT" envDefault:"30s"`

	RetryBudget int `env:"PATCHWARDEN_RETRY_BUDGET" envDefault:"3"`

	// Proposer is the default identity for proposals created locally.
	Proposer string `env:"PATCHWARDEN_PROPOSER" envDefault:"patchwarden"`

	// CoAuthor, when set, is appended to governance commits as a
	// Co-Authored-By trailer.
	CoAuthor string `env:"PATCHWARDEN_CO_AUTHOR"`

	// Reviewers is the GOVERN-tier reviewer set.
	Reviewers []string `env:"PATCHWARDEN_REVIEWERS" envSeparator:","`

	// Quorum overrides the derived approval threshold. Zero derives it
	// from the reviewer group size; group sizes without a known policy
	// then fail at startup.
	Quorum int `env:"PATCHWARDEN_QUORUM"`
}

// Load parses the environment and fills derived paths.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home directory: %w", err)
		}
		cfg.Home = filepath.Join(home, ".patchwarden")
	}

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.Home, "proposals.db")
	}
	if cfg.AuditPath == "" {
		cfg.AuditPath = filepath.Join(cfg.Home, "audit.jsonl")
	}
	if cfg.RulesPath == "" {
		cfg.RulesPath = filepath.Join(cfg.Home, "rules.yaml")
	}
	if cfg.ReviewDir == "" {
		cfg.ReviewDir = filepath.Join(cfg.Home, "reviews")
	}
	if cfg.InboxDir == "" {
		cfg.InboxDir = filepath.Join(cfg.Home, "inbox")
	}

	return &cfg, nil
}
