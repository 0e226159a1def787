// Package cli wires the patchwarden subcommands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/applier"
	"github.com/ppiankov/patchwarden/internal/audit"
	"github.com/ppiankov/patchwarden/internal/config"
	"github.com/ppiankov/patchwarden/internal/gate"
	"github.com/ppiankov/patchwarden/internal/integrity"
	"github.com/ppiankov/patchwarden/internal/review"
	"github.com/ppiankov/patchwarden/internal/store"
	"github.com/ppiankov/patchwarden/internal/tier"
	"github.com/ppiankov/patchwarden/internal/vcs"
)

var rootCmd = &cobra.Command{
	Use:   "patchwarden",
	Short: "Governance commit pipeline for risk-tiered changes",
	Long: "Classifies file changes into governance tiers, files them as diff\n" +
		"proposals, gates high-risk changes behind quorum review, and applies\n" +
		"approved patches as version-control commits.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := integrity.Verify(); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(78) // EX_CONFIG
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves settings and ensures the state directory exists.
// Each command opens only the components it needs via the helpers below.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Home, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open proposal store: %w", err)
	}
	return st, nil
}

func openLedger(cfg *config.Config) (*audit.Log, error) {
	l, err := audit.Open(cfg.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit ledger: %w", err)
	}
	return l, nil
}

func loadTable(cfg *config.Config) (*tier.Table, error) {
	rules, err := tier.LoadConfig(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	return rules.Compile()
}

// newGraph builds the review graph from the configured reviewer set.
// Returns nil when no reviewers are configured; GOVERN promotion then
// relies on precedent alone.
func newGraph(cfg *config.Config) (*review.Graph, error) {
	if len(cfg.Reviewers) == 0 {
		return nil, nil
	}
	rs, err := review.NewStore(cfg.ReviewDir)
	if err != nil {
		return nil, err
	}
	quorum := review.DefaultQuorum
	if cfg.Quorum > 0 {
		quorum = review.FixedThreshold(cfg.Quorum)
	}
	return review.NewGraph(rs, cfg.Reviewers, quorum)
}

func newGate(cfg *config.Config, st *store.Store, ledger *audit.Log) (*gate.Gate, error) {
	graph, err := newGraph(cfg)
	if err != nil {
		return nil, err
	}
	return &gate.Gate{Store: st, Graph: graph, Ledger: ledger}, nil
}

func newApplier(cfg *config.Config, st *store.Store, ledger *audit.Log) *applier.Applier {
	return &applier.Applier{
		Store:       st,
		Backend:     &vcs.Git{Binary: cfg.GitBinary, Timeout: cfg.GitTimeout},
		Ledger:      ledger,
		RetryBudget: cfg.RetryBudget,
		CoAuthor:    cfg.CoAuthor,
	}
}
