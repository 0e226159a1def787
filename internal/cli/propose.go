package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/audit"
	"github.com/ppiankov/patchwarden/internal/document"
	"github.com/ppiankov/patchwarden/internal/model"
)

var proposeRepo string

func init() {
	rootCmd.AddCommand(proposeCmd)
	proposeCmd.Flags().StringVar(&proposeRepo, "repo", "", "Repository root the proposal targets (defaults to PATCHWARDEN_REPO)")
}

var proposeCmd = &cobra.Command{
	Use:   "propose <document>",
	Short: "File a proposal from a governance document",
	Long: "Parses a proposal document (metadata plus fenced diff blocks),\n" +
		"classifies the touched paths, and stores the proposal as Pending.\n" +
		"The strictest tier across all touched paths governs the whole\n" +
		"document. FREE documents are not filed.",
	Args: cobra.ExactArgs(1),
	RunE: runPropose,
}

func runPropose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if proposeRepo == "" {
		proposeRepo = cfg.RepoRoot
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	parsed, err := document.Parse(data)
	if err != nil {
		return err
	}

	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	worst := model.TierFree
	for _, d := range parsed.Diffs {
		if m := table.Classify(d.Path); m.Tier < worst {
			worst = m.Tier
		}
	}
	if !worst.Governed() {
		fmt.Println("all touched paths are FREE; nothing to govern")
		return nil
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	id, err := st.Create(ctx, &model.Proposal{
		RepoRoot:   proposeRepo,
		Proposer:   parsed.Proposer,
		Summary:    parsed.Summary,
		ChangeType: parsed.ChangeType,
		Diffs:      parsed.Diffs,
	})
	if err != nil {
		return err
	}

	if ledger, lerr := openLedger(cfg); lerr == nil {
		_ = ledger.Record(audit.Entry{
			Event:      audit.EventPropose,
			ProposalID: id,
			Tier:       int(worst),
			Outcome:    "created",
		})
		ledger.Close()
	}

	fmt.Printf("proposal %s filed (%s tier, %d file(s))\n", id, worst.Label(), len(parsed.Diffs))
	return nil
}
