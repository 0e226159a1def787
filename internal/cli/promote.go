package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/model"
)

var promoteReview string

func init() {
	rootCmd.AddCommand(promoteCmd)
	promoteCmd.Flags().StringVar(&promoteReview, "review", "", "Quorated review id authorizing a GOVERN promotion")
}

var promoteCmd = &cobra.Command{
	Use:   "promote <proposal-id>",
	Short: "Promote a pending proposal to committed",
	Long: "Moves a Pending proposal to Committed. INFORM and ALLOW proposals\n" +
		"promote immediately. GOVERN proposals need --review naming a\n" +
		"quorated review, or an exact precedent in the settled ledger.",
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func runPromote(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	p, err := st.Get(ctx, args[0])
	if err != nil {
		return err
	}

	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	worst := model.TierFree
	for _, d := range p.Diffs {
		if m := table.Classify(d.Path); m.Tier < worst {
			worst = m.Tier
		}
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	g, err := newGate(cfg, st, ledger)
	if err != nil {
		return err
	}

	if err := g.Promote(ctx, p.ID, worst, promoteReview); err != nil {
		return err
	}
	fmt.Printf("proposal %s promoted to committed (%s tier)\n", p.ID, worst.Label())
	return nil
}
