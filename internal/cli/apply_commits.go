package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/applier"
	"github.com/ppiankov/patchwarden/internal/model"
	"github.com/ppiankov/patchwarden/internal/store"
)

var applyDryRun bool

func init() {
	rootCmd.AddCommand(applyCommitsCmd)
	applyCommitsCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Validate patches without applying or committing")
}

var applyCommitsCmd = &cobra.Command{
	Use:   "apply-commits [proposal-id]",
	Short: "Apply committed proposals to the working tree",
	Long: "Applies one Committed proposal, or all of them oldest first when no\n" +
		"id is given. Each proposal is validated, applied, and committed as\n" +
		"one unit; multi-file proposals are all-or-nothing. A failure does\n" +
		"not stop the batch.\n\n" +
		"Exit code 0 only if every attempted proposal applied cleanly.",
	Args: cobra.MaximumNArgs(1),
	RunE: runApplyCommits,
}

func runApplyCommits(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ledger, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer ledger.Close()

	a := newApplier(cfg, st, ledger)
	ctx := cmd.Context()

	if len(args) == 1 {
		return applyOne(ctx, a, args[0])
	}

	if applyDryRun {
		return dryRunAll(ctx, a, st)
	}

	batch, err := a.ApplyAll(ctx)
	if err != nil {
		return err
	}
	for _, r := range batch.Results {
		if r.OK {
			fmt.Printf("applied  %s (commit %s)\n", r.ProposalID, r.CommitID)
		} else {
			fmt.Printf("failed   %s at %s: %s\n", r.ProposalID, r.Stage, r.Detail)
		}
	}
	fmt.Printf("%d applied, %d failed\n", batch.Applied, batch.Failed)
	if batch.Failed > 0 {
		os.Exit(1)
	}
	return nil
}

func applyOne(ctx context.Context, a *applier.Applier, id string) error {
	if applyDryRun {
		res, err := a.DryRun(ctx, id)
		if err != nil {
			return err
		}
		if !res.OK {
			fmt.Printf("would fail %s at %s: %s\n", id, res.Stage, res.Detail)
			os.Exit(1)
		}
		fmt.Printf("would apply %s cleanly\n", id)
		return nil
	}

	res, err := a.Apply(ctx, id)
	if err != nil && !errors.Is(err, applier.ErrRetryBudgetExhausted) {
		return err
	}
	if res.OK {
		fmt.Printf("applied %s (commit %s)\n", id, res.CommitID)
		return nil
	}
	fmt.Printf("failed %s at %s: %s\n", id, res.Stage, res.Detail)
	os.Exit(1)
	return nil
}

func dryRunAll(ctx context.Context, a *applier.Applier, st *store.Store) error {
	pending, err := st.List(ctx, model.StateCommitted)
	if err != nil {
		return err
	}
	bad := 0
	for _, p := range pending {
		res, err := a.DryRun(ctx, p.ID)
		if err != nil {
			return err
		}
		if res.OK {
			fmt.Printf("would apply %s cleanly\n", p.ID)
		} else {
			fmt.Printf("would fail  %s at %s: %s\n", p.ID, res.Stage, res.Detail)
			bad++
		}
	}
	if bad > 0 {
		os.Exit(1)
	}
	return nil
}
