package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/model"
)

var pendingState string

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().StringVar(&pendingState, "state", "", "Filter by state (pending|committed|applied|failed)")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List proposals in the store",
	Long:  "Shows proposals oldest first with their state, proposer, and summary. Without --state, only pending and committed proposals are shown.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	states := []model.State{model.StatePending, model.StateCommitted}
	if pendingState != "" {
		s := model.State(pendingState)
		switch s {
		case model.StatePending, model.StateCommitted, model.StateApplied, model.StateFailed:
			states = []model.State{s}
		default:
			return fmt.Errorf("unknown state %q", pendingState)
		}
	}

	list, err := st.List(cmd.Context(), states...)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No proposals.")
		return nil
	}

	fmt.Printf("%-40s %-10s %-15s %s\n", "ID", "STATE", "PROPOSER", "SUMMARY")
	for _, p := range list {
		fmt.Printf("%-40s %-10s %-15s %s\n",
			p.ID,
			p.State,
			truncate(p.Proposer, 15),
			truncate(p.Summary, 50),
		)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
