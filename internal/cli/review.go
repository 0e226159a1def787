package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	reviewNode    string
	reviewApprove bool
	reviewReject  bool
)

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewRequestCmd)
	reviewCmd.AddCommand(reviewAnswerCmd)
	reviewCmd.AddCommand(reviewStatusCmd)

	reviewRequestCmd.Flags().StringVar(&reviewNode, "node", "local", "Node requesting the review")
	reviewAnswerCmd.Flags().BoolVar(&reviewApprove, "approve", false, "Record an approval")
	reviewAnswerCmd.Flags().BoolVar(&reviewReject, "reject", false, "Record a rejection")
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage quorum reviews for GOVERN-tier proposals",
}

var reviewRequestCmd = &cobra.Command{
	Use:   "request <proposal-id>",
	Short: "Open a review for a proposal",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewRequest,
}

var reviewAnswerCmd = &cobra.Command{
	Use:   "answer <review-id> <reviewer>",
	Short: "Record one reviewer's decision",
	Args:  cobra.ExactArgs(2),
	RunE:  runReviewAnswer,
}

var reviewStatusCmd = &cobra.Command{
	Use:   "status <review-id>",
	Short: "Show a review's decisions and quorum state",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviewStatus,
}

func runReviewRequest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	graph, err := newGraph(cfg)
	if err != nil {
		return err
	}
	if graph == nil {
		return fmt.Errorf("no reviewers configured (set PATCHWARDEN_REVIEWERS)")
	}

	id, err := graph.Request(reviewNode, args[0])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runReviewAnswer(cmd *cobra.Command, args []string) error {
	if reviewApprove == reviewReject {
		return fmt.Errorf("exactly one of --approve or --reject is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	graph, err := newGraph(cfg)
	if err != nil {
		return err
	}
	if graph == nil {
		return fmt.Errorf("no reviewers configured (set PATCHWARDEN_REVIEWERS)")
	}

	if err := graph.Answer(args[0], args[1], reviewApprove); err != nil {
		return err
	}

	r, err := graph.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("review %s: %d/%d approvals", r.ID, r.Approvals(), r.Threshold)
	switch {
	case r.Quorated():
		fmt.Print(" — quorated")
	case r.Unreachable():
		fmt.Print(" — quorum unreachable")
	}
	fmt.Println()
	return nil
}

func runReviewStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	graph, err := newGraph(cfg)
	if err != nil {
		return err
	}
	if graph == nil {
		return fmt.Errorf("no reviewers configured (set PATCHWARDEN_REVIEWERS)")
	}

	r, err := graph.Get(args[0])
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
