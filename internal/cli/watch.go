package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/daemon"
)

var (
	watchPoll         bool
	watchPollInterval time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchPoll, "poll", false, "Use polling instead of fsnotify (for NFS and similar)")
	watchCmd.Flags().DurationVar(&watchPollInterval, "poll-interval", 5*time.Second, "Polling interval when --poll is set")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the inbox for proposal documents",
	Long: "Runs the inbox daemon: new .proposal documents are classified and\n" +
		"filed as proposals. INFORM and ALLOW proposals are promoted\n" +
		"immediately; GOVERN proposals wait for review. Blocks until\n" +
		"interrupted.",
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.InboxDir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
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

	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	g, err := newGate(cfg, st, ledger)
	if err != nil {
		return err
	}

	proc := &daemon.Processor{
		Table:    table,
		Store:    st,
		Gate:     g,
		Ledger:   ledger,
		RepoRoot: cfg.RepoRoot,
		DoneDir:  cfg.InboxDir + "/done",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := func(path string) {
		res, err := proc.Process(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "watch: %s: %v\n", path, err)
			return
		}
		if res.ProposalID != "" {
			fmt.Printf("filed %s (%s, %s)\n", res.ProposalID, res.Tier, res.State)
		}
	}

	// Handle documents that arrived while the daemon was down.
	if err := daemon.ScanExisting(cfg.InboxDir, handler); err != nil {
		return err
	}

	fmt.Printf("watching %s\n", cfg.InboxDir)
	if watchPoll {
		return daemon.NewPollWatcher(cfg.InboxDir, handler, watchPollInterval).Run(ctx)
	}
	return daemon.NewInboxWatcher(cfg.InboxDir, handler).Run(ctx)
}
