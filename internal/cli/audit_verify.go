package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/audit"
)

func init() {
	rootCmd.AddCommand(auditVerifyCmd)
}

var auditVerifyCmd = &cobra.Command{
	Use:   "audit-verify [ledger-path]",
	Short: "Verify the audit ledger hash chain",
	Long: "Validates the SHA-256 hash chain of the governance ledger and\n" +
		"reports the first broken link if any. Exit code 1 on a broken\n" +
		"chain.",
	Args: cobra.MaximumNArgs(1),
	RunE: runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path = cfg.AuditPath
	}

	result := audit.Verify(path)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Valid {
		os.Exit(1)
	}
	return nil
}
