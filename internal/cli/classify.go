package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(classifyCmd)
}

var classifyCmd = &cobra.Command{
	Use:   "classify <path>",
	Short: "Classify a file path into its governance tier",
	Long: "Evaluates the path against the tier rule table and prints the match\n" +
		"as JSON. The exit code is the tier rank (1=GOVERN, 2=INFORM,\n" +
		"3=ALLOW, 4=FREE), so shell callers can branch on it directly.",
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := loadTable(cfg)
	if err != nil {
		return err
	}

	m := table.Classify(args[0])

	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	os.Exit(int(m.Tier))
	return nil
}
