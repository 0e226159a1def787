package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/tier"
)

var initRulesStdout bool

func init() {
	rootCmd.AddCommand(initRulesCmd)
	initRulesCmd.Flags().BoolVar(&initRulesStdout, "stdout", false, "Print the rule table instead of writing it")
}

var initRulesCmd = &cobra.Command{
	Use:   "init-rules",
	Short: "Write the default tier rule table",
	Long: "Writes a commented YAML rule table to the configured rules path so\n" +
		"it can be edited. Refuses to overwrite an existing file.",
	RunE: runInitRules,
}

func runInitRules(cmd *cobra.Command, args []string) error {
	if initRulesStdout {
		fmt.Print(tier.DefaultConfigYAML())
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.RulesPath); err == nil {
		return fmt.Errorf("%s already exists; remove it first or use --stdout", cfg.RulesPath)
	}

	if err := os.WriteFile(cfg.RulesPath, []byte(tier.DefaultConfigYAML()), 0644); err != nil {
		return fmt.Errorf("write rules: %w", err)
	}
	fmt.Printf("wrote %s\n", cfg.RulesPath)
	return nil
}
