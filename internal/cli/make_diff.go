package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/patchwarden/internal/diff"
)

var (
	makeDiffFile    string
	makeDiffNewFile string
	makeDiffStdin   bool
)

func init() {
	rootCmd.AddCommand(makeDiffCmd)
	makeDiffCmd.Flags().StringVar(&makeDiffFile, "file", "", "Current file to diff against (required)")
	makeDiffCmd.Flags().StringVar(&makeDiffNewFile, "new-file", "", "File holding the proposed content")
	makeDiffCmd.Flags().BoolVar(&makeDiffStdin, "stdin", false, "Read the proposed content from stdin")
	makeDiffCmd.MarkFlagRequired("file")
}

var makeDiffCmd = &cobra.Command{
	Use:   "make-diff",
	Short: "Produce a unified diff for a proposed file change",
	Long: "Compares the current file content against the proposed content\n" +
		"(from --new-file or stdin) and prints a unified diff suitable for a\n" +
		"proposal document. Identical content prints nothing and exits 0.",
	RunE: runMakeDiff,
}

func runMakeDiff(cmd *cobra.Command, args []string) error {
	if makeDiffNewFile == "" && !makeDiffStdin {
		return fmt.Errorf("either --new-file or --stdin is required")
	}

	old, err := os.ReadFile(makeDiffFile)
	if err != nil {
		// A missing current file is a file creation: diff from empty.
		if !os.IsNotExist(err) {
			return fmt.Errorf("read %s: %w", makeDiffFile, err)
		}
		old = nil
	}

	var proposed []byte
	if makeDiffStdin {
		proposed, err = io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	} else {
		proposed, err = os.ReadFile(makeDiffNewFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", makeDiffNewFile, err)
		}
	}

	patch := diff.Make(makeDiffFile, string(old), string(proposed))
	if patch == "" {
		fmt.Fprintln(os.Stderr, "no changes")
		return nil
	}

	fmt.Print(patch)
	return nil
}
