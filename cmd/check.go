package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [tag...]",
	Short: "Verify that tags render a single well-formed iframe",
	Long: `Render every registered tag (or only the given ones) with a sample
identifier and check that the output is exactly one iframe whose source
contains the identifier and whose size matches the tag. Useful after adding
providers to the configuration.

Examples:
  vidembed check
  vidembed check youtube vimeo
  vidembed check --sample dQw4w9WgXcQ`,
	RunE: runCheck,
}

var checkSample string

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkSample, "sample", "vidembedCheck123", "Identifier used for the check")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	reg := cfg.NewRegistry()
	names := args
	if len(names) == 0 {
		names = reg.Names()
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range names {
		tag, ok := reg.Tag(name)
		if !ok {
			if !reg.Has(name) {
				fmt.Fprintf(out, "❌ %s: unknown tag\n", name)
			} else {
				fmt.Fprintf(out, "❌ %s: registered without a tag definition\n", name)
			}
			failed++
			continue
		}

		if err := tag.Check(checkSample); err != nil {
			fmt.Fprintf(out, "❌ %s: %v\n", name, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "✅ %s\n", name)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d tag(s) failed", failed, len(names))
	}
	return nil
}
