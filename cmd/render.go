package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renderCmd = &cobra.Command{
	Use:     "render <tag> <identifier>",
	Aliases: []string{"r"},
	Short:   "Render a single embed",
	Long: `Render the iframe markup for one tag and identifier. Providers declared
in the configuration file are available alongside the built-in tags.

Examples:
  vidembed render youtube dQw4w9WgXcQ
  vidembed render vimeo 76979871
  vidembed render --escape youtube 'a"b'   # escape the identifier`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

var renderEscape bool

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().BoolVar(&renderEscape, "escape", false, "Escape the identifier (overrides embed.escape_identifiers)")
}

func runRender(cmd *cobra.Command, args []string) error {
	overrides := map[string]interface{}{}
	if cmd.Flags().Changed("escape") {
		overrides["embed.escape_identifiers"] = renderEscape
	}

	cfg, _, err := loadConfig(cmd, overrides)
	if err != nil {
		return err
	}

	out, err := cfg.NewRegistry().Render(args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
