package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/vidembed/internal/build"
	"github.com/conneroisu/vidembed/internal/directive"
)

var expandCmd = &cobra.Command{
	Use:     "expand [file]",
	Aliases: []string{"e"},
	Short:   "Expand embed directives in a file",
	Long: `Expand every embed directive in a file, or in standard input when the
file is "-" or omitted, and write the result to standard output.

Front matter is kept as is; a page with "embeds: false" in its front matter is
written unchanged.

Examples:
  vidembed expand post.md
  cat post.md | vidembed expand
  vidembed expand --unknown keep post.html > out.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExpand,
}

var (
	expandUnknown string
	expandOutput  string
)

func init() {
	rootCmd.AddCommand(expandCmd)

	expandCmd.Flags().StringVarP(&expandUnknown, "unknown", "u", "", "Unknown tag policy: error, keep or remove (overrides site.unknown_tags)")
	expandCmd.Flags().StringVarP(&expandOutput, "output-file", "O", "", "Write to a file instead of standard output")
	AddFlagValidation(expandCmd, "unknown", func(s string) error {
		_, err := directive.ParsePolicy(s)
		return err
	})
}

func runExpand(cmd *cobra.Command, args []string) error {
	overrides := map[string]interface{}{}
	if expandUnknown != "" {
		overrides["site.unknown_tags"] = expandUnknown
	}

	cfg, logger, err := loadConfig(cmd, overrides)
	if err != nil {
		return err
	}

	name := "-"
	if len(args) == 1 {
		name = args[0]
	}

	var data []byte
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
		name = "<stdin>"
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	expander := directive.NewExpander(cfg.NewRegistry(), cfg.UnknownTagPolicy(), logger)
	out, page, err := build.ExpandPage(cmd.Context(), expander, name, data)
	if err != nil {
		return err
	}
	logger.Debug(cmd.Context(), "Expanded", "file", name, "embeds", len(page.Embeds), "skipped", len(page.Skipped))

	if expandOutput != "" {
		return os.WriteFile(expandOutput, out, 0o644)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
