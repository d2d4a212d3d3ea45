package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conneroisu/vidembed/internal/embed"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List registered embed tags",
	Long: `List the built-in tags and the providers declared in the configuration.

Examples:
  vidembed list              # Table
  vidembed list -o json      # JSON
  vidembed list -o yaml      # YAML`,
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, _, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	reg := cfg.NewRegistry()
	tags := make([]embed.Tag, 0, reg.Count())
	for _, name := range reg.Names() {
		tag, ok := reg.Tag(name)
		if !ok {
			tag = embed.Tag{Provider: name}
		}
		tags = append(tags, tag)
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(listFlags.OutputFormat) {
	case "json", "yaml":
		return WriteStructured(out, listFlags.OutputFormat, tags)
	default:
		return outputTable(out, tags, listFlags.Verbose)
	}
}

func outputTable(out io.Writer, tags []embed.Tag, verbose bool) error {
	title := cases.Title(language.English)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if verbose {
		fmt.Fprintln(w, "TAG\tPROVIDER\tSIZE\tURL\tATTRIBUTES")
	} else {
		fmt.Fprintln(w, "TAG\tPROVIDER\tSIZE\tURL")
	}

	for _, tag := range tags {
		size := fmt.Sprintf("%dx%d", tag.Width, tag.Height)
		if tag.DimensionsFirst {
			size += "*"
		}
		if verbose {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				tag.Provider, title.String(tag.Provider), size, tag.URLTemplate, strings.Join(tag.ExtraAttributes, " "))
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				tag.Provider, title.String(tag.Provider), size, tag.URLTemplate)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d tag(s); * marks tags that place width and height before src\n", len(tags))
	return nil
}
