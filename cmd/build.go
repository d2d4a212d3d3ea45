package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/vidembed/internal/build"
	"github.com/conneroisu/vidembed/internal/config"
	"github.com/conneroisu/vidembed/internal/directive"
	"github.com/conneroisu/vidembed/internal/logging"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Expand embed directives across the site",
	Long: `Walk the source directory, expand embed directives in every page and
write the result to the destination. Files that are not pages are copied as is.
A manifest listing the embeds of every page is written next to the output.

Examples:
  vidembed build                        # Build with .vidembed.yml settings
  vidembed build -s content -d public   # Override directories
  vidembed build --clean                # Remove the destination first
  vidembed build -o json                # Print the report as JSON`,
	RunE: runBuild,
}

var buildFlags *StandardFlags

func init() {
	rootCmd.AddCommand(buildCmd)

	buildFlags = AddStandardFlags(buildCmd, "site", "output")
}

func runBuild(cmd *cobra.Command, args []string) error {
	if err := buildFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, logger, err := loadConfig(cmd, buildFlags.Overrides(cmd))
	if err != nil {
		return err
	}

	pipeline := newPipeline(cfg, logger, buildFlags.Clean)

	out := cmd.OutOrStdout()
	if !buildFlags.Quiet && buildFlags.OutputFormat == "table" {
		fmt.Fprintf(out, "🔨 Building %s -> %s\n", cfg.Site.Source, cfg.Site.Destination)
	}

	report, err := pipeline.Build(cmd.Context())
	if report == nil {
		return err
	}

	if !buildFlags.Quiet {
		if buildFlags.OutputFormat == "table" {
			printReport(out, report, buildFlags.Verbose)
		} else if werr := WriteStructured(out, buildFlags.OutputFormat, report); werr != nil {
			return werr
		}
	}

	if err != nil {
		return fmt.Errorf("build failed with %d error(s)", len(report.Errors))
	}
	return nil
}

func newPipeline(cfg *config.Config, logger logging.Logger, clean bool) *build.Pipeline {
	opts := build.OptionsFromConfig(cfg)
	opts.Clean = clean
	expander := directive.NewExpander(cfg.NewRegistry(), cfg.UnknownTagPolicy(), logger)
	return build.NewPipeline(opts, expander, logger)
}

func printReport(out io.Writer, report *build.Report, verbose bool) {
	if verbose {
		for _, page := range report.Pages {
			fmt.Fprintf(out, "  %s (%d embeds)\n", page.Path, len(page.Embeds))
			for _, use := range page.Embeds {
				fmt.Fprintf(out, "    %s:%d %s %s\n", filepath.Base(page.Path), use.Line, use.Tag, use.Identifier)
			}
		}
	}

	for _, e := range report.Errors {
		fmt.Fprintf(out, "❌ %s:%d:%d: %s\n", e.File, e.Line, e.Column, e.Message)
	}

	status := "✅"
	if len(report.Errors) > 0 {
		status = "⚠️ "
	}
	fmt.Fprintf(out, "%s %d page(s), %d embed(s), %d file(s) copied, %d error(s) in %s\n",
		status, len(report.Pages), report.Embeds(), report.Copied, len(report.Errors),
		report.Duration.Round(time.Millisecond))
}
