package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/vidembed/internal/build"
	"github.com/conneroisu/vidembed/internal/config"
	"github.com/conneroisu/vidembed/internal/logging"
	"github.com/conneroisu/vidembed/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild the site whenever a source file changes",
	Long: `Build the site once, then watch the source directory and rebuild after
every batch of changes. Changes are debounced by development.debounce.

Examples:
  vidembed watch                  # Watch with .vidembed.yml settings
  vidembed watch -s content       # Watch another source directory
  vidembed watch --verbose        # Print every changed file`,
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "site")
	watchCmd.Flags().BoolVarP(&watchFlags.Verbose, "verbose", "v", false, "Print every changed file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd, watchFlags.Overrides(cmd))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	pipeline := newPipeline(cfg, logger, watchFlags.Clean)
	pipeline.AddCallback(func(report *build.Report, err error) {
		if report != nil {
			printReport(out, report, false)
		}
	})

	if _, err := pipeline.Build(ctx); err != nil {
		logger.Warn(ctx, err, "Initial build reported errors")
	}

	fileWatcher, err := newSiteWatcher(ctx, cfg, logger, func(ctx context.Context, events []watcher.ChangeEvent) error {
		if watchFlags.Verbose {
			for _, event := range events {
				fmt.Fprintf(out, "📁 %s: %s\n", event.Type, event.Path)
			}
		} else {
			fmt.Fprintf(out, "📁 %d file(s) changed\n", len(events))
		}

		report, err := pipeline.Build(ctx)
		if report == nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer fileWatcher.Stop()

	fmt.Fprintf(out, "👀 Watching %s (Ctrl+C to stop)\n", cfg.Site.Source)
	<-ctx.Done()
	fmt.Fprintln(out, "🛑 Stopped watching")
	return nil
}

// newSiteWatcher watches the source tree for page and asset changes, ignoring
// the destination and excluded paths, and starts delivering batches to
// handler.
func newSiteWatcher(ctx context.Context, cfg *config.Config, logger logging.Logger, handler watcher.ChangeHandler) (*watcher.FileWatcher, error) {
	fileWatcher, err := watcher.NewFileWatcher(cfg.Development.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fileWatcher.AddFilter(watcher.DirFilter(cfg.Site.Destination))
	fileWatcher.AddFilter(watcher.ExcludeFilter(cfg.Site.Exclude))
	fileWatcher.AddFilter(watcher.NoTempFilter)
	fileWatcher.AddHandler(handler)

	if err := fileWatcher.AddRecursive(cfg.Site.Source); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Site.Source, err)
	}

	if err := fileWatcher.Start(ctx); err != nil {
		fileWatcher.Stop()
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	return fileWatcher, nil
}
