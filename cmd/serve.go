package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/vidembed/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Preview the site with live reload",
	Long: `Build the site, serve the destination directory and rebuild on every
source change. Open pages reload automatically; while a build is failing the
pages show an overlay listing the errors.

Besides the site the server exposes:
  /render/{tag}/{id}   render a single embed
  /preview?id=...      every registered tag rendered with one identifier
  /tags                registered tags as JSON
  /api/build           build status and errors (?file=, ?tag= filter them)
  /health              health check

Examples:
  vidembed serve                  # Serve on server.host:server.port
  vidembed serve -p 8080          # Serve on another port
  vidembed serve --no-watch       # Build once, do not watch`,
	RunE: runServe,
}

var (
	serveFlags   *StandardFlags
	serveNoWatch bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveFlags = AddStandardFlags(serveCmd, "site", "server")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch for changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	overrides := serveFlags.Overrides(cmd)
	if serveNoWatch {
		overrides["development.live_reload"] = false
	}

	cfg, logger, err := loadConfig(cmd, overrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline := newPipeline(cfg, logger, serveFlags.Clean)
	srv := server.New(server.OptionsFromConfig(cfg), cfg.NewRegistry(), pipeline, logger)

	if _, err := pipeline.Build(ctx); err != nil {
		logger.Warn(ctx, err, "Initial build reported errors")
	}

	if !serveNoWatch {
		fileWatcher, err := newSiteWatcher(ctx, cfg, logger, srv.HandleChanges)
		if err != nil {
			return err
		}
		defer fileWatcher.Stop()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "🚀 Serving %s at http://%s\n", cfg.Site.Destination, cfg.Address())
	return srv.Start(ctx)
}
