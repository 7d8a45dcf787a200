package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/johnmschoonover/tmplview/internal/config"
	"github.com/johnmschoonover/tmplview/internal/diagnostics"
	"github.com/johnmschoonover/tmplview/internal/document"
	"github.com/johnmschoonover/tmplview/internal/logging"
	"github.com/johnmschoonover/tmplview/internal/renderer"
	"github.com/johnmschoonover/tmplview/internal/server"
	"github.com/johnmschoonover/tmplview/internal/session"
	"github.com/johnmschoonover/tmplview/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview server",
	Long: `Start the preview server: watches template and context documents,
serves the preview page, and streams render payloads over WebSocket.

Examples:
  tmplview serve
  tmplview serve --port 4000 --watch ./templates`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 7331, "Port to serve on")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringSliceP("watch", "w", nil, "Directories to watch")
	serveCmd.Flags().Int("debounce", 200, "Debounce window for re-renders in milliseconds")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("watch.paths", serveCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("preview.debounce_ms", serveCmd.Flags().Lookup("debounce"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging)

	contexts, err := config.NewContextResolver(cfg.Contexts)
	if err != nil {
		return err
	}

	store := document.NewStore()
	mapper := diagnostics.NewMapper(nil)
	client := renderer.NewClient(engineCommand(cfg), store, logger)
	presenter := session.NewPresenter(cfg.Preview.SanitizeHTML)
	registry := session.NewRegistry(
		client, mapper, store, presenter,
		time.Duration(cfg.Preview.DebounceMs)*time.Millisecond, logger,
	)

	docWatcher, err := watcher.New(registry, logger)
	if err != nil {
		return err
	}
	defer docWatcher.Close()

	docWatcher.AddFilter(watcher.NoHiddenFilter)
	docWatcher.AddFilter(watcher.IgnoreFilter(cfg.Watch.Ignore))
	docWatcher.AddFilter(watcher.ExtensionFilter(cfg.Watch.Extensions))
	for _, path := range cfg.Watch.Paths {
		if err := docWatcher.AddRecursive(path); err != nil {
			return err
		}
	}

	srv := server.New(cfg, registry, store, contexts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error {
		err := docWatcher.Start(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	return g.Wait()
}

// engineCommand resolves the engine argv: the configured command, or this
// binary's own engine subcommand.
func engineCommand(cfg *config.Config) []string {
	if len(cfg.Engine.Command) > 0 {
		return cfg.Engine.Command
	}
	self, err := os.Executable()
	if err != nil {
		self = os.Args[0]
	}
	return []string{self, "engine"}
}
