package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spookyvision/semver-server/internal/config"
	"github.com/spookyvision/semver-server/internal/log"
	"github.com/spookyvision/semver-server/internal/registry"
	"github.com/spookyvision/semver-server/internal/server"
	"github.com/spookyvision/semver-server/internal/tracing"
	"github.com/spookyvision/semver-server/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registry server",
	Long: `Run the registry server. The snapshot file is loaded on startup (a
missing or unreadable file starts an empty registry) and written back
exactly once on shutdown.

Example:
  semver-server serve                       # Listen on the configured address
  semver-server serve --addr :7878          # Listen on port 7878
  semver-server serve -s ./registry.json    # Use a local snapshot file`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logging if debug mode enabled (via flag or env var)
	debug := os.Getenv("SEMVER_DEBUG") != "" || cfg.Debug
	if debug {
		logPath := cfg.LogPath
		if logPath == "" {
			logPath = os.Getenv("SEMVER_LOG")
		}
		if logPath == "" {
			logPath = "debug.log"
		}

		cleanup, err := log.Init(logPath)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		defer cleanup()

		// Running in the foreground, so mirror the log feed to stderr
		// alongside the file.
		go mirrorLogs(ctx, os.Stderr)

		log.Info(log.CatConfig, "server starting", "debug", true, "logPath", logPath)
	}

	tracingCfg := cfg.Tracing
	if tracingCfg.Enabled && tracingCfg.Exporter == "file" && tracingCfg.FilePath == "" {
		tracingCfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	repo := registry.Open(cfg.Store)
	log.Info(log.CatStore, "registry opened", "store", cfg.Store, "crates", repo.Len())

	srv, err := server.New(repo, server.Config{
		Addr:               cfg.Addr,
		SearchTTL:          time.Duration(cfg.Search.CacheTTLSeconds) * time.Second,
		DisableSearchCache: cfg.Search.DisableCache,
		Tracer:             provider.Tracer(),
	})
	if err != nil {
		// The snapshot is still written even when the listener fails.
		if closeErr := repo.Close(); closeErr != nil {
			log.ErrorErr(log.CatStore, "saving registry", closeErr)
		}
		return err
	}

	// The server holds no state of its own; the snapshot only exists in
	// memory, so a changed file under a running server means lost work.
	var storeWatcher *watcher.Watcher
	if cfg.WatchStore {
		storeWatcher, err = watcher.New(watcher.DefaultConfig(cfg.Store))
		if err != nil {
			log.ErrorErr(log.CatWatch, "creating store watcher", err)
		} else if changes, startErr := storeWatcher.Start(); startErr != nil {
			log.ErrorErr(log.CatWatch, "starting store watcher", startErr)
		} else {
			go func() {
				for range changes {
					log.Warn(log.CatWatch, "store file changed on disk; shutdown will overwrite it", "store", cfg.Store)
				}
			}()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	fmt.Printf("semver-server listening on %s (store: %s)\n", srv.Addr(), cfg.Store)
	fmt.Println("Press Ctrl+C to stop")

	var runErr error
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived %s, shutting down...\n", sig)
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatServer, "stopping server", err)
	}

	if storeWatcher != nil {
		if err := storeWatcher.Stop(); err != nil {
			log.ErrorErr(log.CatWatch, "stopping store watcher", err)
		}
	}

	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatTrace, "shutting down tracing", err)
	}

	// Write the snapshot back exactly once, whatever path got us here.
	if err := repo.Close(); err != nil {
		if runErr == nil {
			runErr = err
		}
		log.ErrorErr(log.CatStore, "saving registry", err)
	}

	fmt.Println("Server stopped")
	return runErr
}

// mirrorLogs copies the log feed to w until ctx is cancelled.
func mirrorLogs(ctx context.Context, w io.Writer) {
	for entry := range log.Subscribe(ctx) {
		fmt.Fprint(w, entry.Payload)
	}
}

