package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zhubert/plural-core/logger"

	"github.com/zhubert/plural-mcp/internal/config"
	"github.com/zhubert/plural-mcp/internal/mcp"
	"github.com/zhubert/plural-mcp/internal/model"
	"github.com/zhubert/plural-mcp/internal/settings"
	"github.com/zhubert/plural-mcp/internal/tracker"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Own the settings and apply status reports",
	GroupID: "status",
	Long: `Takes ownership of the settings file and listens on the status socket
for connection status reports from the MCP process supervisor. Each report is
applied in the order received and the settings are saved after every change.

While serve runs, add, edit, remove, enable and disable send their changes
over the same socket, so configuration changes and status reports are applied
one at a time in the order received.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	defer logger.Close()

	log := newLogger(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down gracefully", "signal", sig)
			cancel()
		case <-ctx.Done():
			return
		}
		// On second signal, force exit
		sig := <-sigCh
		log.Warn("received second signal, forcing exit", "signal", sig)
		os.Exit(1)
	}()

	return serveWithContext(ctx, log, nil)
}

// serveWithContext runs until ctx is cancelled. If ready is non-nil it
// receives the socket path once the listener accepts connections.
func serveWithContext(ctx context.Context, log *slog.Logger, ready chan<- string) error {
	path, backend, err := resolveSettings()
	if err != nil {
		return err
	}
	log = log.With("settings", path)

	lock, err := settings.AcquireLock(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn("failed to release lock", "error", err)
		}
	}()

	store, err := settings.Open(path, backend)
	if err != nil {
		return err
	}
	defer store.Close()

	cfg, err := config.Load(store)
	if err != nil {
		return err
	}
	config.AutoSave(cfg, log)
	cfg.Subscribe(func(servers []model.MCPServer) {
		log.Debug("settings changed", "servers", len(servers))
	})

	tr := tracker.New(cfg, log)
	srv, err := mcp.NewSocketServer(resolveSocketPath(), tr, log)
	if err != nil {
		return fmt.Errorf("failed to start status socket: %w", err)
	}
	srv.Start()
	srv.WaitReady()

	log.Info("serving", "servers", len(cfg.List()), "socket", srv.SocketPath())

	// The queue outlives ctx so changes already accepted by the socket are
	// applied before shutdown. Close ends it once drained.
	trackerDone := make(chan struct{})
	go func() {
		tr.Run(context.Background())
		close(trackerDone)
	}()

	if ready != nil {
		ready <- srv.SocketPath()
	}

	<-ctx.Done()

	if err := srv.Close(); err != nil {
		log.Warn("failed to close status socket", "error", err)
	}
	tr.Close()
	<-trackerDone

	stats := tr.Stats()
	log.Info("stopped", "applied", stats.Applied, "dropped", stats.Dropped, "rejected", stats.Rejected)
	return nil
}
