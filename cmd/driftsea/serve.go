// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/driftsea/driftsea/internal/config"
	"github.com/driftsea/driftsea/internal/logging"
	"github.com/driftsea/driftsea/internal/observability"
	"github.com/driftsea/driftsea/internal/server"
	"github.com/driftsea/driftsea/internal/transport"
)

// NewServeCmd creates the serve subcommand. Flags share key names with the
// config file so they overlay it directly.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dedicated server core",
		Long: `Start the dedicated server core with the development TCP
transport. Inside the host engine the core is embedded instead and the
engine supplies the message channel.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configFile, cmd.Flags())
		},
	}

	cmd.Flags().String("server.name", "", "server name shown to clients")
	cmd.Flags().String("server.listen_addr", "", "development transport listen address")
	cmd.Flags().String("server.metrics_addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Int("server.max_players", 0, "maximum simultaneous players")
	cmd.Flags().String("server.log_format", "", "log format (json or text)")
	cmd.Flags().String("server.roster_path", "", "rank roster file path")
	cmd.Flags().String("auth.provider", "", "auth provider (none, secret, platform_a, platform_b)")
	cmd.Flags().Int("auth.timeout_seconds", 0, "challenge answer deadline in seconds")

	return cmd
}

func runServe(ctx context.Context, configPath string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(configPath, changedFlags(flags))
	if err != nil {
		return err
	}

	logging.SetDefault("driftsea", version, cfg.Server.LogFormat)

	slog.Info("starting dedicated server",
		"name", cfg.Server.Name,
		"listen_addr", cfg.Server.ListenAddr,
		"provider", cfg.Auth.Provider,
	)

	// The listener needs the server's callbacks and the server needs the
	// listener as its channel, so the hooks are bound through a relay after
	// both exist.
	relay := &hookRelay{}
	listener := transport.NewDevListener(cfg.Server.ListenAddr, relay, relay.receive)

	opts := []server.Option{server.WithHostControl(listener)}

	var obsServer *observability.Server
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			s := relay.get()
			return s != nil && s.IsReady()
		})
		opts = append(opts, server.WithMetrics(obsServer.Metrics()))
	}

	srv, err := server.New(cfg, version, listener, opts...)
	if err != nil {
		return err
	}
	relay.bind(srv)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if obsServer != nil {
		obsErrCh, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- listener.Run(ctx) }()
	go func() { errCh <- srv.Run(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
			cancel()
			drainErrors(errCh, 1)
			stopObservability(obsServer)
			return err
		}
	}
	cancel()
	drainErrors(errCh, 1)
	stopObservability(obsServer)

	slog.Info("shutdown complete")
	return nil
}

// changedFlags returns only the flags the user actually set, so unset flag
// zero values never mask config file entries.
func changedFlags(flags *pflag.FlagSet) *pflag.FlagSet {
	if flags == nil {
		return nil
	}
	out := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.Visit(func(f *pflag.Flag) {
		out.AddFlag(f)
	})
	return out
}

func drainErrors(errCh <-chan error, n int) {
	for i := 0; i < n; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				slog.Warn("component stopped with error", "error", err)
			}
		case <-time.After(5 * time.Second):
			return
		}
	}
}

func stopObservability(obsServer *observability.Server) {
	if obsServer == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obsServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels the run context when a background server
// fails, so one component failure shuts the whole process down.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", name,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}

// hookRelay forwards transport callbacks to the server once it exists,
// breaking the listener/server construction cycle.
type hookRelay struct {
	mu     sync.RWMutex
	target *server.Server
}

func (r *hookRelay) bind(s *server.Server) {
	r.mu.Lock()
	r.target = s
	r.mu.Unlock()
}

func (r *hookRelay) get() *server.Server {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

func (r *hookRelay) HandleConnected(conn transport.Conn) {
	if s := r.get(); s != nil {
		s.HandleConnected(conn)
	}
}

func (r *hookRelay) HandleDisconnected(conn transport.Conn) {
	if s := r.get(); s != nil {
		s.HandleDisconnected(conn)
	}
}

func (r *hookRelay) receive(ctx context.Context, conn transport.Conn, raw string) {
	if s := r.get(); s != nil {
		s.Receive(ctx, conn, raw)
	}
}
