// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package server wires the dedicated server core together: the transport
// multiplexer, the message router, the player registry, the authentication
// coordinator, and the permission manager, driven by one cooperative tick
// loop.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/driftsea/driftsea/internal/access"
	"github.com/driftsea/driftsea/internal/auth"
	"github.com/driftsea/driftsea/internal/config"
	"github.com/driftsea/driftsea/internal/observability"
	"github.com/driftsea/driftsea/internal/player"
	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/router"
	"github.com/driftsea/driftsea/internal/transport"
)

// HostControl is what the core needs from the host engine (or the
// development transport) to act on connections.
type HostControl interface {
	Disconnect(conn transport.Conn, reason string)
}

// WorldCommands executes server-authority console commands inside the host
// simulation (e.g. spawning world objects).
type WorldCommands interface {
	Execute(identity, command string, args []string) error
}

// eventKind discriminates entries on the main loop queue.
type eventKind int

const (
	evMessage eventKind = iota
	evConnected
	evDisconnected
)

type loopEvent struct {
	kind eventKind
	conn transport.Conn
	msg  protocol.Message
}

// inboundQueueSize bounds the loop queue. Past this the transport is
// outrunning the tick loop and messages are dropped.
const inboundQueueSize = 1024

// Server is the dedicated server core. All player, pending-auth, and
// dispatch state is mutated only from the Run loop; transport callbacks
// merely enqueue events.
type Server struct {
	cfg     config.Config
	version string

	mux     *transport.Mux
	routes  *router.Router
	players *player.Registry
	access  *access.Manager
	coord   *auth.Coordinator
	console *console

	host    HostControl
	world   WorldCommands
	metrics *observability.Metrics

	events chan loopEvent
	ready  chan struct{}
}

// Option configures a Server during construction.
type Option func(*Server)

// WithHostControl installs the host's disconnect primitive.
func WithHostControl(host HostControl) Option {
	return func(s *Server) { s.host = host }
}

// WithWorldCommands installs the host's server-authority command executor.
func WithWorldCommands(world WorldCommands) Option {
	return func(s *Server) { s.world = world }
}

// WithMetrics installs process-level metrics recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New builds the server core over the given channel.
func New(cfg config.Config, version string, channel transport.Channel, opts ...Option) (*Server, error) {
	accessOpts := []access.ManagerOption{}
	if cfg.Server.RosterPath != "" {
		accessOpts = append(accessOpts, access.WithRosterFile(cfg.Server.RosterPath))
	}
	accessMgr, err := access.NewManager(access.Config{
		ConsoleForOperators:    cfg.Console.Operators,
		ConsoleForAdmins:       cfg.Console.Admins,
		ConsoleForPlayers:      cfg.Console.Players,
		AllowedCommands:        cfg.Commands.Allowed,
		RestrictedCommands:     cfg.Commands.Restricted,
		PlayerAllowedCommands:  cfg.Commands.PlayerAllowed,
		GlobalDisabledCommands: cfg.Commands.GlobalDisabled,
	}, accessOpts...)
	if err != nil {
		return nil, err
	}

	coord, err := auth.NewCoordinator(buildBackend(cfg.Auth), accessMgr, auth.Config{
		Enabled:          cfg.AuthEnabled(),
		Timeout:          time.Duration(cfg.Auth.TimeoutSeconds) * time.Second,
		MinClientVersion: cfg.Auth.MinClientVersion,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		version: version,
		mux:     transport.NewMux(channel),
		routes:  router.New("server"),
		players: player.NewRegistry(),
		access:  accessMgr,
		coord:   coord,
		events:  make(chan loopEvent, inboundQueueSize),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	console, err := newConsole(s)
	if err != nil {
		return nil, err
	}
	s.console = console

	s.mux.SetHandler(s.enqueueMessage)
	s.coord.OnCompletion(s.onAuthCompleted)
	s.registerHandlers()
	return s, nil
}

// buildBackend selects the authentication backend for the configured
// provider.
func buildBackend(cfg config.AuthConfig) auth.Backend {
	switch cfg.Provider {
	case protocol.ProviderSecret:
		return auth.NewSecretBackend(cfg.SecretHash)
	case protocol.ProviderPlatformA:
		return auth.NewPlatformABackend(auth.PlatformAConfig{
			Endpoint:       cfg.PlatformA.Endpoint,
			AppID:          cfg.PlatformA.AppID,
			RelyingParty:   cfg.PlatformA.RelyingParty,
			RequestTimeout: time.Duration(cfg.PlatformA.RequestTimeoutSeconds) * time.Second,
		})
	case protocol.ProviderPlatformB:
		return auth.NewPlatformBBackend()
	default:
		return auth.NewDisabledBackend()
	}
}

// Access exposes the permission manager for console-interception glue.
func (s *Server) Access() *access.Manager {
	return s.access
}

// Players exposes the player registry.
func (s *Server) Players() *player.Registry {
	return s.players
}

// Ready is closed once the main loop is running.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports whether the main loop is running.
func (s *Server) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Run drives the single cooperative loop: inbound dispatch, connection
// lifecycle, and the per-frame authentication tick. Blocks until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.coord.Initialize(ctx)

	ticker := time.NewTicker(time.Duration(s.cfg.Server.TickIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	slog.Info("server core running",
		"name", s.cfg.Server.Name,
		"provider", s.coord.Provider(),
		"max_players", s.cfg.Server.MaxPlayers,
	)
	close(s.ready)

	for {
		select {
		case <-ctx.Done():
			s.coord.Shutdown()
			slog.Info("server core stopped")
			return nil
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case <-ticker.C:
			s.coord.Tick()
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, ev loopEvent) {
	switch ev.kind {
	case evConnected:
		s.onConnected(ev.conn)
	case evDisconnected:
		s.onDisconnected(ev.conn)
	case evMessage:
		s.routes.Dispatch(ctx, ev.conn, ev.msg)
	}
}

// enqueueMessage feeds decoded envelopes from the transport onto the main
// loop. Overflow is dropped; the transport must never block on the core.
func (s *Server) enqueueMessage(_ context.Context, conn transport.Conn, msg protocol.Message) {
	s.enqueue(loopEvent{kind: evMessage, conn: conn, msg: msg})
}

func (s *Server) enqueue(ev loopEvent) {
	select {
	case s.events <- ev:
	default:
		slog.Warn("dropping event: main loop queue full",
			"kind", int(ev.kind),
			"conn_id", ev.conn.ID(),
		)
	}
}

// Receive feeds one raw wire string from the channel into the envelope
// decoder. Safe to call from transport goroutines.
func (s *Server) Receive(ctx context.Context, conn transport.Conn, raw string) {
	s.mux.Receive(ctx, conn, raw)
}

// HandleConnected is the transport's connection-accepted callback.
func (s *Server) HandleConnected(conn transport.Conn) {
	s.enqueue(loopEvent{kind: evConnected, conn: conn})
}

// HandleDisconnected is the transport's connection-removed callback.
func (s *Server) HandleDisconnected(conn transport.Conn) {
	s.enqueue(loopEvent{kind: evDisconnected, conn: conn})
}

func (s *Server) onConnected(conn transport.Conn) {
	if s.players.Count() >= s.cfg.Server.MaxPlayers {
		slog.Info("rejecting connection: server full",
			"conn_id", conn.ID(),
			"max_players", s.cfg.Server.MaxPlayers,
		)
		s.disconnect(conn, "Server is full.")
		return
	}

	p, err := s.players.Add(conn, fmt.Sprintf("Player%d", conn.ID()))
	if err != nil {
		slog.Warn("duplicate connection record", "conn_id", conn.ID(), "error", err)
		return
	}

	kind := "remote"
	if conn.IsLocal() {
		kind = "local"
	}
	if s.metrics != nil {
		s.metrics.ConnectionsTotal.WithLabelValues(kind).Inc()
		s.metrics.PlayersOnline.Set(float64(s.players.Count()))
	}

	slog.Info("connection accepted",
		"conn_id", conn.ID(),
		"session_id", p.SessionID.String(),
		"kind", kind,
	)
}

func (s *Server) onDisconnected(conn transport.Conn) {
	p := s.players.Remove(conn.ID())
	if p == nil {
		return
	}
	s.coord.HandlePlayerDisconnected(p)
	if s.metrics != nil {
		s.metrics.PlayersOnline.Set(float64(s.players.Count()))
	}

	slog.Info("connection removed",
		"conn_id", conn.ID(),
		"session_id", p.SessionID.String(),
		"identity", p.Identity,
	)
}

func (s *Server) disconnect(conn transport.Conn, reason string) {
	if s.host == nil {
		slog.Warn("no host control installed; cannot disconnect",
			"conn_id", conn.ID(),
			"reason", reason,
		)
		return
	}
	s.host.Disconnect(conn, reason)
}

// onAuthCompleted notifies the client of its outcome, sends the welcome
// message, and enforces the disconnect instruction.
func (s *Server) onAuthCompleted(p *player.Player, res auth.Result) {
	data, err := protocol.EncodePayload(protocol.AuthResult{
		Success:      res.Successful,
		ErrorMessage: res.Message,
	})
	if err == nil {
		s.mux.SendToClient(p.Conn, protocol.CmdAuthResult, data)
	}

	if res.Successful && !p.Conn.IsLocal() && s.cfg.Server.WelcomeMessage != "" {
		s.mux.SendToClient(p.Conn, protocol.CmdWelcomeMessage, s.cfg.Server.WelcomeMessage)
	}

	if res.ShouldDisconnect {
		s.disconnect(p.Conn, res.Message)
	}
}
