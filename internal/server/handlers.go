// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package server

import (
	"context"
	"strings"

	"github.com/samber/oops"

	"github.com/driftsea/driftsea/internal/player"
	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

func (s *Server) registerHandlers() {
	s.routes.Register(protocol.CmdClientReady, s.handleClientReady)
	s.routes.Register(protocol.CmdAuthResponse, s.handleAuthResponse)
	s.routes.Register(protocol.CmdAdminConsole, s.handleAdminConsole)
	s.routes.Register(protocol.CmdRequestServerData, s.handleRequestServerData)
}

func (s *Server) requirePlayer(conn transport.Conn) (*player.Player, error) {
	p, ok := s.players.Get(conn.ID())
	if !ok {
		return nil, oops.Code("SERVER_NO_PLAYER_RECORD").
			With("conn_id", conn.ID()).
			Errorf("no player record for connection %d", conn.ID())
	}
	return p, nil
}

// handleClientReady starts the handshake. The payload optionally carries the
// client's display name.
func (s *Server) handleClientReady(_ context.Context, conn transport.Conn, data string) error {
	p, err := s.requirePlayer(conn)
	if err != nil {
		return err
	}

	if name := strings.TrimSpace(data); name != "" {
		p.DisplayName = name
	}

	challenge, err := s.coord.CreateChallenge(p)
	if err != nil {
		return err
	}
	if challenge == nil {
		// Authenticated immediately (disabled auth or bypass); the
		// completion observer has already sent the result.
		return nil
	}

	payload, err := protocol.EncodePayload(challenge)
	if err != nil {
		return err
	}
	s.mux.SendToClient(conn, protocol.CmdAuthChallenge, payload)
	return nil
}

// handleAuthResponse feeds a client ticket into the coordinator. A payload
// that does not parse is submitted as a missing ticket, which is a terminal
// failure.
func (s *Server) handleAuthResponse(_ context.Context, conn transport.Conn, data string) error {
	p, err := s.requirePlayer(conn)
	if err != nil {
		return err
	}

	var ticket protocol.AuthTicket
	if decodeErr := protocol.DecodePayload(data, &ticket); decodeErr != nil {
		s.coord.SubmitTicket(p, nil)
		return nil
	}
	s.coord.SubmitTicket(p, &ticket)
	return nil
}

// handleRequestServerData answers with a public snapshot of the server.
func (s *Server) handleRequestServerData(_ context.Context, conn transport.Conn, _ string) error {
	payload, err := protocol.EncodePayload(protocol.ServerData{
		Name:        s.cfg.Server.Name,
		Version:     s.version,
		PlayerCount: s.players.Count(),
		MaxPlayers:  s.cfg.Server.MaxPlayers,
	})
	if err != nil {
		return err
	}
	s.mux.SendToClient(conn, protocol.CmdServerData, payload)
	return nil
}

// handleAdminConsole runs one remote console line through the permission
// manager and either executes it server-side or relays it back to the
// invoking client.
func (s *Server) handleAdminConsole(_ context.Context, conn transport.Conn, data string) error {
	p, err := s.requirePlayer(conn)
	if err != nil {
		return err
	}
	return s.console.submit(p, data)
}
