// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package client is the connecting-player side of the protocol: it answers
// authentication challenges, executes relayed console lines with the local
// player context, and surfaces server notices.
package client

import (
	"context"
	"log/slog"
	"sync"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/router"
	"github.com/driftsea/driftsea/internal/transport"
)

// CredentialSource produces the proof for an authentication challenge.
// Implementations wrap the platform SDK (or the shared secret prompt).
type CredentialSource interface {
	// Ticket answers one challenge. The returned ticket needs Provider,
	// Nonce, and ClientVersion filled in by the caller; the source supplies
	// ClaimedIdentity and Proof.
	Ticket(challenge protocol.AuthChallenge) (identity, proof string, err error)
}

// ConsoleExecutor runs one console line in the local game process.
type ConsoleExecutor interface {
	Execute(line string) error
}

// Client is the client-side protocol core. It owns the client dispatch
// table and the outbound half of the channel.
type Client struct {
	mux     *transport.Mux
	routes  *router.Router
	creds   CredentialSource
	console ConsoleExecutor
	version string

	mu         sync.Mutex
	authResult *protocol.AuthResult
	serverData *protocol.ServerData
	welcome    string
}

// serverConn stands in for the server endpoint on the client side, where
// inbound messages have no per-connection handle.
type serverConn struct{}

func (serverConn) ID() int64     { return 0 }
func (serverConn) IsLocal() bool { return false }

// New creates the client core over the given channel.
func New(channel transport.Channel, creds CredentialSource, console ConsoleExecutor, version string) *Client {
	c := &Client{
		mux:     transport.NewMux(channel),
		routes:  router.New("client"),
		creds:   creds,
		console: console,
		version: version,
	}
	c.mux.SetHandler(func(ctx context.Context, conn transport.Conn, msg protocol.Message) {
		c.routes.Dispatch(ctx, conn, msg)
	})

	c.routes.Register(protocol.CmdExecConsole, c.handleExecConsole)
	c.routes.Register(protocol.CmdAuthChallenge, c.handleAuthChallenge)
	c.routes.Register(protocol.CmdAuthResult, c.handleAuthResult)
	c.routes.Register(protocol.CmdServerData, c.handleServerData)
	c.routes.Register(protocol.CmdWelcomeMessage, c.handleWelcomeMessage)
	return c
}

// Receive feeds one raw wire string from the channel into the dispatch
// table.
func (c *Client) Receive(ctx context.Context, raw string) {
	c.mux.Receive(ctx, serverConn{}, raw)
}

// Ready announces the client to the server, optionally with a display name,
// and triggers the authentication handshake.
func (c *Client) Ready(displayName string) {
	c.mux.SendToServer(protocol.CmdClientReady, displayName)
}

// SendConsole submits one console line for remote execution.
func (c *Client) SendConsole(line string) {
	c.mux.SendToServer(protocol.CmdAdminConsole, line)
}

// RequestServerData asks the server for its public snapshot.
func (c *Client) RequestServerData() {
	c.mux.SendToServer(protocol.CmdRequestServerData, "")
}

// AuthResult returns the last authentication outcome, if any.
func (c *Client) AuthResult() (protocol.AuthResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authResult == nil {
		return protocol.AuthResult{}, false
	}
	return *c.authResult, true
}

// ServerData returns the last received server snapshot, if any.
func (c *Client) ServerData() (protocol.ServerData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.serverData == nil {
		return protocol.ServerData{}, false
	}
	return *c.serverData, true
}

// Welcome returns the last received welcome message.
func (c *Client) Welcome() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

// handleExecConsole runs a relayed console line locally, so it executes
// with this player's context.
func (c *Client) handleExecConsole(_ context.Context, _ transport.Conn, data string) error {
	if c.console == nil {
		slog.Warn("dropping exec_console: no local console executor")
		return nil
	}
	return c.console.Execute(data)
}

// handleAuthChallenge answers a challenge with a ticket produced by the
// credential source. A source failure is logged; the server's timeout sweep
// will conclude the attempt.
func (c *Client) handleAuthChallenge(_ context.Context, _ transport.Conn, data string) error {
	var challenge protocol.AuthChallenge
	if err := protocol.DecodePayload(data, &challenge); err != nil {
		return err
	}

	if c.creds == nil {
		slog.Warn("dropping auth challenge: no credential source",
			"provider", challenge.Provider,
		)
		return nil
	}

	identity, proof, err := c.creds.Ticket(challenge)
	if err != nil {
		slog.Error("credential source failed to answer challenge",
			"provider", challenge.Provider,
			"error", err,
		)
		return err
	}

	payload, err := protocol.EncodePayload(protocol.AuthTicket{
		Provider:        challenge.Provider,
		Nonce:           challenge.Nonce,
		ClaimedIdentity: identity,
		Proof:           proof,
		ClientVersion:   c.version,
	})
	if err != nil {
		return err
	}
	c.mux.SendToServer(protocol.CmdAuthResponse, payload)
	return nil
}

func (c *Client) handleAuthResult(_ context.Context, _ transport.Conn, data string) error {
	var res protocol.AuthResult
	if err := protocol.DecodePayload(data, &res); err != nil {
		return err
	}

	c.mu.Lock()
	c.authResult = &res
	c.mu.Unlock()

	if res.Success {
		slog.Info("authenticated with server")
	} else {
		slog.Warn("authentication failed", "reason", res.ErrorMessage)
	}
	return nil
}

func (c *Client) handleServerData(_ context.Context, _ transport.Conn, data string) error {
	var sd protocol.ServerData
	if err := protocol.DecodePayload(data, &sd); err != nil {
		return err
	}

	c.mu.Lock()
	c.serverData = &sd
	c.mu.Unlock()
	return nil
}

func (c *Client) handleWelcomeMessage(_ context.Context, _ transport.Conn, data string) error {
	c.mu.Lock()
	c.welcome = data
	c.mu.Unlock()

	slog.Info("server welcome", "message", data)
	return nil
}
