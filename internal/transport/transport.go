// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package transport multiplexes named application messages over the single
// remote-call slot the host engine exposes. The host owns connection
// management and reliable ordered delivery; this package only wraps and
// unwraps envelopes.
package transport

import (
	"context"
	"log/slog"

	"github.com/driftsea/driftsea/internal/protocol"
)

// Conn is the host engine's handle for one remote connection.
type Conn interface {
	// ID is the host-assigned numeric client id, stable for the life of
	// the connection.
	ID() int64

	// IsLocal reports whether the connection originates from the server
	// process itself (loopback or a locally hosted client).
	IsLocal() bool
}

// Channel is the single registered remote-call slot. Implementations are
// supplied by the host integration layer (or by the development TCP
// listener when running standalone).
type Channel interface {
	// Send delivers a wire string to one connection.
	Send(conn Conn, payload string) error

	// Broadcast delivers a wire string to every connection.
	Broadcast(payload string) error

	// SendToServer delivers a wire string to the server. Only meaningful
	// when the process is running as a connecting client.
	SendToServer(payload string) error
}

// InboundHandler receives decoded envelopes from the channel.
type InboundHandler func(ctx context.Context, conn Conn, msg protocol.Message)

// Mux wraps named commands into envelopes for the channel and unwraps
// inbound envelopes for the router. Send failures and malformed inbound
// envelopes are logged and dropped; they never propagate.
type Mux struct {
	channel Channel
	handler InboundHandler
}

// NewMux creates a multiplexer over the given channel.
func NewMux(channel Channel) *Mux {
	return &Mux{channel: channel}
}

// SetHandler installs the inbound envelope handler. Must be called before
// the channel starts delivering messages.
func (m *Mux) SetHandler(handler InboundHandler) {
	m.handler = handler
}

// SendToClient wraps a command and sends it to one connection.
func (m *Mux) SendToClient(conn Conn, command, data string) {
	raw, err := protocol.Message{Command: command, Data: data}.Encode()
	if err != nil {
		slog.Error("dropping outbound message: encode failed",
			"command", command,
			"conn_id", conn.ID(),
			"error", err,
		)
		return
	}
	if err := m.channel.Send(conn, raw); err != nil {
		slog.Warn("dropping outbound message: send failed",
			"command", command,
			"conn_id", conn.ID(),
			"error", err,
		)
	}
}

// BroadcastToClients wraps a command and sends it to every connection.
func (m *Mux) BroadcastToClients(command, data string) {
	raw, err := protocol.Message{Command: command, Data: data}.Encode()
	if err != nil {
		slog.Error("dropping broadcast: encode failed",
			"command", command,
			"error", err,
		)
		return
	}
	if err := m.channel.Broadcast(raw); err != nil {
		slog.Warn("dropping broadcast: send failed",
			"command", command,
			"error", err,
		)
	}
}

// SendToServer wraps a command and sends it to the server. Client-side only.
func (m *Mux) SendToServer(command, data string) {
	raw, err := protocol.Message{Command: command, Data: data}.Encode()
	if err != nil {
		slog.Error("dropping outbound message: encode failed",
			"command", command,
			"error", err,
		)
		return
	}
	if err := m.channel.SendToServer(raw); err != nil {
		slog.Warn("dropping outbound message: send failed",
			"command", command,
			"error", err,
		)
	}
}

// Receive unwraps an inbound wire string and forwards it to the handler.
// Malformed envelopes are logged and dropped so one bad message can never
// take down the channel.
func (m *Mux) Receive(ctx context.Context, conn Conn, raw string) {
	msg, err := protocol.DecodeMessage(raw)
	if err != nil {
		slog.Warn("dropping inbound message: malformed envelope",
			"conn_id", conn.ID(),
			"error", err,
		)
		return
	}
	if m.handler == nil {
		slog.Warn("dropping inbound message: no handler installed",
			"command", msg.Command,
			"conn_id", conn.ID(),
		)
		return
	}
	m.handler(ctx, conn, msg)
}
