// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package router dispatches named application messages to registered
// handlers. The server and the client each own one dispatch table.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

var tracer = otel.Tracer("driftsea/router")

// Handler processes one inbound message's payload.
type Handler func(ctx context.Context, conn transport.Conn, data string) error

// Router maps command names to handlers for one side of the protocol.
// It is thread-safe for concurrent access.
type Router struct {
	side     string
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates a router. side labels logs and metrics ("server" or
// "client").
func New(side string) *Router {
	return &Router{
		side:     side,
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for a command. If the command is already
// registered it is overwritten and a warning is logged.
func (r *Router) Register(command string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[command]; ok {
		slog.Warn("command handler conflict: overwriting existing handler",
			"side", r.side,
			"command", command,
		)
	}
	r.handlers[command] = handler
}

// Commands returns the registered command names.
func (r *Router) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	return out
}

// Dispatch routes one envelope to its handler. Unknown commands are logged
// and dropped. Handler errors and panics are caught and logged per message;
// one failing message never halts the router or the channel.
func (r *Router) Dispatch(ctx context.Context, conn transport.Conn, msg protocol.Message) {
	r.mu.RLock()
	handler, ok := r.handlers[msg.Command]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("dropping message: unknown command",
			"side", r.side,
			"command", msg.Command,
			"conn_id", conn.ID(),
		)
		Dispatched.WithLabelValues(r.side, msg.Command, StatusNotFound).Inc()
		return
	}

	ctx, span := tracer.Start(ctx, "router.dispatch",
		trace.WithAttributes(
			attribute.String("message.command", msg.Command),
			attribute.String("router.side", r.side),
			attribute.Int64("conn.id", conn.ID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := r.invoke(ctx, conn, handler, msg)
	Duration.WithLabelValues(r.side, msg.Command).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("message handler failed",
			"side", r.side,
			"command", msg.Command,
			"conn_id", conn.ID(),
			"error", err,
		)
		Dispatched.WithLabelValues(r.side, msg.Command, StatusError).Inc()
		return
	}
	Dispatched.WithLabelValues(r.side, msg.Command, StatusSuccess).Inc()
}

// invoke runs a handler, converting a panic into an error so a broken
// handler cannot take down the dispatch loop.
func (r *Router) invoke(ctx context.Context, conn transport.Conn, handler Handler, msg protocol.Message) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = panicError(msg.Command, recovered)
		}
	}()
	return handler(ctx, conn, msg.Data)
}
