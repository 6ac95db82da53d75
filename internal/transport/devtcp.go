// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package transport

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
)

// ConnHooks receives connection lifecycle notifications from a channel
// implementation. Inside the host engine these arrive from the engine's own
// connection callbacks; the development listener raises them itself.
type ConnHooks interface {
	HandleConnected(conn Conn)
	HandleDisconnected(conn Conn)
}

// RawReceiver accepts inbound wire strings. Normally Mux.Receive.
type RawReceiver func(ctx context.Context, conn Conn, raw string)

// DevListener is a newline-delimited TCP implementation of Channel, used
// when the core runs standalone instead of inside the host engine. Each
// line is one wire envelope. Not intended for production traffic.
type DevListener struct {
	addr     string
	hooks    ConnHooks
	receiver RawReceiver

	mu       sync.RWMutex
	listener net.Listener
	conns    map[int64]*devConn
	nextID   atomic.Int64
}

// NewDevListener creates a development TCP listener.
func NewDevListener(addr string, hooks ConnHooks, receiver RawReceiver) *DevListener {
	return &DevListener{
		addr:     addr,
		hooks:    hooks,
		receiver: receiver,
		conns:    make(map[int64]*devConn),
	}
}

// Addr returns the bound listen address, or "" before Run.
func (l *DevListener) Addr() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.listener == nil {
		return ""
	}
	return l.listener.Addr().String()
}

// Run starts accepting connections and blocks until the context is
// cancelled.
func (l *DevListener) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", l.addr)
	if err != nil {
		return oops.Code("TRANSPORT_LISTEN_FAILED").
			With("addr", l.addr).
			Wrap(err)
	}

	l.mu.Lock()
	l.listener = listener
	l.mu.Unlock()

	slog.Info("development transport listening", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		netConn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				l.closeAll()
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}

		conn := &devConn{
			id:      l.nextID.Add(1),
			netConn: netConn,
			writer:  bufio.NewWriter(netConn),
		}

		l.mu.Lock()
		l.conns[conn.id] = conn
		l.mu.Unlock()

		l.hooks.HandleConnected(conn)
		go l.readLoop(ctx, conn)
	}
}

func (l *DevListener) readLoop(ctx context.Context, conn *devConn) {
	defer func() {
		l.mu.Lock()
		delete(l.conns, conn.id)
		l.mu.Unlock()

		if err := conn.netConn.Close(); err != nil {
			slog.Debug("error closing connection", "conn_id", conn.id, "error", err)
		}
		l.hooks.HandleDisconnected(conn)
	}()

	scanner := bufio.NewScanner(conn.netConn)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	for scanner.Scan() {
		l.receiver(ctx, conn, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		slog.Debug("connection read ended", "conn_id", conn.id, "error", err)
	}
}

func (l *DevListener) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, conn := range l.conns {
		if err := conn.netConn.Close(); err != nil {
			slog.Debug("error closing connection", "conn_id", id, "error", err)
		}
	}
}

// Send delivers one wire string to one connection.
func (l *DevListener) Send(conn Conn, payload string) error {
	l.mu.RLock()
	target, ok := l.conns[conn.ID()]
	l.mu.RUnlock()
	if !ok {
		return oops.Code("TRANSPORT_CONN_GONE").
			With("conn_id", conn.ID()).
			Errorf("connection %d is not active", conn.ID())
	}
	return target.writeLine(payload)
}

// Broadcast delivers one wire string to every connection.
func (l *DevListener) Broadcast(payload string) error {
	l.mu.RLock()
	conns := make([]*devConn, 0, len(l.conns))
	for _, c := range l.conns {
		conns = append(conns, c)
	}
	l.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeLine(payload); err != nil {
			slog.Warn("broadcast write failed", "conn_id", c.id, "error", err)
		}
	}
	return nil
}

// SendToServer is not available on the listening side.
func (l *DevListener) SendToServer(string) error {
	return oops.Code("TRANSPORT_WRONG_SIDE").
		Errorf("SendToServer is only available on a connecting client")
}

// Disconnect forcibly closes one connection.
func (l *DevListener) Disconnect(conn Conn, reason string) {
	l.mu.RLock()
	target, ok := l.conns[conn.ID()]
	l.mu.RUnlock()
	if !ok {
		return
	}
	slog.Info("disconnecting client", "conn_id", conn.ID(), "reason", reason)
	if err := target.netConn.Close(); err != nil {
		slog.Debug("error closing connection", "conn_id", conn.ID(), "error", err)
	}
}

// devConn is one accepted development connection.
type devConn struct {
	id      int64
	netConn net.Conn

	writeMu sync.Mutex
	writer  *bufio.Writer
}

// ID returns the listener-assigned client id.
func (c *devConn) ID() int64 { return c.id }

// IsLocal reports whether the peer is a loopback address.
func (c *devConn) IsLocal() bool {
	host, _, err := net.SplitHostPort(c.netConn.RemoteAddr().String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (c *devConn) writeLine(payload string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.writer.WriteString(payload + "\n"); err != nil {
		return oops.Code("TRANSPORT_WRITE_FAILED").
			With("conn_id", c.id).
			Wrap(err)
	}
	if err := c.writer.Flush(); err != nil {
		return oops.Code("TRANSPORT_WRITE_FAILED").
			With("conn_id", c.id).
			Wrap(err)
	}
	return nil
}
