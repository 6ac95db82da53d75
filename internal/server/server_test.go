// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package server

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/driftsea/driftsea/internal/auth"
	"github.com/driftsea/driftsea/internal/config"
	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeConn struct {
	id    int64
	local bool
}

func (f fakeConn) ID() int64     { return f.id }
func (f fakeConn) IsLocal() bool { return f.local }

type fakeChannel struct {
	mu   sync.Mutex
	sent map[int64][]protocol.Message
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{sent: make(map[int64][]protocol.Message)}
}

func (c *fakeChannel) Send(conn transport.Conn, payload string) error {
	msg, err := protocol.DecodeMessage(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[conn.ID()] = append(c.sent[conn.ID()], msg)
	return nil
}

func (c *fakeChannel) Broadcast(string) error { return nil }

func (c *fakeChannel) SendToServer(string) error {
	return fmt.Errorf("server side cannot send to server")
}

func (c *fakeChannel) messagesFor(connID int64) []protocol.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Message, len(c.sent[connID]))
	copy(out, c.sent[connID])
	return out
}

func (c *fakeChannel) lastFor(connID int64, command string) (protocol.Message, bool) {
	var found protocol.Message
	ok := false
	for _, msg := range c.messagesFor(connID) {
		if msg.Command == command {
			found = msg
			ok = true
		}
	}
	return found, ok
}

type disconnection struct {
	connID int64
	reason string
}

type fakeHost struct {
	mu           sync.Mutex
	disconnected []disconnection
}

func (h *fakeHost) Disconnect(conn transport.Conn, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected = append(h.disconnected, disconnection{connID: conn.ID(), reason: reason})
}

func (h *fakeHost) all() []disconnection {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]disconnection, len(h.disconnected))
	copy(out, h.disconnected)
	return out
}

type worldCall struct {
	identity string
	command  string
	args     []string
}

type fakeWorld struct {
	calls []worldCall
	err   error
}

func (w *fakeWorld) Execute(identity, command string, args []string) error {
	w.calls = append(w.calls, worldCall{identity: identity, command: command, args: args})
	return w.err
}

type harness struct {
	server  *Server
	channel *fakeChannel
	host    *fakeHost
	world   *fakeWorld
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	channel := newFakeChannel()
	host := &fakeHost{}
	world := &fakeWorld{}

	s, err := New(cfg, "1.2.0", channel,
		WithHostControl(host),
		WithWorldCommands(world),
	)
	require.NoError(t, err)

	return &harness{server: s, channel: channel, host: host, world: world}
}

// deliver pushes one inbound envelope through the dispatch path
// synchronously, bypassing the loop queue.
func (h *harness) deliver(conn transport.Conn, command, data string) {
	h.server.handleEvent(context.Background(), loopEvent{
		kind: evMessage,
		conn: conn,
		msg:  protocol.Message{Command: command, Data: data},
	})
}

func (h *harness) connect(t *testing.T, conn transport.Conn) {
	t.Helper()
	h.server.onConnected(conn)
	_, ok := h.server.players.Get(conn.ID())
	require.True(t, ok)
}

// ready connects and announces a client, completing the handshake when
// authentication is disabled.
func (h *harness) ready(t *testing.T, conn transport.Conn, name string) {
	t.Helper()
	h.connect(t, conn)
	h.deliver(conn, protocol.CmdClientReady, name)
}

func decodeData[T any](t *testing.T, msg protocol.Message) T {
	t.Helper()
	var payload T
	require.NoError(t, protocol.DecodePayload(msg.Data, &payload))
	return payload
}

func TestAuthDisabled_ImmediateSuccess(t *testing.T) {
	h := newHarness(t, nil)
	conn := fakeConn{id: 7}

	h.ready(t, conn, "Ada")

	msg, ok := h.channel.lastFor(7, protocol.CmdAuthResult)
	require.True(t, ok)
	res := decodeData[protocol.AuthResult](t, msg)
	assert.True(t, res.Success)

	welcome, ok := h.channel.lastFor(7, protocol.CmdWelcomeMessage)
	require.True(t, ok)
	assert.Equal(t, "Welcome aboard!", welcome.Data)

	p, _ := h.server.players.Get(7)
	assert.True(t, p.IsAuthenticated)
	assert.Equal(t, "Ada", p.Identity)
	assert.Empty(t, h.host.all())
}

func TestSecretHandshake_Success(t *testing.T) {
	hash, err := auth.HashSecret("deep-blue")
	require.NoError(t, err)

	h := newHarness(t, func(c *config.Config) {
		c.Auth.Provider = protocol.ProviderSecret
		c.Auth.SecretHash = hash
	})
	conn := fakeConn{id: 1}

	h.ready(t, conn, "Ada")

	msg, ok := h.channel.lastFor(1, protocol.CmdAuthChallenge)
	require.True(t, ok)
	challenge := decodeData[protocol.AuthChallenge](t, msg)
	assert.Equal(t, protocol.ProviderSecret, challenge.Provider)
	assert.NotEmpty(t, challenge.Nonce)
	assert.Equal(t, 30, challenge.TimeoutSeconds)

	ticket, err := protocol.EncodePayload(protocol.AuthTicket{
		Provider:        challenge.Provider,
		Nonce:           challenge.Nonce,
		ClaimedIdentity: "ada@example",
		Proof:           "deep-blue",
	})
	require.NoError(t, err)
	h.deliver(conn, protocol.CmdAuthResponse, ticket)

	resMsg, ok := h.channel.lastFor(1, protocol.CmdAuthResult)
	require.True(t, ok)
	res := decodeData[protocol.AuthResult](t, resMsg)
	assert.True(t, res.Success)

	p, _ := h.server.players.Get(1)
	assert.Equal(t, "ada@example", p.Identity)
	assert.Empty(t, h.host.all())
}

func TestSecretHandshake_BadProofDisconnects(t *testing.T) {
	hash, err := auth.HashSecret("deep-blue")
	require.NoError(t, err)

	h := newHarness(t, func(c *config.Config) {
		c.Auth.Provider = protocol.ProviderSecret
		c.Auth.SecretHash = hash
	})
	conn := fakeConn{id: 1}

	h.ready(t, conn, "Mallory")
	msg, ok := h.channel.lastFor(1, protocol.CmdAuthChallenge)
	require.True(t, ok)
	challenge := decodeData[protocol.AuthChallenge](t, msg)

	ticket, err := protocol.EncodePayload(protocol.AuthTicket{
		Provider:        challenge.Provider,
		Nonce:           challenge.Nonce,
		ClaimedIdentity: "mallory@example",
		Proof:           "guess",
	})
	require.NoError(t, err)
	h.deliver(conn, protocol.CmdAuthResponse, ticket)

	resMsg, ok := h.channel.lastFor(1, protocol.CmdAuthResult)
	require.True(t, ok)
	res := decodeData[protocol.AuthResult](t, resMsg)
	assert.False(t, res.Success)

	disconnects := h.host.all()
	require.Len(t, disconnects, 1)
	assert.Equal(t, int64(1), disconnects[0].connID)
}

func TestAuthResponse_MalformedPayloadIsTerminal(t *testing.T) {
	hash, err := auth.HashSecret("deep-blue")
	require.NoError(t, err)

	h := newHarness(t, func(c *config.Config) {
		c.Auth.Provider = protocol.ProviderSecret
		c.Auth.SecretHash = hash
	})
	conn := fakeConn{id: 1}

	h.ready(t, conn, "Ada")
	h.deliver(conn, protocol.CmdAuthResponse, "{not json")

	resMsg, ok := h.channel.lastFor(1, protocol.CmdAuthResult)
	require.True(t, ok)
	res := decodeData[protocol.AuthResult](t, resMsg)
	assert.False(t, res.Success)
	require.Len(t, h.host.all(), 1)
}

func TestServerFull_RejectsConnection(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Server.MaxPlayers = 1
	})

	h.server.onConnected(fakeConn{id: 1})
	h.server.onConnected(fakeConn{id: 2})

	assert.Equal(t, 1, h.server.players.Count())
	disconnects := h.host.all()
	require.Len(t, disconnects, 1)
	assert.Equal(t, int64(2), disconnects[0].connID)
}

func TestRequestServerData(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Server.Name = "Shipwreck Cove"
	})
	conn := fakeConn{id: 3}

	h.ready(t, conn, "Ada")
	h.deliver(conn, protocol.CmdRequestServerData, "")

	msg, ok := h.channel.lastFor(3, protocol.CmdServerData)
	require.True(t, ok)
	sd := decodeData[protocol.ServerData](t, msg)
	assert.Equal(t, "Shipwreck Cove", sd.Name)
	assert.Equal(t, "1.2.0", sd.Version)
	assert.Equal(t, 1, sd.PlayerCount)
	assert.Equal(t, 8, sd.MaxPlayers)
}

func TestDisconnect_RemovesRecord(t *testing.T) {
	h := newHarness(t, nil)
	conn := fakeConn{id: 4}

	h.ready(t, conn, "Ada")
	h.server.onDisconnected(conn)

	assert.Equal(t, 0, h.server.players.Count())
	// A second removal for the same connection is a no-op.
	h.server.onDisconnected(conn)
}

func TestRunLoop_HandshakeOverQueue(t *testing.T) {
	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.server.Run(ctx)
	}()

	select {
	case <-h.server.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}
	assert.True(t, h.server.IsReady())

	conn := fakeConn{id: 9}
	h.server.HandleConnected(conn)
	h.server.enqueueMessage(ctx, conn, protocol.Message{Command: protocol.CmdClientReady, Data: "Ada"})

	require.Eventually(t, func() bool {
		_, ok := h.channel.lastFor(9, protocol.CmdAuthResult)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	h.server.HandleDisconnected(conn)
	require.Eventually(t, func() bool {
		return h.server.players.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not stop")
	}
}
