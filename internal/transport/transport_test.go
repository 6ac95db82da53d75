// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package transport

import (
	"context"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsea/driftsea/internal/protocol"
)

type fakeConn struct {
	id    int64
	local bool
}

func (c *fakeConn) ID() int64     { return c.id }
func (c *fakeConn) IsLocal() bool { return c.local }

type fakeChannel struct {
	sent      []string
	broadcast []string
	toServer  []string
	sendErr   error
}

func (c *fakeChannel) Send(_ Conn, payload string) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeChannel) Broadcast(payload string) error {
	c.broadcast = append(c.broadcast, payload)
	return nil
}

func (c *fakeChannel) SendToServer(payload string) error {
	c.toServer = append(c.toServer, payload)
	return nil
}

func TestMux_SendToClient(t *testing.T) {
	channel := &fakeChannel{}
	mux := NewMux(channel)

	mux.SendToClient(&fakeConn{id: 7}, protocol.CmdWelcomeMessage, "ahoy")

	require.Len(t, channel.sent, 1)
	msg, err := protocol.DecodeMessage(channel.sent[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdWelcomeMessage, msg.Command)
	assert.Equal(t, "ahoy", msg.Data)
}

func TestMux_SendFailureIsDropped(t *testing.T) {
	channel := &fakeChannel{sendErr: oops.Errorf("target not network-active")}
	mux := NewMux(channel)

	// Must not panic or propagate.
	mux.SendToClient(&fakeConn{id: 7}, protocol.CmdAuthChallenge, "{}")

	assert.Empty(t, channel.sent)
}

func TestMux_BroadcastToClients(t *testing.T) {
	channel := &fakeChannel{}
	mux := NewMux(channel)

	mux.BroadcastToClients(protocol.CmdServerData, `{"name":"x"}`)

	require.Len(t, channel.broadcast, 1)
	msg, err := protocol.DecodeMessage(channel.broadcast[0])
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdServerData, msg.Command)
}

func TestMux_SendToServer(t *testing.T) {
	channel := &fakeChannel{}
	mux := NewMux(channel)

	mux.SendToServer(protocol.CmdClientReady, "")

	require.Len(t, channel.toServer, 1)
}

func TestMux_ReceiveForwardsToHandler(t *testing.T) {
	mux := NewMux(&fakeChannel{})

	var got []protocol.Message
	mux.SetHandler(func(_ context.Context, _ Conn, msg protocol.Message) {
		got = append(got, msg)
	})

	raw, err := protocol.Message{Command: protocol.CmdClientReady, Data: ""}.Encode()
	require.NoError(t, err)

	mux.Receive(t.Context(), &fakeConn{id: 1}, raw)

	require.Len(t, got, 1)
	assert.Equal(t, protocol.CmdClientReady, got[0].Command)
}

func TestMux_ReceiveDropsMalformed(t *testing.T) {
	mux := NewMux(&fakeChannel{})

	called := false
	mux.SetHandler(func(_ context.Context, _ Conn, _ protocol.Message) {
		called = true
	})

	mux.Receive(t.Context(), &fakeConn{id: 1}, "{garbage")

	assert.False(t, called)
}

func TestMux_ReceiveWithoutHandlerDoesNotPanic(t *testing.T) {
	mux := NewMux(&fakeChannel{})

	raw, err := protocol.Message{Command: protocol.CmdClientReady}.Encode()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		mux.Receive(t.Context(), &fakeConn{id: 1}, raw)
	})
}
