// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsea/driftsea/internal/auth"
	"github.com/driftsea/driftsea/internal/config"
	"github.com/driftsea/driftsea/internal/protocol"
)

// consoleHarness builds a server with auth disabled and an operator named
// Ada already connected, so console lines can be exercised directly.
func consoleHarness(t *testing.T, mutate func(*config.Config)) (*harness, fakeConn) {
	t.Helper()
	h := newHarness(t, mutate)
	h.server.access.AddOperator("Ada")

	conn := fakeConn{id: 1}
	h.ready(t, conn, "Ada")

	p, _ := h.server.players.Get(1)
	require.True(t, p.IsAuthenticated)
	return h, conn
}

func TestConsole_RelaysToInvokingClient(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	h.deliver(conn, protocol.CmdAdminConsole, "give_item sword 1")

	msg, ok := h.channel.lastFor(1, protocol.CmdExecConsole)
	require.True(t, ok)
	assert.Equal(t, "give_item sword 1", msg.Data)
	assert.Empty(t, h.world.calls)
}

func TestConsole_ServerAuthorityGoesToWorld(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	h.deliver(conn, protocol.CmdAdminConsole, "spawn_raft 10 20")

	require.Len(t, h.world.calls, 1)
	call := h.world.calls[0]
	assert.Equal(t, "Ada", call.identity)
	assert.Equal(t, "spawn_raft", call.command)
	assert.Equal(t, []string{"10", "20"}, call.args)

	// Server-authority lines are never relayed back.
	_, relayed := h.channel.lastFor(1, protocol.CmdExecConsole)
	assert.False(t, relayed)
}

func TestConsole_RosterCommands(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	h.deliver(conn, protocol.CmdAdminConsole, "op Bob")
	assert.True(t, h.server.access.IsOperator("Bob"))

	h.deliver(conn, protocol.CmdAdminConsole, "deop Bob")
	assert.False(t, h.server.access.IsOperator("Bob"))

	h.deliver(conn, protocol.CmdAdminConsole, "admin Bob")
	assert.True(t, h.server.access.IsAdmin("Bob"))

	h.deliver(conn, protocol.CmdAdminConsole, "deadmin Bob")
	assert.False(t, h.server.access.IsAdmin("Bob"))

	// Roster commands are answered on the invoker's console, not the
	// world executor.
	assert.Empty(t, h.world.calls)
	msg, ok := h.channel.lastFor(1, protocol.CmdExecConsole)
	require.True(t, ok)
	assert.Contains(t, msg.Data, "Bob")
}

func TestConsole_DeadminStillOperatorFails(t *testing.T) {
	h, conn := consoleHarness(t, nil)
	h.server.access.AddOperator("Bob")

	h.deliver(conn, protocol.CmdAdminConsole, "deadmin Bob")

	assert.True(t, h.server.access.IsAdmin("Bob"))
	msg, ok := h.channel.lastFor(1, protocol.CmdExecConsole)
	require.True(t, ok)
	assert.Contains(t, msg.Data, "still an operator")
}

func TestConsole_BanDisconnectsOnlinePlayer(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	bobConn := fakeConn{id: 2}
	h.ready(t, bobConn, "Bob")

	h.deliver(conn, protocol.CmdAdminConsole, "ban Bob")

	assert.True(t, h.server.access.IsBanned("Bob"))
	disconnects := h.host.all()
	require.Len(t, disconnects, 1)
	assert.Equal(t, int64(2), disconnects[0].connID)

	h.deliver(conn, protocol.CmdAdminConsole, "unban Bob")
	assert.False(t, h.server.access.IsBanned("Bob"))
}

func TestConsole_KickByIdentity(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	bobConn := fakeConn{id: 2}
	h.ready(t, bobConn, "Bob")

	h.deliver(conn, protocol.CmdAdminConsole, "kick Bob")

	disconnects := h.host.all()
	require.Len(t, disconnects, 1)
	assert.Equal(t, int64(2), disconnects[0].connID)

	h.deliver(conn, protocol.CmdAdminConsole, "kick Nobody")
	msg, ok := h.channel.lastFor(1, protocol.CmdExecConsole)
	require.True(t, ok)
	assert.Contains(t, msg.Data, "not online")
}

func TestConsole_RosterCommandNeedsArgument(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	h.deliver(conn, protocol.CmdAdminConsole, "ban")

	msg, ok := h.channel.lastFor(1, protocol.CmdExecConsole)
	require.True(t, ok)
	assert.Contains(t, msg.Data, "Usage")
}

func TestConsole_DisallowedCommandAnsweredOnOwnConsole(t *testing.T) {
	h := newHarness(t, func(c *config.Config) {
		c.Console.Players = true
		c.Commands.PlayerAllowed = []string{"ping"}
	})
	conn := fakeConn{id: 1}
	h.ready(t, conn, "Carol")

	h.deliver(conn, protocol.CmdAdminConsole, "give_item sword 1")

	msg, ok := h.channel.lastFor(1, protocol.CmdExecConsole)
	require.True(t, ok)
	assert.Contains(t, msg.Data, "give_item")
	assert.Empty(t, h.world.calls)
}

func TestConsole_PlayerWithoutConsoleAccessIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	conn := fakeConn{id: 1}
	h.ready(t, conn, "Carol")

	before := len(h.channel.messagesFor(1))
	h.deliver(conn, protocol.CmdAdminConsole, "give_item sword 1")

	assert.Len(t, h.channel.messagesFor(1), before)
	assert.Empty(t, h.world.calls)
}

func TestConsole_LocalConnectionIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.server.access.AddOperator("Ada")

	conn := fakeConn{id: 1, local: true}
	h.ready(t, conn, "Ada")

	before := len(h.channel.messagesFor(1))
	h.deliver(conn, protocol.CmdAdminConsole, "spawn_raft 0 0")

	assert.Len(t, h.channel.messagesFor(1), before)
	assert.Empty(t, h.world.calls)
}

func TestConsole_UnauthenticatedIsDropped(t *testing.T) {
	hash, err := auth.HashSecret("deep-blue")
	require.NoError(t, err)

	h := newHarness(t, func(c *config.Config) {
		c.Auth.Provider = protocol.ProviderSecret
		c.Auth.SecretHash = hash
	})
	h.server.access.AddOperator("Ada")

	conn := fakeConn{id: 1}
	h.ready(t, conn, "Ada") // challenge issued, never answered

	h.deliver(conn, protocol.CmdAdminConsole, "spawn_raft 0 0")
	assert.Empty(t, h.world.calls)
	_, relayed := h.channel.lastFor(1, protocol.CmdExecConsole)
	assert.False(t, relayed)
}

func TestConsole_BlankLineIgnored(t *testing.T) {
	h, conn := consoleHarness(t, nil)

	before := len(h.channel.messagesFor(1))
	h.deliver(conn, protocol.CmdAdminConsole, "   ")

	assert.Len(t, h.channel.messagesFor(1), before)
}
