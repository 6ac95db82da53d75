// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsea/driftsea/internal/protocol"
)

func platformBTicket(identity, proof string) protocol.AuthTicket {
	return protocol.AuthTicket{
		Provider:        protocol.ProviderPlatformB,
		Nonce:           "deadbeef",
		ClaimedIdentity: identity,
		Proof:           proof,
	}
}

func TestPlatformB_MatchesRegisteredSession(t *testing.T) {
	b := NewPlatformBBackend()
	require.NoError(t, b.Initialize(t.Context()))

	b.RegisterSession("id-1", "token-abc")

	res := b.Begin(&stubConn{id: 3}, platformBTicket("id-1", "token-abc"))
	require.True(t, res.Pending)
	assert.Empty(t, b.DrainCompletions(), "outcome only appears after Tick")

	b.Tick()

	done := b.DrainCompletions()
	require.Len(t, done, 1)
	assert.Equal(t, int64(3), done[0].ConnID)
	assert.True(t, done[0].Result.Successful)
	assert.Equal(t, "id-1", done[0].Result.Identity)
}

func TestPlatformB_WrongTokenRejected(t *testing.T) {
	b := NewPlatformBBackend()
	b.RegisterSession("id-1", "token-abc")

	b.Begin(&stubConn{id: 3}, platformBTicket("id-1", "stolen"))
	b.Tick()

	done := b.DrainCompletions()
	require.Len(t, done, 1)
	assert.False(t, done[0].Result.Successful)
	assert.Equal(t, MsgProofRejected, done[0].Result.Message)
}

func TestPlatformB_WaitsForLateSessionCallback(t *testing.T) {
	b := NewPlatformBBackend()

	b.Begin(&stubConn{id: 3}, platformBTicket("id-1", "token-abc"))
	b.Tick()
	assert.Empty(t, b.DrainCompletions(), "ticket waits for the session callback")

	// Session callback arrives after the ticket.
	b.RegisterSession("id-1", "token-abc")
	b.Tick()

	done := b.DrainCompletions()
	require.Len(t, done, 1)
	assert.True(t, done[0].Result.Successful)
}

func TestPlatformB_DeadlineExpires(t *testing.T) {
	b := NewPlatformBBackend()
	start := time.Now()
	b.now = func() time.Time { return start }

	b.Begin(&stubConn{id: 3}, platformBTicket("id-1", "token-abc"))

	b.now = func() time.Time { return start.Add(defaultSessionWait + time.Second) }
	b.Tick()

	done := b.DrainCompletions()
	require.Len(t, done, 1)
	assert.False(t, done[0].Result.Successful)
	assert.Equal(t, MsgNoPlatformSession, done[0].Result.Message)
}

func TestPlatformB_EndSessionForgets(t *testing.T) {
	b := NewPlatformBBackend()
	b.RegisterSession("id-1", "token-abc")
	b.EndSession("id-1")

	b.Begin(&stubConn{id: 3}, platformBTicket("id-1", "token-abc"))
	b.Tick()

	assert.Empty(t, b.DrainCompletions(), "ended session leaves the ticket waiting")
}
