// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package player tracks per-connection player records for the dedicated
// server core.
package player

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/driftsea/driftsea/internal/transport"
)

// Player is the per-connection record shared by the router, the
// authentication coordinator, and the permission layer.
//
// Authentication state fields are mutated only from the server's main loop;
// the registry mutex guards the map, not the record contents.
type Player struct {
	Conn     transport.Conn
	ClientID int64

	// SessionID correlates every log line and auth completion for one
	// connection's lifetime.
	SessionID ulid.ULID

	// Identity is the resolved external identity. Empty until
	// authentication succeeds for providers that verify identity.
	Identity    string
	DisplayName string
	ConnectedAt time.Time

	// EntityID references the player's in-world entity, 0 if not spawned.
	EntityID int64

	// IsHost marks the server's own non-human ghost player.
	IsHost bool

	IsAuthenticated  bool
	IsAuthPending    bool
	PendingNonce     string
	ChallengeStarted time.Time
	LastAttemptAt    time.Time
	LastAttemptNote  string
}

// EffectiveIdentity returns the resolved identity, falling back to the
// display name when no identity has been established.
func (p *Player) EffectiveIdentity() string {
	if p.Identity != "" {
		return p.Identity
	}
	return p.DisplayName
}

// AuthState is the coarse authentication state of a connection.
type AuthState int

// Authentication states, in lifecycle order.
const (
	StateUnauthenticated AuthState = iota
	StatePending
	StateAuthenticated
)

// State derives the coarse authentication state from the record flags.
func (p *Player) State() AuthState {
	switch {
	case p.IsAuthenticated:
		return StateAuthenticated
	case p.IsAuthPending:
		return StatePending
	default:
		return StateUnauthenticated
	}
}
