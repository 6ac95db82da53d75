// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package player

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/driftsea/driftsea/internal/transport"
)

// Registry holds the player record for every live connection.
// It is safe for concurrent access; records are created when a connection
// is accepted and destroyed when it is removed.
type Registry struct {
	mu      sync.RWMutex
	players map[int64]*Player
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		players: make(map[int64]*Player),
	}
}

// Add creates a record for a newly accepted connection.
// Returns an error if the connection already has a record.
func (r *Registry) Add(conn transport.Conn, displayName string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[conn.ID()]; exists {
		return nil, oops.Code("PLAYER_ALREADY_REGISTERED").
			With("conn_id", conn.ID()).
			Errorf("connection %d already has a player record", conn.ID())
	}

	p := &Player{
		Conn:        conn,
		ClientID:    conn.ID(),
		SessionID:   ulid.Make(),
		DisplayName: displayName,
		ConnectedAt: time.Now(),
	}
	r.players[conn.ID()] = p
	return p, nil
}

// Get returns the record for a connection id.
func (r *Registry) Get(connID int64) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[connID]
	return p, ok
}

// Remove destroys the record for a connection id.
// Returns the removed record, or nil if none existed.
func (r *Registry) Remove(connID int64) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[connID]
	if !ok {
		return nil
	}
	delete(r.players, connID)
	return p
}

// List returns all live records. The slice is a copy; the records are
// shared.
func (r *Registry) List() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		result = append(result, p)
	}
	return result
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// FindByIdentity returns the first record whose resolved identity matches.
func (r *Registry) FindByIdentity(identity string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.players {
		if p.Identity == identity {
			return p, true
		}
	}
	return nil, false
}
