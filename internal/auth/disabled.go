// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"context"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

// DisabledBackend is the "none" provider: every ticket succeeds
// immediately. Used when authentication is turned off entirely.
type DisabledBackend struct{}

// NewDisabledBackend creates the no-op backend.
func NewDisabledBackend() *DisabledBackend {
	return &DisabledBackend{}
}

// Name returns the provider wire name.
func (b *DisabledBackend) Name() string { return protocol.ProviderNone }

// ChallengeExtra returns no extra data.
func (b *DisabledBackend) ChallengeExtra() string { return "" }

// Initialize is a no-op.
func (b *DisabledBackend) Initialize(context.Context) error { return nil }

// Begin accepts every ticket with the claimed identity.
func (b *DisabledBackend) Begin(_ transport.Conn, ticket protocol.AuthTicket) Result {
	return Success(ticket.ClaimedIdentity)
}

// Tick is a no-op.
func (b *DisabledBackend) Tick() {}

// DrainCompletions never has completions.
func (b *DisabledBackend) DrainCompletions() []Completion { return nil }

// EndSession is a no-op.
func (b *DisabledBackend) EndSession(string) {}

// Shutdown is a no-op.
func (b *DisabledBackend) Shutdown() {}
