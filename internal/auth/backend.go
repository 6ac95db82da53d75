// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package auth implements the session authentication handshake for the
// dedicated server: a nonce-based challenge–response with pluggable
// identity-verification backends and a per-connection coordinator state
// machine.
package auth

import (
	"context"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

// Result is the outcome of an authentication attempt.
type Result struct {
	Successful bool
	// Pending means the backend accepted the ticket for asynchronous
	// validation; the final outcome will arrive via DrainCompletions.
	Pending bool
	// Message is a player-facing explanation, set on failure.
	Message string
	// ShouldDisconnect instructs the server to drop the connection.
	ShouldDisconnect bool
	// Identity is the verified external identity. Empty results fall
	// back to the ticket's claimed identity.
	Identity string
}

// Success returns a successful result carrying a verified identity.
func Success(identity string) Result {
	return Result{Successful: true, Identity: identity}
}

// Reject returns a terminal failure that drops the connection.
func Reject(message string) Result {
	return Result{Message: message, ShouldDisconnect: true}
}

// Completion is an asynchronous validation outcome keyed by connection.
type Completion struct {
	ConnID int64
	Result Result
}

// Backend performs the identity proof for one verification strategy.
// Exactly one backend instance exists per process lifetime.
//
// Begin may run validation on a provider callback thread, but outcomes are
// only ever observed through DrainCompletions, which the coordinator reads
// exclusively from the main loop.
type Backend interface {
	// Name is the provider wire name ("none", "secret", "platform_a",
	// "platform_b").
	Name() string

	// ChallengeExtra is provider-specific data included in every
	// challenge, e.g. the relying-party identity string platform_a
	// validation requires. Empty for most providers.
	ChallengeExtra() string

	// Initialize prepares the backend. A failure leaves the backend in a
	// degraded state; it is not replaced.
	Initialize(ctx context.Context) error

	// Begin starts validating a submitted ticket. Returns either an
	// immediate result or a pending marker.
	Begin(conn transport.Conn, ticket protocol.AuthTicket) Result

	// Tick advances any internal validation work. Called every frame
	// from the main loop.
	Tick()

	// DrainCompletions returns and clears all finished asynchronous
	// validations. Called only from the main loop.
	DrainCompletions() []Completion

	// EndSession releases provider-side state for an identity when its
	// connection goes away.
	EndSession(identity string)

	// Shutdown releases the backend. No calls may follow.
	Shutdown()
}
