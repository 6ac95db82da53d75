// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

// SecretBackend is the "secret" provider: the client proves knowledge of a
// shared server secret, verified synchronously against a server-configured
// argon2id hash.
type SecretBackend struct {
	secretHash string
}

// NewSecretBackend creates a local-secret backend from the stored hash.
func NewSecretBackend(secretHash string) *SecretBackend {
	return &SecretBackend{secretHash: secretHash}
}

// Name returns the provider wire name.
func (b *SecretBackend) Name() string { return protocol.ProviderSecret }

// ChallengeExtra returns no extra data.
func (b *SecretBackend) ChallengeExtra() string { return "" }

// Initialize verifies the configured hash is well formed.
func (b *SecretBackend) Initialize(context.Context) error {
	if b.secretHash == "" {
		return oops.Code("AUTH_NO_SECRET").
			Errorf("secret provider requires a configured secret hash")
	}
	if _, _, _, _, _, err := decodeSecretHash(b.secretHash); err != nil {
		return err
	}
	return nil
}

// Begin verifies the proof against the configured hash.
func (b *SecretBackend) Begin(conn transport.Conn, ticket protocol.AuthTicket) Result {
	ok, err := VerifySecret(ticket.Proof, b.secretHash)
	if err != nil {
		slog.Error("secret verification failed",
			"conn_id", conn.ID(),
			"error", err,
		)
		return Reject(MsgBackendUnavailable)
	}
	if !ok {
		return Reject(MsgBadSecret)
	}
	return Success(ticket.ClaimedIdentity)
}

// Tick is a no-op.
func (b *SecretBackend) Tick() {}

// DrainCompletions never has completions; validation is synchronous.
func (b *SecretBackend) DrainCompletions() []Completion { return nil }

// EndSession is a no-op.
func (b *SecretBackend) EndSession(string) {}

// Shutdown is a no-op.
func (b *SecretBackend) Shutdown() {}
