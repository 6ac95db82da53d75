// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

// defaultSessionWait is how long a submitted ticket waits for the host's
// platform session callback before failing. The provider notifies the game
// server of an established session slightly after the client sends its
// proof, so a short grace window is required.
const defaultSessionWait = 5 * time.Second

// PlatformBBackend is the "platform_b" provider: proofs are validated
// against identity sessions the external provider establishes directly
// with the game server. Session callbacks arrive from the host integration
// layer on RegisterSession/EndSession; submitted tickets are matched
// against them on Tick.
type PlatformBBackend struct {
	sessionWait time.Duration
	now         func() time.Time

	mu          sync.Mutex
	sessions    map[string]string // identity -> session token
	checks      []pendingCheck
	completions []Completion
}

type pendingCheck struct {
	connID   int64
	identity string
	proof    string
	deadline time.Time
}

// NewPlatformBBackend creates a local-session validation backend.
func NewPlatformBBackend() *PlatformBBackend {
	return &PlatformBBackend{
		sessionWait: defaultSessionWait,
		now:         time.Now,
		sessions:    make(map[string]string),
	}
}

// Name returns the provider wire name.
func (b *PlatformBBackend) Name() string { return protocol.ProviderPlatformB }

// ChallengeExtra returns no extra data.
func (b *PlatformBBackend) ChallengeExtra() string { return "" }

// Initialize is a no-op; sessions arrive from host callbacks.
func (b *PlatformBBackend) Initialize(context.Context) error { return nil }

// RegisterSession records a provider session established for an identity.
// Called by the host integration layer's session callback.
func (b *PlatformBBackend) RegisterSession(identity, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[identity] = token
}

// EndSession forgets the provider session for an identity.
func (b *PlatformBBackend) EndSession(identity string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, identity)
}

// Begin queues the ticket for validation against the session table.
func (b *PlatformBBackend) Begin(conn transport.Conn, ticket protocol.AuthTicket) Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks = append(b.checks, pendingCheck{
		connID:   conn.ID(),
		identity: ticket.ClaimedIdentity,
		proof:    ticket.Proof,
		deadline: b.now().Add(b.sessionWait),
	})
	return Result{Pending: true}
}

// Tick matches queued tickets against registered sessions. A ticket whose
// session has not appeared by its deadline fails.
func (b *PlatformBBackend) Tick() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	remaining := b.checks[:0]
	for _, check := range b.checks {
		token, ok := b.sessions[check.identity]
		switch {
		case ok:
			res := Reject(MsgProofRejected)
			if subtle.ConstantTimeCompare([]byte(check.proof), []byte(token)) == 1 {
				res = Success(check.identity)
			}
			b.completions = append(b.completions, Completion{ConnID: check.connID, Result: res})
		case now.After(check.deadline):
			b.completions = append(b.completions, Completion{
				ConnID: check.connID,
				Result: Reject(MsgNoPlatformSession),
			})
		default:
			remaining = append(remaining, check)
		}
	}
	b.checks = remaining
}

// DrainCompletions returns and clears finished validations.
func (b *PlatformBBackend) DrainCompletions() []Completion {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.completions
	b.completions = nil
	return out
}

// Shutdown drops all queued work.
func (b *PlatformBBackend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checks = nil
	b.completions = nil
	b.sessions = make(map[string]string)
}
