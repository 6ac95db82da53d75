// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"

	"github.com/driftsea/driftsea/internal/player"
	"github.com/driftsea/driftsea/internal/protocol"
)

// defaultTimeout bounds how long a client may sit on an unanswered
// challenge before the sweep disconnects it.
const defaultTimeout = 30 * time.Second

// BanChecker answers ban-roster queries. Satisfied by access.Manager.
type BanChecker interface {
	IsBanned(identity string) bool
}

// Observer is notified when an authentication attempt concludes.
// Observers send auth results and welcome messages, invalidate permission
// caches, and schedule disconnects.
type Observer func(p *player.Player, res Result)

// Config configures the Coordinator.
type Config struct {
	// Enabled turns the handshake on. When false every connection is
	// authenticated immediately without a challenge.
	Enabled bool

	// Timeout is the challenge answer deadline. Zero means the default.
	Timeout time.Duration

	// MinClientVersion, when set, rejects tickets from clients below
	// this semantic version before any proof is examined.
	MinClientVersion string
}

// pendingAuth tracks one outstanding challenge.
// Invariant: at most one per connection.
type pendingAuth struct {
	player          *player.Player
	nonce           string
	startedAt       time.Time
	claimedIdentity string
}

// Coordinator is the per-connection authentication state machine. It owns
// challenge issuance, ticket validation order, asynchronous completion
// draining, and the timeout sweep.
//
// All methods must be called from the server's main loop; the pending map
// is deliberately unsynchronized. The only cross-thread boundary is the
// backend's completion queue, observed via DrainCompletions inside Tick.
type Coordinator struct {
	backend    Backend
	bans       BanChecker
	enabled    bool
	degraded   bool
	timeout    time.Duration
	minVersion *semver.Version

	pending   map[int64]*pendingAuth
	observers []Observer

	now func() time.Time
}

// NewCoordinator creates a Coordinator over the given backend.
func NewCoordinator(backend Backend, bans BanChecker, cfg Config) (*Coordinator, error) {
	if backend == nil {
		return nil, oops.Code("AUTH_NIL_BACKEND").Errorf("backend is required")
	}
	if bans == nil {
		return nil, oops.Code("AUTH_NIL_BAN_CHECKER").Errorf("ban checker is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	var minVersion *semver.Version
	if cfg.MinClientVersion != "" {
		v, err := semver.NewVersion(cfg.MinClientVersion)
		if err != nil {
			return nil, oops.Code("AUTH_BAD_MIN_VERSION").
				With("min_client_version", cfg.MinClientVersion).
				Wrap(err)
		}
		minVersion = v
	}

	return &Coordinator{
		backend:    backend,
		bans:       bans,
		enabled:    cfg.Enabled,
		timeout:    timeout,
		minVersion: minVersion,
		pending:    make(map[int64]*pendingAuth),
		now:        time.Now,
	}, nil
}

// Initialize prepares the backend. An initialization failure does not
// replace the backend; the coordinator enters a degraded state in which
// every subsequent authentication fails safely.
func (c *Coordinator) Initialize(ctx context.Context) {
	if err := c.backend.Initialize(ctx); err != nil {
		slog.Error("authentication backend failed to initialize; entering degraded state",
			"provider", c.backend.Name(),
			"error", err,
		)
		c.degraded = true
	}
}

// OnCompletion registers an observer for concluded attempts.
func (c *Coordinator) OnCompletion(obs Observer) {
	c.observers = append(c.observers, obs)
}

// Provider returns the active provider wire name.
func (c *Coordinator) Provider() string {
	return c.backend.Name()
}

// TimeoutSeconds returns the configured challenge deadline in whole
// seconds, as sent to clients.
func (c *Coordinator) TimeoutSeconds() int {
	return int(c.timeout / time.Second)
}

// PendingCount returns the number of outstanding challenges.
func (c *Coordinator) PendingCount() int {
	return len(c.pending)
}

// bypassed reports whether a connection skips authentication entirely:
// loopback connections, locally originated clients, and the server's own
// ghost player.
func (c *Coordinator) bypassed(p *player.Player) bool {
	return p.IsHost || p.Conn.IsLocal()
}

// CreateChallenge starts the handshake for a connection. When
// authentication is disabled or a bypass rule matches, the player is
// authenticated immediately and no challenge is returned.
func (c *Coordinator) CreateChallenge(p *player.Player) (*protocol.AuthChallenge, error) {
	if p.IsAuthenticated {
		return nil, nil
	}
	if !c.enabled || c.bypassed(p) {
		c.apply(p, Success(p.EffectiveIdentity()), OutcomeBypass)
		return nil, nil
	}

	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}

	now := c.now()
	c.pending[p.ClientID] = &pendingAuth{
		player:    p,
		nonce:     nonce,
		startedAt: now,
	}
	p.IsAuthPending = true
	p.PendingNonce = nonce
	p.ChallengeStarted = now

	ChallengesIssued.Inc()
	PendingAuthentications.Set(float64(len(c.pending)))

	slog.Info("authentication challenge issued",
		"conn_id", p.ClientID,
		"session_id", p.SessionID.String(),
		"provider", c.backend.Name(),
	)

	return &protocol.AuthChallenge{
		Provider:       c.backend.Name(),
		Nonce:          nonce,
		TimeoutSeconds: c.TimeoutSeconds(),
		ProviderExtra:  c.backend.ChallengeExtra(),
	}, nil
}

// SubmitTicket validates a client's ticket in strict order: player record,
// bypass re-check, payload present, pending challenge present, nonce match,
// provider match, client version, ban roster, then backend dispatch. Nonce
// and provider mismatches and missing payloads are terminal failures with a
// mandatory disconnect; there is no silent retry.
func (c *Coordinator) SubmitTicket(p *player.Player, ticket *protocol.AuthTicket) {
	if p == nil {
		slog.Warn("dropping auth ticket: no player record")
		return
	}

	if c.bypassed(p) {
		if !p.IsAuthenticated {
			c.apply(p, Success(p.EffectiveIdentity()), OutcomeBypass)
		}
		return
	}

	if ticket == nil {
		c.apply(p, Reject(MsgMissingTicket), OutcomeRejected)
		return
	}

	pending, ok := c.pending[p.ClientID]
	if !ok {
		c.apply(p, Reject(MsgNoPendingChallenge), OutcomeRejected)
		return
	}

	// A stale or replayed nonce is a hard error: a captured proof must
	// never be replayable against a fresh challenge.
	if ticket.Nonce != pending.nonce {
		c.apply(p, Reject(MsgNonceMismatch), OutcomeRejected)
		return
	}

	// Provider confusion is equally terminal.
	if ticket.Provider != c.backend.Name() {
		c.apply(p, Reject(MsgProviderMismatch), OutcomeRejected)
		return
	}

	if !c.versionAllowed(ticket.ClientVersion) {
		c.apply(p, Reject(MsgClientTooOld), OutcomeRejected)
		return
	}

	if c.bans.IsBanned(ticket.ClaimedIdentity) {
		c.apply(p, Reject(MsgBanned), OutcomeRejected)
		return
	}

	if c.degraded {
		c.apply(p, Reject(MsgBackendUnavailable), OutcomeRejected)
		return
	}

	pending.claimedIdentity = ticket.ClaimedIdentity

	res := c.backend.Begin(p.Conn, *ticket)
	if res.Pending {
		return
	}
	if res.Successful && res.Identity == "" {
		res.Identity = ticket.ClaimedIdentity
	}
	c.ApplyResult(p, res)
}

func (c *Coordinator) versionAllowed(clientVersion string) bool {
	if c.minVersion == nil {
		return true
	}
	v, err := semver.NewVersion(clientVersion)
	if err != nil {
		return false
	}
	return !v.LessThan(c.minVersion)
}

// Tick advances the handshake machinery: pumps the backend, drains
// asynchronous completions (re-checking the ban roster for each, since a
// ban may have landed while validation was in flight), then sweeps pending
// challenges past their deadline.
func (c *Coordinator) Tick() {
	c.backend.Tick()

	for _, completion := range c.backend.DrainCompletions() {
		pending, ok := c.pending[completion.ConnID]
		if !ok {
			slog.Debug("dropping auth completion: connection no longer pending",
				"conn_id", completion.ConnID,
			)
			continue
		}

		res := completion.Result
		if res.Successful && res.Identity == "" {
			res.Identity = pending.claimedIdentity
		}
		if res.Successful && (c.bans.IsBanned(res.Identity) || c.bans.IsBanned(pending.claimedIdentity)) {
			res = Reject(MsgBanned)
		}
		c.ApplyResult(pending.player, res)
	}

	c.sweepExpired()
}

func (c *Coordinator) sweepExpired() {
	if len(c.pending) == 0 {
		return
	}

	now := c.now()
	var expired []*pendingAuth
	for _, pending := range c.pending {
		if now.Sub(pending.startedAt) > c.timeout {
			expired = append(expired, pending)
		}
	}
	for _, pending := range expired {
		slog.Info("authentication challenge timed out",
			"conn_id", pending.player.ClientID,
			"age", now.Sub(pending.startedAt).String(),
		)
		c.apply(pending.player, Reject(MsgTimeout), OutcomeTimeout)
	}
}

// ApplyResult is the central state transition: it clears pending
// bookkeeping, updates the player record, and notifies observers.
func (c *Coordinator) ApplyResult(p *player.Player, res Result) {
	outcome := OutcomeRejected
	if res.Successful {
		outcome = OutcomeSuccess
	}
	c.apply(p, res, outcome)
}

func (c *Coordinator) apply(p *player.Player, res Result, outcome string) {
	delete(c.pending, p.ClientID)
	PendingAuthentications.Set(float64(len(c.pending)))

	now := c.now()
	p.IsAuthPending = false
	p.PendingNonce = ""
	p.LastAttemptAt = now
	p.LastAttemptNote = res.Message

	if res.Successful {
		p.IsAuthenticated = true
		p.Identity = res.Identity
	} else {
		p.IsAuthenticated = false
		p.Identity = ""
	}

	Results.WithLabelValues(c.backend.Name(), outcome).Inc()

	slog.Info("authentication concluded",
		"conn_id", p.ClientID,
		"session_id", p.SessionID.String(),
		"provider", c.backend.Name(),
		"outcome", outcome,
		"identity", p.Identity,
	)

	for _, obs := range c.observers {
		obs(p, res)
	}
}

// HandlePlayerDisconnected releases authentication state for a departing
// connection and tells the backend to end any provider session.
func (c *Coordinator) HandlePlayerDisconnected(p *player.Player) {
	if _, ok := c.pending[p.ClientID]; ok {
		delete(c.pending, p.ClientID)
		PendingAuthentications.Set(float64(len(c.pending)))
	}
	c.backend.EndSession(p.EffectiveIdentity())
}

// Shutdown releases the backend.
func (c *Coordinator) Shutdown() {
	c.backend.Shutdown()
}
