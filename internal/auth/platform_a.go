// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/driftsea/driftsea/internal/protocol"
	"github.com/driftsea/driftsea/internal/transport"
)

// PlatformAConfig configures remote web-API ticket validation.
type PlatformAConfig struct {
	// Endpoint is the provider's ticket validation URL.
	Endpoint string
	// AppID identifies the game title to the provider.
	AppID string
	// RelyingParty is the identity string the client must bind its proof
	// to; sent to clients in the challenge's providerExtra field.
	RelyingParty string
	// RequestTimeout bounds one validation HTTP request.
	RequestTimeout time.Duration
}

// PlatformABackend is the "platform_a" provider: the client's opaque proof
// is submitted to the external identity provider's web API for asynchronous
// validation. Validation runs on its own goroutine; outcomes are queued and
// only ever observed from the main loop via DrainCompletions.
type PlatformABackend struct {
	cfg    PlatformAConfig
	client *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	completions []Completion
}

// NewPlatformABackend creates a web-API validation backend.
func NewPlatformABackend(cfg PlatformAConfig) *PlatformABackend {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &PlatformABackend{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name returns the provider wire name.
func (b *PlatformABackend) Name() string { return protocol.ProviderPlatformA }

// ChallengeExtra returns the relying-party identity string clients need to
// bind their proof to.
func (b *PlatformABackend) ChallengeExtra() string { return b.cfg.RelyingParty }

// Initialize validates the configuration and prepares the worker context.
func (b *PlatformABackend) Initialize(ctx context.Context) error {
	if b.cfg.Endpoint == "" {
		return oops.Code("AUTH_NO_ENDPOINT").
			Errorf("platform_a provider requires a validation endpoint")
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	return nil
}

// Begin submits the proof for asynchronous validation.
func (b *PlatformABackend) Begin(conn transport.Conn, ticket protocol.AuthTicket) Result {
	connID := conn.ID()
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.complete(connID, b.validate(ticket))
	}()
	return Result{Pending: true}
}

// validationRequest is the web API request body.
type validationRequest struct {
	AppID        string `json:"appId"`
	Proof        string `json:"proof"`
	Identity     string `json:"identity"`
	RelyingParty string `json:"relyingParty,omitempty"`
}

// validationResponse is the web API response body.
type validationResponse struct {
	Valid    bool   `json:"valid"`
	Identity string `json:"identity"`
	Reason   string `json:"reason"`
}

func (b *PlatformABackend) validate(ticket protocol.AuthTicket) Result {
	body, err := json.Marshal(validationRequest{
		AppID:        b.cfg.AppID,
		Proof:        ticket.Proof,
		Identity:     ticket.ClaimedIdentity,
		RelyingParty: b.cfg.RelyingParty,
	})
	if err != nil {
		slog.Error("platform_a request encode failed", "error", err)
		return Reject(MsgBackendUnavailable)
	}

	var response validationResponse
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(b.ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			// Network errors are transient; the provider may recover.
			return retry.RetryableError(err)
		}
		defer func() {
			_ = resp.Body.Close() //nolint:errcheck // read side already consumed
		}()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(oops.Code("AUTH_PROVIDER_5XX").
				With("status", resp.StatusCode).
				Errorf("provider returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return oops.Code("AUTH_PROVIDER_REJECTED").
				With("status", resp.StatusCode).
				Errorf("provider returned %d", resp.StatusCode)
		}

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return retry.RetryableError(err)
		}
		if err := json.Unmarshal(raw, &response); err != nil {
			return oops.Code("AUTH_PROVIDER_BAD_RESPONSE").Wrap(err)
		}
		return nil
	})
	if err != nil {
		slog.Warn("platform_a validation request failed", "error", err)
		return Reject(MsgBackendUnavailable)
	}

	if !response.Valid {
		slog.Info("platform_a proof rejected",
			"claimed_identity", ticket.ClaimedIdentity,
			"reason", response.Reason,
		)
		return Reject(MsgProofRejected)
	}
	return Success(response.Identity)
}

func (b *PlatformABackend) complete(connID int64, res Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.completions = append(b.completions, Completion{ConnID: connID, Result: res})
}

// Tick is a no-op; validation runs on its own goroutines.
func (b *PlatformABackend) Tick() {}

// DrainCompletions returns and clears finished validations.
func (b *PlatformABackend) DrainCompletions() []Completion {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.completions
	b.completions = nil
	return out
}

// EndSession is a no-op; the web API holds no per-connection session.
func (b *PlatformABackend) EndSession(string) {}

// Shutdown cancels in-flight validations and waits for workers to exit.
func (b *PlatformABackend) Shutdown() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}
