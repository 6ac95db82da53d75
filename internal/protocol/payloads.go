// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package protocol

// AuthChallenge is sent server -> client to open the authentication
// handshake. The client must echo the nonce back in its AuthTicket.
type AuthChallenge struct {
	Provider       string `json:"provider"`
	Nonce          string `json:"nonce"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	// ProviderExtra carries provider-specific data the client needs to
	// produce a proof, e.g. the relying-party identity string required
	// by platform_a ticket validation.
	ProviderExtra string `json:"providerExtra,omitempty"`
}

// AuthTicket is sent client -> server in response to a challenge.
type AuthTicket struct {
	Provider        string `json:"provider"`
	Nonce           string `json:"nonce"`
	ClaimedIdentity string `json:"claimedIdentity"`
	Proof           string `json:"proof"`
	ClientVersion   string `json:"clientVersion,omitempty"`
}

// AuthResult is sent server -> client once authentication concludes.
type AuthResult struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ServerData is the snapshot returned for a request_server_data command.
type ServerData struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}
