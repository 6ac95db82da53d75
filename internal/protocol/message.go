// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package protocol defines the application message envelope and payloads
// multiplexed over the host engine's single remote-call slot.
package protocol

import (
	"encoding/json"

	"github.com/samber/oops"
)

// Commands sent client -> server.
const (
	CmdAdminConsole      = "admin_console"
	CmdAuthResponse      = "auth_response"
	CmdClientReady       = "client_ready"
	CmdRequestServerData = "request_server_data"
)

// Commands sent server -> client.
const (
	CmdExecConsole    = "exec_console"
	CmdAuthChallenge  = "auth_challenge"
	CmdAuthResult     = "auth_result"
	CmdServerData     = "server_data"
	CmdWelcomeMessage = "welcome_message"
)

// Authentication provider wire names.
const (
	ProviderNone      = "none"
	ProviderSecret    = "secret"
	ProviderPlatformA = "platform_a"
	ProviderPlatformB = "platform_b"
)

// Message is the wire envelope carried over the shared remote-call slot.
// Command selects a handler in the receiving router; Data is an opaque
// string whose shape is defined per command.
type Message struct {
	Command string `json:"command"`
	Data    string `json:"data"`
}

// Encode serializes the envelope to its wire string.
func (m Message) Encode() (string, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return "", oops.Code("PROTO_ENCODE_FAILED").
			With("command", m.Command).
			Wrap(err)
	}
	return string(raw), nil
}

// DecodeMessage parses a wire string into an envelope.
// Returns an error for malformed input or an empty command.
func DecodeMessage(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, oops.Code("PROTO_DECODE_FAILED").
			With("length", len(raw)).
			Wrap(err)
	}
	if m.Command == "" {
		return Message{}, oops.Code("PROTO_EMPTY_COMMAND").
			Errorf("envelope is missing a command")
	}
	return m, nil
}

// EncodePayload serializes a typed payload for the Data field of an envelope.
func EncodePayload(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", oops.Code("PROTO_PAYLOAD_ENCODE_FAILED").Wrap(err)
	}
	return string(raw), nil
}

// DecodePayload parses an envelope Data field into a typed payload.
func DecodePayload(data string, payload any) error {
	if err := json.Unmarshal([]byte(data), payload); err != nil {
		return oops.Code("PROTO_PAYLOAD_DECODE_FAILED").
			With("length", len(data)).
			Wrap(err)
	}
	return nil
}
