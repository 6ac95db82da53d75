// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

// Player-facing failure messages. These travel to the client in the
// auth_result payload, so they must not leak server internals.
const (
	MsgMissingTicket      = "Authentication response was empty."
	MsgNoPendingChallenge = "No authentication challenge is outstanding."
	MsgNonceMismatch      = "Authentication challenge mismatch."
	MsgProviderMismatch   = "Authentication provider mismatch."
	MsgBanned             = "You are banned from this server."
	MsgTimeout            = "Authentication timed out."
	MsgBadSecret          = "Incorrect server password."
	MsgBackendUnavailable = "Authentication service is unavailable."
	MsgClientTooOld       = "Your client version is too old for this server."
	MsgNoPlatformSession  = "No platform session was found for your identity."
	MsgProofRejected      = "Your identity proof was rejected."
)
