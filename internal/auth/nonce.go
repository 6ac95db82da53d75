// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/samber/oops"
)

// nonceBytes is the entropy of a challenge nonce. 16 bytes = 32 hex chars.
const nonceBytes = 16

// NewNonce generates a fresh random challenge nonce as a hex string.
func NewNonce() (string, error) {
	buf := make([]byte, nonceBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("AUTH_NONCE_FAILED").
			With("operation", "crypto/rand.Read").
			Wrap(err)
	}
	return hex.EncodeToString(buf), nil
}
