// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftsea/driftsea/internal/auth"
)

// NewHashSecretCmd creates the hash-secret subcommand. The secret is read
// from stdin so it never lands in shell history.
func NewHashSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret",
		Short: "Hash a server secret for the auth.secret_hash config key",
		Long: `Read a server secret from stdin and print its argon2id hash,
suitable for the auth.secret_hash config key of the secret provider.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reader := bufio.NewReader(cmd.InOrStdin())
			secret, err := reader.ReadString('\n')
			if err != nil && secret == "" {
				return fmt.Errorf("failed to read secret: %w", err)
			}
			secret = strings.TrimRight(secret, "\r\n")

			hash, err := auth.HashSecret(secret)
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}
