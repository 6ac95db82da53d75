// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Driftsea CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "driftsea",
		Short: "Driftsea - dedicated server core",
		Long: `Driftsea is the headless dedicated server core: session
authentication, remote console authorization, and player tracking over the
host engine's message channel.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHashSecretCmd())

	return cmd
}
