// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftsea/driftsea/internal/auth"
)

func TestRootCmd_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "hash-secret")
}

func TestHashSecret_ProducesVerifiableHash(t *testing.T) {
	cmd := NewHashSecretCmd()

	var out bytes.Buffer
	cmd.SetIn(strings.NewReader("deep-blue\n"))
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	hash := strings.TrimSpace(out.String())
	require.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := auth.VerifySecret("deep-blue", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashSecret_EmptySecretFails(t *testing.T) {
	cmd := NewHashSecretCmd()
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	assert.Error(t, cmd.Execute())
}

func TestChangedFlags_OnlyIncludesSetFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("server.name", "", "")
	flags.Int("server.max_players", 0, "")
	require.NoError(t, flags.Parse([]string{"--server.name=Cove"}))

	out := changedFlags(flags)
	assert.NotNil(t, out.Lookup("server.name"))
	assert.Nil(t, out.Lookup("server.max_players"))
}
