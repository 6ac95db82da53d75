// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("driftsea", "1.2.3", "json", &buf)

	logger.Info("server starting", "port", 7777)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "server starting", record["msg"])
	assert.Equal(t, "driftsea", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, float64(7777), record["port"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("driftsea", "dev", "text", &buf)

	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "service=driftsea")
	assert.Contains(t, out, "version=dev")
}

func TestSetup_WithAttrsPreservesIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("driftsea", "dev", "json", &buf)

	logger.With("conn_id", 42).Warn("slow tick")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "driftsea", record["service"])
	assert.Equal(t, float64(42), record["conn_id"])
}

func TestSetup_DebugEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("driftsea", "dev", "json", &buf)

	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}
