// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftsea Contributors

// Package config loads the dedicated server configuration: defaults,
// overlaid by a YAML file, overlaid by command-line flags.
package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/driftsea/driftsea/internal/protocol"
)

// Config is the full dedicated server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Auth     AuthConfig     `koanf:"auth"`
	Console  ConsoleConfig  `koanf:"console"`
	Commands CommandsConfig `koanf:"commands"`
}

// ServerConfig covers process-level settings.
type ServerConfig struct {
	Name           string `koanf:"name"`
	ListenAddr     string `koanf:"listen_addr"`
	MetricsAddr    string `koanf:"metrics_addr"`
	MaxPlayers     int    `koanf:"max_players"`
	WelcomeMessage string `koanf:"welcome_message"`
	LogFormat      string `koanf:"log_format"`
	TickIntervalMs int    `koanf:"tick_interval_ms"`
	RosterPath     string `koanf:"roster_path"`
}

// AuthConfig selects and configures the authentication provider.
type AuthConfig struct {
	// Provider is one of "none", "secret", "platform_a", "platform_b".
	Provider         string          `koanf:"provider"`
	TimeoutSeconds   int             `koanf:"timeout_seconds"`
	SecretHash       string          `koanf:"secret_hash"`
	MinClientVersion string          `koanf:"min_client_version"`
	PlatformA        PlatformAConfig `koanf:"platform_a"`
}

// PlatformAConfig configures remote web-API ticket validation.
type PlatformAConfig struct {
	Endpoint              string `koanf:"endpoint"`
	AppID                 string `koanf:"app_id"`
	RelyingParty          string `koanf:"relying_party"`
	RequestTimeoutSeconds int    `koanf:"request_timeout_seconds"`
}

// ConsoleConfig gates remote console access per rank.
type ConsoleConfig struct {
	Operators  bool `koanf:"operators"`
	Admins     bool `koanf:"admins"`
	Players    bool `koanf:"players"`
	LogActions bool `koanf:"log_actions"`
}

// CommandsConfig holds the command authorization sets. All accept glob
// patterns. ServerAuthority lists console commands that must execute on the
// server rather than being relayed back to the invoking client.
type CommandsConfig struct {
	Allowed         []string `koanf:"allowed"`
	Restricted      []string `koanf:"restricted"`
	PlayerAllowed   []string `koanf:"player_allowed"`
	GlobalDisabled  []string `koanf:"global_disabled"`
	ServerAuthority []string `koanf:"server_authority"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:           "Driftsea Dedicated Server",
			ListenAddr:     "0.0.0.0:27900",
			MetricsAddr:    "127.0.0.1:9100",
			MaxPlayers:     8,
			WelcomeMessage: "Welcome aboard!",
			LogFormat:      "json",
			TickIntervalMs: 50,
		},
		Auth: AuthConfig{
			Provider:       protocol.ProviderNone,
			TimeoutSeconds: 30,
		},
		Console: ConsoleConfig{
			Operators:  true,
			Admins:     true,
			LogActions: true,
		},
		Commands: CommandsConfig{
			ServerAuthority: []string{"spawn_*", "kick", "ban", "unban", "op", "deop", "admin", "deadmin"},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// an optional flag set, in that precedence order.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AuthEnabled reports whether the handshake runs at all.
func (c *Config) AuthEnabled() bool {
	return c.Auth.Provider != protocol.ProviderNone
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Auth.Provider {
	case protocol.ProviderNone, protocol.ProviderSecret,
		protocol.ProviderPlatformA, protocol.ProviderPlatformB:
	default:
		return oops.Code("CONFIG_BAD_PROVIDER").
			With("provider", c.Auth.Provider).
			Errorf("unknown auth provider %q", c.Auth.Provider)
	}

	if c.Auth.Provider == protocol.ProviderSecret && c.Auth.SecretHash == "" {
		return oops.Code("CONFIG_MISSING_SECRET").
			Errorf("auth.secret_hash is required for the secret provider")
	}
	if c.Auth.Provider == protocol.ProviderPlatformA && c.Auth.PlatformA.Endpoint == "" {
		return oops.Code("CONFIG_MISSING_ENDPOINT").
			Errorf("auth.platform_a.endpoint is required for the platform_a provider")
	}
	if c.Auth.TimeoutSeconds <= 0 {
		return oops.Code("CONFIG_BAD_TIMEOUT").
			With("timeout_seconds", c.Auth.TimeoutSeconds).
			Errorf("auth.timeout_seconds must be positive")
	}

	if c.Server.LogFormat != "json" && c.Server.LogFormat != "text" {
		return oops.Code("CONFIG_BAD_LOG_FORMAT").
			With("log_format", c.Server.LogFormat).
			Errorf("server.log_format must be \"json\" or \"text\"")
	}
	if c.Server.MaxPlayers <= 0 {
		return oops.Code("CONFIG_BAD_MAX_PLAYERS").
			Errorf("server.max_players must be positive")
	}
	if c.Server.TickIntervalMs <= 0 {
		return oops.Code("CONFIG_BAD_TICK_INTERVAL").
			Errorf("server.tick_interval_ms must be positive")
	}
	return nil
}
