// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Driftgate Contributors

// Package config loads the server configuration: struct defaults, then an
// optional YAML file, then command line flags, each layer overriding the
// previous one.
package config

import (
	"errors"
	"io/fs"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full server configuration.
type Config struct {
	Log           Log           `koanf:"log"`
	Listen        Listen        `koanf:"listen"`
	Observability Observability `koanf:"observability"`
	Accounts      Accounts      `koanf:"accounts"`
	Netinfo       Netinfo       `koanf:"netinfo"`
	Game          Game          `koanf:"game"`
}

// Log configures the process logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Listen holds the four public listen addresses.
type Listen struct {
	Player   string `koanf:"player"`
	Launcher string `koanf:"launcher"`
	AuthCode string `koanf:"authcode"`
	Status   string `koanf:"status"`
}

// Observability configures the metrics/health endpoint.
type Observability struct {
	Addr string `koanf:"addr"`
}

// Accounts selects and configures the account store backend.
type Accounts struct {
	// Backend is "file", "memory" or "postgres".
	Backend     string `koanf:"backend"`
	Path        string `koanf:"path"`
	DatabaseURL string `koanf:"database_url"`
}

// Netinfo configures external address detection.
type Netinfo struct {
	ProbeURL string `koanf:"probe_url"`
}

// Game holds the static gameplay data sent to clients on login.
type Game struct {
	Classes []string `koanf:"classes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: Log{
			Format: "json",
			Level:  "info",
		},
		Listen: Listen{
			Player:   ":9000",
			Launcher: ":9001",
			AuthCode: ":9002",
			Status:   ":9080",
		},
		Observability: Observability{
			Addr: "127.0.0.1:9100",
		},
		Accounts: Accounts{
			Backend: "file",
			Path:    "accounts.yaml",
		},
		Game: Game{
			Classes: []string{"light", "medium", "heavy"},
		},
	}
}

// Load builds the configuration. path may be empty or point at a YAML file;
// a missing file at the default location is tolerated, an unreadable or
// malformed one is not. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		err := k.Load(file.Provider(path), yaml.Parser())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", path).Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Accounts.Backend {
	case "file":
		if c.Accounts.Path == "" {
			return oops.Code("CONFIG_INVALID").Errorf("accounts.path is required for the file backend")
		}
	case "postgres":
		if c.Accounts.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("accounts.database_url is required for the postgres backend")
		}
	case "memory":
	default:
		return oops.Code("CONFIG_INVALID").Errorf("unknown accounts backend %q", c.Accounts.Backend)
	}
	return nil
}
