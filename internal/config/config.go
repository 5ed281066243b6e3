// Package config handles loading and validating gateway configuration.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level configuration for the gateway: the listening
// port, the role → target-model map the Router consults before falling
// back to DefaultTarget, and a monitor flag (true unless set). The
// monitor flag is passed to the Router and reported by GET /; routing
// and the Token Tracker's status-file writes are the same either way.
type Config struct {
	Port          int               `koanf:"port"`
	DefaultTarget string            `koanf:"default_target"`
	RoleMap       map[string]string `koanf:"role_map"`
	Monitor       bool              `koanf:"monitor"`
}

// DefaultPort is what the gateway listens on when neither the config
// file nor GATEWAY_PORT names one.
const DefaultPort = 8317

// Load reads configuration from an optional YAML file at path (a
// missing file is not an error — the gateway runs on defaults plus
// whatever GATEWAY_ env vars are set), layers GATEWAY_-prefixed
// environment variable overrides on top, and returns a fully populated
// Config.
func Load(path string) (*Config, error) {
	// Load .env file into the process environment (ignored if not present).
	// This is the equivalent of require('dotenv').config() in Node.
	_ = godotenv.Load()

	// Create a new koanf instance. The "." delimiter tells koanf how to
	// separate nested keys internally (e.g., "role_map.opus").
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !isNotExist(err) {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Layer environment variables on top. Any env var starting with
	// "GATEWAY_" can override a config value. The callback transforms
	// the env var name into a koanf key path:
	//   GATEWAY_PORT           -> port
	//   GATEWAY_DEFAULT_TARGET -> default_target
	//   GATEWAY_MONITOR        -> monitor
	// The per-provider rate-limit and base-URL overrides
	// (GATEWAY_<PROVIDER>_RATE_LIMIT_RPS, <PROVIDER>_BASE_URL) are read
	// directly by internal/router at construction time instead of
	// through this struct — they key off an open-ended provider name
	// set, not a fixed schema koanf can unmarshal into.
	if err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "GATEWAY_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	// Unmarshal the loaded key-value pairs into our Config struct.
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if !k.Exists("monitor") {
		cfg.Monitor = true
	}

	return &cfg, nil
}

func isNotExist(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}
