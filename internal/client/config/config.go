// Package config handles configuration for the CLI component, including
// defaults, JSON overlay, environment and command-line flags.
package config

import (
	"os"
	"strconv"
	"time"
)

// UnlockTimeoutEnv overrides the inactivity window after which the cached
// vault key is discarded. The value is in seconds.
const UnlockTimeoutEnv = "VAULT_UNLOCK_TIMEOUT"

// Config holds runtime settings for the sshbox CLI.
//
// Fields:
//   - ServerEndpointAddr: base URL of the backend HTTP endpoint.
//   - UnlockTimeout: inactivity window before the vault auto-locks.
type Config struct {
	ServerEndpointAddr string
	UnlockTimeout      time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://localhost:8080"
	c.UnlockTimeout = 30 * time.Second
}

// parseEnv overlays settings from the environment.
func parseEnv(c *Config) {
	if raw := os.Getenv(UnlockTimeoutEnv); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			c.UnlockTimeout = time.Duration(secs) * time.Second
		}
	}
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
