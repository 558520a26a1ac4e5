// Package config loads the parcel client configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the client-side configuration.
type Config struct {
	Registry RegistrySettings `toml:"registry"`
	Cache    CacheSettings    `toml:"cache"`
}

// CacheSettings is the [cache] section.
type CacheSettings struct {
	// Dir overrides the query cache location. Empty uses the XDG default.
	Dir string `toml:"dir"`
}

// RegistrySettings is the [registry] section.
type RegistrySettings struct {
	URL      string `toml:"url"`       // Registry base URL
	Token    string `toml:"token"`     // Auth token
	TokenEnv string `toml:"token_env"` // Env var name for token
}

// DefaultRegistryURL is used when no configuration is present.
const DefaultRegistryURL = "https://registry.parcel.dev"

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = os.Getenv("HOME")
	}
	return filepath.Join(configDir, "parcel", "parcel.toml")
}

// Load reads the configuration from path. An empty path uses DefaultPath;
// a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := &Config{
		Registry: RegistrySettings{URL: DefaultRegistryURL},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.Registry.URL == "" {
		cfg.Registry.URL = DefaultRegistryURL
	}

	return cfg, nil
}

// ResolveToken returns the auth token, preferring the configured env var
// over the literal token value.
func (c *Config) ResolveToken() string {
	if c.Registry.TokenEnv != "" {
		if v := os.Getenv(c.Registry.TokenEnv); v != "" {
			return v
		}
	}
	return c.Registry.Token
}
