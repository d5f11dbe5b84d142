package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if DEALFLOW_CONFIG is set
//  3. env (prefix DEALFLOW_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("DEALFLOW_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: DEALFLOW_ADDR, DEALFLOW_STORE_KIND, ...
	// Map env keys like DEALFLOW_STORE_KIND -> store_kind (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("DEALFLOW_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "dealflow_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.StoreKind != StoreMemory && c.StoreKind != StoreSQLite:
		return fmt.Errorf("%w: unknown store_kind %q", ErrInvalidConfig, c.StoreKind)
	case c.StoreKind == StoreSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must not be empty", ErrInvalidConfig)
	case c.DiligenceBaseURL == "":
		return fmt.Errorf("%w: diligence_base_url must not be empty", ErrInvalidConfig)
	case c.DiligencePollIntervalMS <= 0:
		return fmt.Errorf("%w: diligence_poll_interval_ms must be positive", ErrInvalidConfig)
	case c.DiligenceMaxPolls <= 0:
		return fmt.Errorf("%w: diligence_max_polls must be positive", ErrInvalidConfig)
	}
	return nil
}
