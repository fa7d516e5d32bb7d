package schema

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

type Config struct {
	// RegistryFile is the JSON schema registry read by Open. Empty starts with no schemas, so every
	// component falls back to the unknown schema policy.
	RegistryFile string `env:"SCHEMA_REGISTRY_FILE"`

	// CacheBytes sizes the lookup cache. Zero disables it.
	CacheBytes int `env:"SCHEMA_CACHE_BYTES" envDefault:"0"`

	// CacheTTL expires cached schemas. Zero keeps them until evicted.
	CacheTTL time.Duration `env:"SCHEMA_CACHE_TTL" envDefault:"0s"`
}

// LoadConfig reads the schema registry configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse schema config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate schema config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.CacheBytes < 0 {
		return eris.New("schema cache size cannot be negative")
	}
	if cfg.CacheTTL < 0 {
		return eris.New("schema cache TTL cannot be negative")
	}
	return nil
}

// Open builds the registry described by cfg.
func Open(cfg Config) (Registry, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	registry := NewMapRegistry()
	if cfg.RegistryFile != "" {
		var err error
		if registry, err = LoadFile(cfg.RegistryFile); err != nil {
			return nil, err
		}
	}
	if cfg.CacheBytes == 0 {
		return registry, nil
	}
	return NewCachedRegistry(registry, cfg.CacheBytes, cfg.CacheTTL), nil
}
