package syncer

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
)

type Config struct {
	// NumChunks is the number of pages the remote splits every paged response into.
	NumChunks uint32 `env:"KAMIGAZE_NUM_CHUNKS" envDefault:"20"`

	// ConflictPolicy is "skip" or "resync".
	ConflictPolicy string `env:"KAMIGAZE_CONFLICT_POLICY" envDefault:"skip"`

	// SyncInterval is the period of the sync loop. Zero runs a single sync.
	SyncInterval time.Duration `env:"KAMIGAZE_SYNC_INTERVAL" envDefault:"0s"`

	// SyncTimeout bounds a single sync.
	SyncTimeout time.Duration `env:"KAMIGAZE_SYNC_TIMEOUT" envDefault:"5m"`
}

// LoadConfig reads the sync configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse sync config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate sync config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.NumChunks == 0 {
		return eris.New("number of chunks must be at least 1")
	}
	if _, err := ParseConflictPolicy(cfg.ConflictPolicy); err != nil {
		return err
	}
	if cfg.SyncInterval < 0 {
		return eris.New("sync interval cannot be negative")
	}
	if cfg.SyncTimeout <= 0 {
		return eris.New("sync timeout must be positive")
	}
	return nil
}

// Options returns the syncer options described by the config.
func (cfg *Config) Options() []Option {
	policy, _ := ParseConflictPolicy(cfg.ConflictPolicy)
	return []Option{WithNumChunks(cfg.NumChunks), WithConflictPolicy(policy)}
}

// ConflictPolicy selects how a sync reacts to registry entries whose declared index does not match
// the local registry.
type ConflictPolicy uint8

const (
	// ConflictSkip drops the entry, logs a warning and carries on.
	ConflictSkip ConflictPolicy = iota
	// ConflictResync abandons the sync and immediately retries it as a full load. If the full load
	// conflicts too, Sync returns the store.RegistryIndexConflict.
	ConflictResync
)

const (
	conflictSkipString   = "skip"
	conflictResyncString = "resync"
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictSkip:
		return conflictSkipString
	case ConflictResync:
		return conflictResyncString
	default:
		return "undefined"
	}
}

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(s) {
	case conflictSkipString:
		return ConflictSkip, nil
	case conflictResyncString:
		return ConflictResync, nil
	default:
		return ConflictSkip, eris.Errorf("invalid conflict policy: %s (must be 'skip' or 'resync')", s)
	}
}
