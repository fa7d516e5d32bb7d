package persist

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

type Config struct {
	// Storage is one of NOP, REDIS, BOLT, SQLITE or JETSTREAM.
	Storage string `env:"ECSCACHE_STORAGE" envDefault:"BOLT"`

	// Name is the store name. The persisted entry is named ECSCache<Name>.
	Name string `env:"ECSCACHE_NAME" envDefault:"world"`

	RedisAddress  string `env:"ECSCACHE_REDIS_ADDRESS" envDefault:"localhost:6379"`
	RedisPassword string `env:"ECSCACHE_REDIS_PASSWORD"`

	BoltPath   string `env:"ECSCACHE_BOLT_PATH" envDefault:"ecscache.db"`
	SQLitePath string `env:"ECSCACHE_SQLITE_PATH" envDefault:"ecscache.sqlite"`

	// JetStreamMaxBytes bounds the object store bucket. Required by some NATS providers.
	JetStreamMaxBytes uint64 `env:"ECSCACHE_JETSTREAM_MAX_BYTES" envDefault:"0"`

	NATS NATSConfig
}

// LoadConfig reads the persistence configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return cfg, eris.Wrap(err, "failed to parse persistence config")
	}
	if err := cfg.validate(); err != nil {
		return cfg, eris.Wrap(err, "failed to validate persistence config")
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	t, err := ParseStorageType(cfg.Storage)
	if err != nil {
		return err
	}
	if cfg.Name == "" {
		return eris.New("store name cannot be empty")
	}
	switch t {
	case StorageTypeRedis:
		if cfg.RedisAddress == "" {
			return eris.New("redis address cannot be empty")
		}
	case StorageTypeBolt:
		if cfg.BoltPath == "" {
			return eris.New("bolt path cannot be empty")
		}
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return eris.New("sqlite path cannot be empty")
		}
	case StorageTypeJetStream:
		return cfg.NATS.validate()
	case StorageTypeNop, StorageTypeUndefined:
	}
	return nil
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (Storage, error) {
	if err := cfg.validate(); err != nil {
		return nil, eris.Wrap(err, "invalid persistence config")
	}
	t, _ := ParseStorageType(cfg.Storage)

	log.Debug().Str("storage", t.String()).Msg("opening store persistence")
	switch t {
	case StorageTypeNop:
		return NewNopStorage(), nil
	case StorageTypeRedis:
		s, err := NewRedisStorage(ctx, cfg.RedisAddress, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageTypeBolt:
		s, err := OpenBoltStorage(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageTypeSQLite:
		s, err := OpenSQLiteStorage(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageTypeJetStream:
		s, err := NewJetStreamStorage(ctx, JetStreamOptions{
			NATS:     cfg.NATS,
			Log:      log,
			MaxBytes: cfg.JetStreamMaxBytes,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case StorageTypeUndefined:
	}
	return nil, eris.Errorf("unsupported storage type %s", t)
}
