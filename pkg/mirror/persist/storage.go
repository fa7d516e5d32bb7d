// Package persist saves serialized stores between sessions. Every backend keys entries by the
// store's persisted name, which always starts with store.NamePrefix.
package persist

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

var (
	ErrNotFound    = eris.New("persisted store not found")
	ErrInvalidName = eris.New("persisted store name must start with " + store.NamePrefix)
)

// Storage persists serialized stores.
type Storage interface {
	// Save stores data under name, replacing any previous entry.
	Save(ctx context.Context, name string, data []byte) error

	// Load returns the data saved under name, or ErrNotFound.
	Load(ctx context.Context, name string) ([]byte, error)

	// Wipe deletes the entry saved under name. Wiping an absent entry is not an error.
	Wipe(ctx context.Context, name string) error

	// WipeAll deletes every persisted store.
	WipeAll(ctx context.Context) error

	Close() error
}

func validateName(name string) error {
	if !strings.HasPrefix(name, store.NamePrefix) {
		return eris.Wrapf(ErrInvalidName, "got %q", name)
	}
	return nil
}

// StorageType selects a Storage backend.
type StorageType uint8

const (
	StorageTypeUndefined StorageType = iota
	StorageTypeNop
	StorageTypeRedis
	StorageTypeBolt
	StorageTypeSQLite
	StorageTypeJetStream
)

const (
	nopStorageString       = "NOP"
	redisStorageString     = "REDIS"
	boltStorageString      = "BOLT"
	sqliteStorageString    = "SQLITE"
	jetStreamStorageString = "JETSTREAM"
	undefinedStorageString = "UNDEFINED"
)

func (s StorageType) String() string {
	switch s {
	case StorageTypeNop:
		return nopStorageString
	case StorageTypeRedis:
		return redisStorageString
	case StorageTypeBolt:
		return boltStorageString
	case StorageTypeSQLite:
		return sqliteStorageString
	case StorageTypeJetStream:
		return jetStreamStorageString
	case StorageTypeUndefined:
		return undefinedStorageString
	default:
		return undefinedStorageString
	}
}

func (s StorageType) IsValid() bool {
	return s > StorageTypeUndefined && s <= StorageTypeJetStream
}

func ParseStorageType(s string) (StorageType, error) {
	switch strings.ToUpper(s) {
	case nopStorageString:
		return StorageTypeNop, nil
	case redisStorageString:
		return StorageTypeRedis, nil
	case boltStorageString:
		return StorageTypeBolt, nil
	case sqliteStorageString:
		return StorageTypeSQLite, nil
	case jetStreamStorageString:
		return StorageTypeJetStream, nil
	default:
		return StorageTypeUndefined, eris.Errorf("invalid storage type: %s", s)
	}
}

// SaveStore serializes st and saves it under its persisted name.
func SaveStore(ctx context.Context, storage Storage, st *store.Store) error {
	data, err := st.Serialize()
	if err != nil {
		return err
	}
	if err := storage.Save(ctx, st.PersistedName(), data); err != nil {
		return eris.Wrapf(err, "failed to save store %s", st.Name())
	}
	return nil
}

// LoadStore restores st from its persisted entry. It returns ErrNotFound when nothing was saved,
// in which case st is unchanged.
func LoadStore(ctx context.Context, storage Storage, st *store.Store) error {
	data, err := storage.Load(ctx, st.PersistedName())
	if err != nil {
		return err
	}
	if err := st.Deserialize(data); err != nil {
		return eris.Wrapf(err, "failed to restore store %s", st.Name())
	}
	return nil
}
