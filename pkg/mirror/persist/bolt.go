package persist

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.etcd.io/bbolt"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// BoltStorage keeps every persisted store in one bucket of a bbolt file.
type BoltStorage struct {
	db *bbolt.DB
}

var _ Storage = (*BoltStorage)(nil)

var boltBucket = []byte(store.NamePrefix)

// OpenBoltStorage opens or creates the database at path.
func OpenBoltStorage(path string) (*BoltStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, eris.New("bolt storage path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, eris.Wrapf(err, "failed to open bolt db at %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to create bucket")
	}
	return &BoltStorage{db: db}, nil
}

func (b *BoltStorage) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "save canceled")
	}
	if err := validateName(name); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(name), data)
	})
	return eris.Wrap(err, "failed to put store")
}

func (b *BoltStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "load canceled")
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(name))
		if v == nil {
			return eris.Wrapf(ErrNotFound, "key %s", name)
		}
		// v is only valid inside the transaction.
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (b *BoltStorage) Wipe(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "wipe canceled")
	}
	if err := validateName(name); err != nil {
		return err
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(name))
	})
	return eris.Wrap(err, "failed to delete store")
}

func (b *BoltStorage) WipeAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "wipe canceled")
	}
	err := b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(boltBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(boltBucket)
		return err
	})
	return eris.Wrap(err, "failed to recreate bucket")
}

func (b *BoltStorage) Close() error {
	return eris.Wrap(b.db.Close(), "failed to close bolt db")
}
