package persist

import (
	"context"
	"math"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// JetStreamStorage keeps every persisted store as one object of a JetStream object store bucket.
type JetStreamStorage struct {
	conn *natsConn
	os   jetstream.ObjectStore
}

var _ Storage = (*JetStreamStorage)(nil)

// JetStreamOptions configures NewJetStreamStorage.
type JetStreamOptions struct {
	NATS NATSConfig
	Log  zerolog.Logger

	// Bucket defaults to the store name prefix.
	Bucket string

	// MaxBytes bounds the bucket size. Zero means unlimited.
	MaxBytes uint64
}

// NewJetStreamStorage connects to NATS and opens the bucket, creating it when missing.
func NewJetStreamStorage(ctx context.Context, opts JetStreamOptions) (*JetStreamStorage, error) {
	if opts.Bucket == "" {
		opts.Bucket = store.NamePrefix
	}
	if opts.MaxBytes > math.MaxInt64 {
		return nil, eris.New("storage max bytes exceeds maximum int64 value")
	}

	conn, err := connectNATS(opts.NATS, opts.Log)
	if err != nil {
		return nil, err
	}
	js, err := jetstream.New(conn.Conn)
	if err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "failed to create JetStream client")
	}

	osConfig := jetstream.ObjectStoreConfig{
		Bucket:   opts.Bucket,
		MaxBytes: int64(opts.MaxBytes),
	}
	os, err := js.CreateObjectStore(ctx, osConfig)
	if err != nil {
		if !eris.Is(err, jetstream.ErrBucketExists) {
			conn.Close()
			return nil, eris.Wrapf(err, "failed to create ObjectStore (bucket=%s)", opts.Bucket)
		}
		os, err = js.ObjectStore(ctx, opts.Bucket)
		if err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "failed to get existing ObjectStore (bucket=%s)", opts.Bucket)
		}
	}

	return &JetStreamStorage{conn: conn, os: os}, nil
}

func (j *JetStreamStorage) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := j.os.PutBytes(ctx, name, data); err != nil {
		return eris.Wrap(err, "failed to store object")
	}
	return nil
}

func (j *JetStreamStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := j.os.GetBytes(ctx, name)
	if err != nil {
		if eris.Is(err, jetstream.ErrObjectNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "object %s", name)
		}
		return nil, eris.Wrap(err, "failed to get object")
	}
	return data, nil
}

func (j *JetStreamStorage) Wipe(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := j.os.Delete(ctx, name); err != nil && !eris.Is(err, jetstream.ErrObjectNotFound) {
		return eris.Wrap(err, "failed to delete object")
	}
	return nil
}

func (j *JetStreamStorage) WipeAll(ctx context.Context) error {
	infos, err := j.os.List(ctx)
	if err != nil {
		if eris.Is(err, jetstream.ErrNoObjectsFound) {
			return nil
		}
		return eris.Wrap(err, "failed to list objects")
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.Name, store.NamePrefix) {
			continue
		}
		if err := j.Wipe(ctx, info.Name); err != nil {
			return err
		}
	}
	return nil
}

func (j *JetStreamStorage) Close() error {
	j.conn.Close()
	return nil
}
