package persist

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

// RedisStorage stores each persisted store as one string key named after it.
type RedisStorage struct {
	client *redis.Client
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage connects to addr and pings it.
func NewRedisStorage(ctx context.Context, addr, password string) (*RedisStorage, error) {
	if addr == "" {
		return nil, eris.New("redis address cannot be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "failed to connect to redis at %s", addr)
	}
	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	return eris.Wrap(r.client.Set(ctx, name, data, 0).Err(), "failed to set store key")
}

func (r *RedisStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, name).Bytes()
	if err != nil {
		if eris.Is(err, redis.Nil) {
			return nil, eris.Wrapf(ErrNotFound, "key %s", name)
		}
		return nil, eris.Wrap(err, "failed to get store key")
	}
	return data, nil
}

func (r *RedisStorage) Wipe(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return eris.Wrap(r.client.Del(ctx, name).Err(), "failed to delete store key")
}

func (r *RedisStorage) WipeAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, store.NamePrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "failed to scan store keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return eris.Wrap(r.client.Del(ctx, keys...).Err(), "failed to delete store keys")
}

func (r *RedisStorage) Close() error {
	return eris.Wrap(r.client.Close(), "failed to close redis client")
}
