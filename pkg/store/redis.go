package store

import (
	"context"
	"errors"

	"github.com/pion/logging"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces keys when RedisStoreConfig.Prefix is empty.
const DefaultRedisPrefix = "camlink:"

// DefaultUpdateRetries bounds optimistic transaction retries in Update.
const DefaultUpdateRetries = 16

// RedisStoreConfig configures a RedisStore.
type RedisStoreConfig struct {
	// Client is the Redis client. Required.
	Client redis.UniversalClient

	// Prefix is prepended to every key, typically one prefix per install.
	// Default: DefaultRedisPrefix
	Prefix string

	// MaxRetries bounds WATCH/MULTI retries when Update races another writer.
	// Default: DefaultUpdateRetries
	MaxRetries int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// RedisStore is a Store backed by Redis strings.
// Update uses an optimistic WATCH/MULTI transaction on the single key.
type RedisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
	log        logging.LeveledLogger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	if config.Client == nil {
		return nil, errors.New("store: redis client is required")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultRedisPrefix
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultUpdateRetries
	}

	r := &RedisStore{
		client:     config.Client,
		prefix:     config.Prefix,
		maxRetries: config.MaxRetries,
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("store-redis")
	}
	return r, nil
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Get returns the value stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrInvalidKey
	}
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set stores value under key with no expiry.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

// Delete removes key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return r.client.Del(ctx, r.key(key)).Err()
}

// Update runs fn inside a WATCH on key and commits with MULTI/EXEC.
// It retries when another client modified the key in between and returns
// ErrConflict once retries are exhausted.
func (r *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	if key == "" {
		return ErrInvalidKey
	}
	k := r.key(key)

	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, k).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok = false
		} else if err != nil {
			return err
		}

		v, keep, err := fn(old, ok)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if keep {
				pipe.Set(ctx, k, v, 0)
			} else {
				pipe.Del(ctx, k)
			}
			return nil
		})
		return err
	}

	for i := 0; i < r.maxRetries; i++ {
		err := r.client.Watch(ctx, txf, k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if r.log != nil {
			r.log.Debugf("update of %s raced another writer, retrying", key)
		}
	}
	return ErrConflict
}

// Verify RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
