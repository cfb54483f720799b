package persistence

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const (
	fieldValue   = "value"
	fieldVersion = "version"
	scanBatch    = 200
)

// RedisStore keeps each document in a hash holding its value and version.
type RedisStore struct {
	rdb    *Redis
	prefix string
}

// NewRedisStore builds the store. prefix namespaces every key.
func NewRedisStore(rdb *Redis, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	vals, err := s.rdb.Client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return Entry{}, Unavailable(err)
	}
	raw, ok := vals[fieldValue]
	if !ok {
		return Entry{}, ErrNotFound
	}
	version, err := strconv.ParseInt(vals[fieldVersion], 10, 64)
	if err != nil {
		return Entry{}, Unavailable(err)
	}
	return Entry{Value: []byte(raw), Version: version}, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateValue(value); err != nil {
		return err
	}
	k := s.key(key)
	_, err := s.rdb.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, fieldValue, string(value))
		pipe.HIncrBy(ctx, k, fieldVersion, 1)
		return nil
	})
	if err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *RedisStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if err := validateValue(value); err != nil {
		return 0, err
	}
	k := s.key(key)
	next := expected + 1

	err := s.rdb.Client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, k, fieldVersion).Int64()
		switch {
		case errors.Is(err, redis.Nil):
			current = 0
		case err != nil:
			return err
		}
		if current != expected {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, fieldValue, string(value), fieldVersion, next)
			return nil
		})
		return err
	}, k)

	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return 0, ErrVersionConflict
	default:
		return 0, Unavailable(err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Client.Del(ctx, s.key(key)).Err(); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *RedisStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	match := s.prefix + redisGlob(pattern)
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		batch, next, err := s.rdb.Client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return nil, Unavailable(err)
		}
		for _, k := range batch {
			seen[strings.TrimPrefix(k, s.prefix)] = struct{}{}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	s.rdb.Close()
	return nil
}

// redisGlob escapes every MATCH metacharacter except '*'.
func redisGlob(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(pattern)
}
