package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisMaxRetries   = 4
	redisScanCount    = 256
	defaultRedisGrace = 10 * time.Minute
)

// RedisConfig tunes a [RedisStore].
type RedisConfig struct {
	// Prefix namespaces keys as "<prefix>:<id>".
	Prefix string
	// Grace is added to the ttl passed to Create when setting the key expiry,
	// so that lazy reads still observe an expired record (and report it as
	// expired) for a while before Redis drops it on its own.
	Grace time.Duration
}

// RedisStore is a [Store] shared through Redis. Mutations run as
// WATCH/MULTI optimistic transactions and retry on contention, so a
// MutateFunc may be invoked more than once for a single call and must keep
// its side effects idempotent.
type RedisStore[T Record] struct {
	redis  redis.UniversalClient
	prefix string
	grace  time.Duration
}

// NewRedisStore binds a store to redisClient.
func NewRedisStore[T Record](redisClient redis.UniversalClient, cfg RedisConfig) *RedisStore[T] {
	if cfg.Prefix == "" {
		cfg.Prefix = "cas"
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	if cfg.Grace == 0 {
		cfg.Grace = defaultRedisGrace
	}
	return &RedisStore[T]{
		redis:  redisClient,
		prefix: cfg.Prefix,
		grace:  cfg.Grace,
	}
}

func (s *RedisStore[T]) key(id string) string {
	return s.prefix + ":" + id
}

func (s *RedisStore[T]) Create(ctx context.Context, id string, rec T, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, s.key(id), encoded, ttl+s.grace).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if !ok {
		return ErrDuplicateID
	}
	return nil
}

func (s *RedisStore[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	data, err := s.redis.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return decodeRecord[T](data)
}

func (s *RedisStore[T]) Mutate(ctx context.Context, id string, fn MutateFunc[T]) (T, error) {
	var zero T
	key := s.key(id)

	for i := 0; i < redisMaxRetries; i++ {
		var (
			out   T
			fnErr error
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			rec, err := decodeRecord[T](data)
			if err != nil {
				return err
			}

			action, callErr := fn(&rec)
			out, fnErr = rec, callErr

			switch action {
			case Update:
				updated, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.SetArgs(ctx, key, updated, redis.SetArgs{KeepTTL: true})
					return nil
				})
				return err
			case Delete:
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			default:
				return nil
			}
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return zero, ErrNotFound
			}
			return zero, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return out, fnErr
	}

	return zero, fmt.Errorf("%w: mutate contention on %s", ErrBackendUnavailable, id)
}

func (s *RedisStore[T]) TakeIf(ctx context.Context, id string, pred func(T) bool) (T, bool, error) {
	var zero T
	key := s.key(id)

	for i := 0; i < redisMaxRetries; i++ {
		var (
			out   T
			taken bool
		)

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			rec, err := decodeRecord[T](data)
			if err != nil {
				return err
			}
			out = rec
			if !pred(rec) {
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			taken = true
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return zero, false, ErrNotFound
			}
			return zero, false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return out, taken, nil
	}

	return zero, false, fmt.Errorf("%w: take contention on %s", ErrBackendUnavailable, id)
}

func (s *RedisStore[T]) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return n > 0, nil
}

// SweepExpired scans the store's key space and removes records whose expiry
// is at or before now, each through TakeIf. A key that fails on its own is
// skipped; only a failing SCAN ends the pass with an error.
func (s *RedisStore[T]) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	isExpired := expiredAt(now)
	pattern := s.prefix + ":*"
	removed := 0

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, redisScanCount).Result()
		if err != nil {
			return removed, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}

		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			id := strings.TrimPrefix(key, s.prefix+":")
			_, taken, err := s.TakeIf(ctx, id, func(rec T) bool {
				return isExpired(rec)
			})
			if err != nil {
				// The next pass retries keys that fail here.
				continue
			}
			if taken {
				removed++
			}
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

func decodeRecord[T Record](data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("decode session record: %w", err)
	}
	return rec, nil
}
