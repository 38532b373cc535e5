package tokenstore

import (
	"context"

	interrors "github.com/jrsteele09/go-storefront/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps the token under <prefix><tokenKey> in Redis, with no expiry; the server
// decides when a token stops being valid.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore connects to Redis and pings it before returning.
// Call Close when the store is no longer needed.
func NewRedisStore(ctx context.Context, redisURL, key string) (*RedisStore, error) {
	if key == "" {
		return nil, errors.New("[NewRedisStore] key is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "[NewRedisStore] parse redis url")
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(interrors.ErrStoreUnavailable, err.Error())
	}

	return &RedisStore{rdb: rdb, key: key}, nil
}

func (rs *RedisStore) Close() error {
	return rs.rdb.Close()
}

func (rs *RedisStore) Get(ctx context.Context) (string, error) {
	token, err := rs.rdb.Get(ctx, rs.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", interrors.ErrNoToken
	}
	if err != nil {
		return "", errors.Wrap(err, "[RedisStore.Get]")
	}
	if token == "" {
		return "", interrors.ErrNoToken
	}
	return token, nil
}

func (rs *RedisStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return errors.Wrap(interrors.ErrInvalidInput, "[RedisStore.Set] empty token")
	}
	if err := rs.rdb.Set(ctx, rs.key, token, 0).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Set]")
	}
	return nil
}

func (rs *RedisStore) Delete(ctx context.Context) error {
	if err := rs.rdb.Del(ctx, rs.key).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Delete]")
	}
	return nil
}
