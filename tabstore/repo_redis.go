package tabstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// swapScript sets KEYS[1] to ARGV[2] with a PX of ARGV[3] if it currently holds ARGV[1].
var swapScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// RedisRepo keeps tab values in Redis under "tab:<tabID>:<key>", each with the
// tab TTL refreshed on write.
type RedisRepo struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*RedisRepo)(nil)

// RedisOptions configures NewRedisRepo.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisRepo connects to Redis and pings it.
func NewRedisRepo(ctx context.Context, opts RedisOptions) (*RedisRepo, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("[tabstore NewRedisRepo] ping %s: %w", opts.Addr, err)
	}
	return &RedisRepo{rdb: rdb, ttl: opts.TTL}, nil
}

func (r *RedisRepo) Get(ctx context.Context, tabID, key string) (string, error) {
	if err := validate(tabID, key); err != nil {
		return "", err
	}
	v, err := r.rdb.Get(ctx, redisKey(tabID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[tabstore redis Get] %w", err)
	}
	return v, nil
}

func (r *RedisRepo) Set(ctx context.Context, tabID, key, value string) error {
	if err := validate(tabID, key); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, redisKey(tabID, key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("[tabstore redis Set] %w", err)
	}
	return nil
}

func (r *RedisRepo) Take(ctx context.Context, tabID, key string) (string, error) {
	if err := validate(tabID, key); err != nil {
		return "", err
	}
	v, err := r.rdb.GetDel(ctx, redisKey(tabID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("[tabstore redis Take] %w", err)
	}
	return v, nil
}

func (r *RedisRepo) Swap(ctx context.Context, tabID, key, old, value string) (bool, error) {
	if err := validate(tabID, key); err != nil {
		return false, err
	}
	n, err := swapScript.Run(ctx, r.rdb, []string{redisKey(tabID, key)}, old, value, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("[tabstore redis Swap] %w", err)
	}
	return n == 1, nil
}

func (r *RedisRepo) Delete(ctx context.Context, tabID string, keys ...string) error {
	if tabID == "" {
		return errors.New("tabID cannot be empty")
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, redisKey(tabID, k))
	}
	if err := r.rdb.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("[tabstore redis Delete] %w", err)
	}
	return nil
}

func (r *RedisRepo) Clear(ctx context.Context, tabID string) error {
	return r.Delete(ctx, tabID, KeyOAuthState, KeyPKCEVerifier, KeyAdminSession)
}

// Close releases the Redis connection pool.
func (r *RedisRepo) Close() error {
	return r.rdb.Close()
}

func redisKey(tabID, key string) string {
	return "tab:" + tabID + ":" + key
}
