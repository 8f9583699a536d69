package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/studyflow/pkg/api"
)

// RedisStore is a Store backed by Redis. Plain records use string keys,
// the session context uses a HASH. Expiry is native Redis TTL.
type RedisStore struct {
	client redis.UniversalClient
}

var (
	_ Store   = (*RedisStore)(nil)
	_ Swapper = (*RedisStore)(nil)
)

// NewRedisStore creates a RedisStore on top of client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func storeErr(op, key string, err error) error {
	return &api.StoreError{Op: op, Key: key, Err: err}
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", storeErr("get", key, err)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return storeErr("set", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return storeErr("del", key, err)
	}
	return nil
}

func (r *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]string{}, nil
		}
		return nil, storeErr("hgetall", key, err)
	}
	if vals == nil {
		vals = map[string]string{}
	}
	return vals, nil
}

func (r *RedisStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	if len(fields) > 0 {
		values := make(map[string]any, len(fields))
		for k, v := range fields {
			values[k] = v
		}
		pipe.HSet(ctx, key, values)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if len(fields) == 0 && ttl <= 0 {
		return nil
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return storeErr("hset", key, err)
	}
	return nil
}

// redisCompareAndSwapLua sets KEYS[1] to ARGV[2] (with ARGV[3] ms expiry
// when > 0) if its current value, or ARGV[1] when absent, equals any of
// ARGV[4..]. Returns {swapped, observed}.
var redisCompareAndSwapLua = redis.NewScript(`
local key = KEYS[1]
local cur = redis.call('GET', key)
if not cur then
	cur = ARGV[1]
end
local value = ARGV[2]
local ttlms = tonumber(ARGV[3])

for i = 4, #ARGV do
	if cur == ARGV[i] then
		if ttlms > 0 then
			redis.call('SET', key, value, 'PX', ttlms)
		else
			redis.call('SET', key, value)
		end
		return {1, cur}
	end
end
return {0, cur}
`)

func (r *RedisStore) CompareAndSwap(ctx context.Context, key string, expected []string, missing, value string, ttl time.Duration) (string, bool, error) {
	args := make([]any, 0, 3+len(expected))
	args = append(args, missing, value, ttl.Milliseconds())
	for _, e := range expected {
		args = append(args, e)
	}

	res, err := redisCompareAndSwapLua.Run(ctx, r.client, []string{key}, args...).Slice()
	if err != nil {
		return "", false, storeErr("cas", key, err)
	}
	if len(res) != 2 {
		return "", false, storeErr("cas", key, fmt.Errorf("unexpected script reply %v", res))
	}

	var swapped bool
	switch v := res[0].(type) {
	case int64:
		swapped = v == 1
	case string:
		swapped = v == "1"
	}
	observed, _ := res[1].(string)
	return observed, swapped, nil
}

// Ping verifies connectivity; used at startup and by health checks.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storeErr("ping", "", err)
	}
	return nil
}
