package index

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the snapshot under the fixed keys, optionally namespaced by
// a prefix so several deployments can share one server.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// DialRedis connects and pings, failing fast when the server is unreachable.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	keys := []string{IndexKey, VersionKey, UpdatedKey}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	res, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("mget snapshot: %w", err)
	}

	vals := make(map[string]string, len(keys))
	for i, v := range res {
		if str, ok := v.(string); ok {
			vals[keys[i]] = str
		}
	}
	return decodeKV(vals)
}

// Save writes all keys in one MULTI/EXEC so readers never see a new index with
// an old version token.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	vals, err := encodeKV(snap)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for k, v := range vals {
			pipe.Set(ctx, s.key(k), v, 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
