package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/article-archiver/pkg/utils"
)

const archivedKeyPrefix = "archived:"

// RedisStore remembers recently archived URLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisStore{client: rdb}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// generateKey hashes the URL so arbitrary URLs make safe keys.
func generateKey(url string) string {
	return archivedKeyPrefix + utils.HashURL(url)
}

// MarkAsArchived sets a key with a TTL to prevent re-archiving.
func (s *RedisStore) MarkAsArchived(ctx context.Context, url string, ttl time.Duration) error {
	return s.client.Set(ctx, generateKey(url), "1", ttl).Err()
}

// IsRecentlyArchived checks if a URL has been archived within the TTL.
func (s *RedisStore) IsRecentlyArchived(ctx context.Context, url string) (bool, error) {
	val, err := s.client.Exists(ctx, generateKey(url)).Result()
	if err != nil {
		return false, err
	}
	return val == 1, nil
}
