package blacklist

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "auth:blacklist:"

// Redis is a shared Store for multi-instance deployments. Keys expire with
// the token's remaining lifetime, so the set is self-bounding.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Add(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already expired; signature verification rejects it anyway.
		return nil
	}
	return r.client.Set(ctx, redisKey(token), "1", ttl).Err()
}

func (r *Redis) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cleanup is a no-op: Redis evicts expired keys itself.
func (r *Redis) Cleanup(_ context.Context) error {
	return nil
}

// Raw tokens are long; store a digest instead of the full string.
func redisKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return redisKeyPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}
