package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultRunGuardTTL = 10 * time.Minute

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunGuard is a cross-process single-run lock per job ID. The TTL caps
// how long a crashed holder can block new runs.
type RedisRunGuard struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisRunGuard(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRunGuard {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultRunGuardTTL
	}
	return &RedisRunGuard{client: client, prefix: prefix, ttl: ttl}
}

// Acquire takes the lock for id. ok is false when another run holds it.
// release is nil unless ok is true.
func (g *RedisRunGuard) Acquire(ctx context.Context, id string) (func(), bool, error) {
	key := g.prefix + "run:" + id
	token := uuid.NewString()
	status, err := g.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: g.ttl}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("acquire run guard: %w", err)
	}
	if status != "OK" {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.client, []string{key}, token).Err()
	}
	return release, true, nil
}
