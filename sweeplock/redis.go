package sweeplock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "checkout:lock:"

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX PX, shared by every instance that
// talks to the same Redis.
type Redis struct {
	client redis.UniversalClient
	token  string
}

// compile-time interface check
var _ Locker = (*Redis)(nil)

// NewRedis creates a locker on client. Each locker holds a random token so
// it only ever releases its own leases.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{
		client: client,
		token:  uuid.NewString(),
	}
}

// Connect opens a Redis client from a redis:// URL or a host:port address.
func Connect(redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("sweeplock: parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, r.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("sweeplock: acquire %s: %w", key, err)
	}
	return ok, nil
}

// Release implements Locker.
func (r *Redis) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{keyPrefix + key}, r.token).Err(); err != nil {
		return fmt.Errorf("sweeplock: release %s: %w", key, err)
	}
	return nil
}
