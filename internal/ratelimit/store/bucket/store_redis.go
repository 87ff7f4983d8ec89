package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kyc/internal/ratelimit/models"
)

const keyPrefix = "kyc:ratelimit:"

// allowScript increments the window counter and starts its expiry on the
// first hit, returning the count and the remaining TTL in milliseconds.
var allowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('PTTL', KEYS[1])}
`)

// RedisBucketStore implements a fixed window limiter shared by every replica.
type RedisBucketStore struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewRedisBucketStore(client redis.Cmdable) *RedisBucketStore {
	return &RedisBucketStore{client: client, now: time.Now}
}

func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	fullKey := keyPrefix + key

	vals, err := allowScript.Run(ctx, s.client, []string{fullKey}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(vals) != 2 {
		return nil, fmt.Errorf("rate limit %s: unexpected script reply %v", key, vals)
	}

	remainingTTL := time.Duration(vals[1]) * time.Millisecond
	if remainingTTL <= 0 {
		remainingTTL = window
	}
	count := int(vals[0])
	result := &models.RateLimitResult{
		Allowed: count <= limit,
		Limit:   limit,
		ResetAt: s.now().Add(remainingTTL),
	}
	if result.Allowed {
		result.Remaining = limit - count
	}
	return result, nil
}

func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset rate limit %s: %w", key, err)
	}
	return nil
}
