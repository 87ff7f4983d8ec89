package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kyc/internal/verification/models"
	id "kyc/pkg/domain"
	"kyc/pkg/platform/sentinel"
)

const (
	scoreKeyPrefix  = "kyc:score:"
	defaultScoreTTL = 5 * time.Minute
)

// setIfNewerScript stores the score unless the cached entry was calculated
// later, so a slow reader cannot put back a score a recalculation replaced.
var setIfNewerScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'at')
if cur and tonumber(cur) > tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'score', ARGV[1], 'at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// RedisScoreCache is a cache-aside layer in front of the score store. Each
// entry is a hash holding the encoded score and its calculation time.
type RedisScoreCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisScoreCache(client redis.Cmdable, ttl time.Duration) *RedisScoreCache {
	if ttl <= 0 {
		ttl = defaultScoreTTL
	}
	return &RedisScoreCache{client: client, ttl: ttl}
}

// Get returns sentinel.ErrNotFound on a cache miss.
func (c *RedisScoreCache) Get(ctx context.Context, userID id.UserID) (*models.Score, error) {
	raw, err := c.client.HGet(ctx, scoreKeyPrefix+userID.String(), "score").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cached score: %w", err)
	}
	var score models.Score
	if err := json.Unmarshal(raw, &score); err != nil {
		return nil, fmt.Errorf("decode cached score: %w", err)
	}
	return &score, nil
}

func (c *RedisScoreCache) Set(ctx context.Context, score *models.Score) error {
	raw, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("encode score: %w", err)
	}
	keys := []string{scoreKeyPrefix + score.UserID.String()}
	if err := setIfNewerScript.Run(ctx, c.client, keys, raw, score.CalculatedAt.UnixMilli(), c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("cache score: %w", err)
	}
	return nil
}

func (c *RedisScoreCache) Invalidate(ctx context.Context, userID id.UserID) error {
	return c.client.Del(ctx, scoreKeyPrefix+userID.String()).Err()
}
