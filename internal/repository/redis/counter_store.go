package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"coach-service/internal/client"
	"coach-service/internal/util"
)

const admissionPrefix = "admission:"

// slidingWindowScript performs check-and-record as one atomic operation so
// two concurrent callers sharing an identifier cannot both take the last
// slot. Members are unique per event; scores are epoch millis.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, ttl)
    allowed = 1
    count = count + 1
end

local oldest = 0
local head = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if head[2] then
    oldest = tonumber(head[2])
end

return {allowed, count, oldest}
`

// CounterStore implements repository.CounterStore on Redis sorted sets.
type CounterStore struct {
	client *client.RedisClient
}

func NewCounterStore(c *client.RedisClient) *CounterStore {
	return &CounterStore{client: c}
}

func (s *CounterStore) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, int64, error) {
	nowMs := time.Now().UnixMilli()
	windowStart := nowMs - window.Milliseconds()
	ttlSeconds := int(window.Seconds()) + 1

	result, err := s.client.Eval(ctx, slidingWindowScript,
		[]string{admissionPrefix + key},
		nowMs, windowStart, limit, ttlSeconds, uuid.NewString())
	if err != nil {
		return false, 0, 0, fmt.Errorf("sliding window eval failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return false, 0, 0, fmt.Errorf("unexpected result format from sliding window script")
	}

	allowed := values[0].(int64) == 1
	count := int(values[1].(int64))
	oldest := values[2].(int64)

	util.Debug("Sliding window check",
		zap.String("key", key),
		zap.Bool("allowed", allowed),
		zap.Int("count", count),
		zap.Int("limit", limit))

	return allowed, count, oldest, nil
}
