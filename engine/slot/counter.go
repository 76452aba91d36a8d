package slot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Counter is the shared integer every worker consults before running a job.
type Counter interface {
	Get(ctx context.Context) (int64, error)
	Incr(ctx context.Context) (int64, error)
	Decr(ctx context.Context) (int64, error)
}

// BoundedCounter increments only while the value stays within limit, as one
// atomic step.
type BoundedCounter interface {
	Counter
	TryIncr(ctx context.Context, limit int64) (bool, int64, error)
}

// MemoryCounter is an in-process Counter.
type MemoryCounter struct {
	mu    sync.Mutex
	value int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{}
}

func (c *MemoryCounter) Get(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, nil
}

func (c *MemoryCounter) Incr(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value, nil
}

func (c *MemoryCounter) Decr(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value--
	return c.value, nil
}

func (c *MemoryCounter) TryIncr(_ context.Context, limit int64) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value >= limit {
		return false, c.value, nil
	}
	c.value++
	return true, c.value, nil
}

// tryIncrScript increments KEYS[1] unless it already reached ARGV[1].
var tryIncrScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return {0, current}
end
return {1, redis.call('INCR', KEYS[1])}
`)

// RedisCounter stores the counter under a single Redis key.
type RedisCounter struct {
	client redis.UniversalClient
	key    string
}

func NewRedisCounter(client redis.UniversalClient, key string) (*RedisCounter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		return nil, fmt.Errorf("counter key is required")
	}
	return &RedisCounter{client: client, key: key}, nil
}

func (c *RedisCounter) Get(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading slot counter: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Incr(ctx context.Context) (int64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing slot counter: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) Decr(ctx context.Context) (int64, error) {
	n, err := c.client.Decr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("decrementing slot counter: %w", err)
	}
	return n, nil
}

func (c *RedisCounter) TryIncr(ctx context.Context, limit int64) (bool, int64, error) {
	res, err := tryIncrScript.Run(ctx, c.client, []string{c.key}, limit).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("bounded increment of slot counter: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected script reply %v", res)
	}
	return res[0] == 1, res[1], nil
}
