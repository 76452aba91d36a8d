package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

// Cache exposes the Redis client shared by every worker of a deployment.
type Cache struct {
	Client redis.UniversalClient
	Mode   string
}

// SetupCache picks the counter store for the configured mode. Standalone runs
// an embedded server; distributed connects to the configured Redis. The
// returned cleanup releases whatever was started.
func SetupCache(ctx context.Context) (*Cache, func(), error) {
	cfg := config.FromContext(ctx)
	if cfg == nil {
		return nil, nil, fmt.Errorf("configuration not found in context")
	}
	log := logger.FromContext(ctx)
	mode := cfg.EffectiveRedisMode()
	switch mode {
	case config.ModeStandalone:
		mr, err := NewMiniredisEmbedded(ctx)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := mr.Close(context.WithoutCancel(ctx)); err != nil {
				log.Warn("failed to stop embedded redis", "error", err)
			}
		}
		return &Cache{Client: mr.Client(), Mode: mode}, cleanup, nil
	case config.ModeDistributed:
		r, err := NewRedis(ctx, FromAppConfig(cfg))
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() { _ = r.Close() }
		return &Cache{Client: r.Client(), Mode: mode}, cleanup, nil
	default:
		return nil, nil, fmt.Errorf("unsupported redis mode %q", mode)
	}
}

// HealthCheck pings the store.
func (c *Cache) HealthCheck(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return fmt.Errorf("cache not initialized")
	}
	return c.Client.Ping(ctx).Err()
}
