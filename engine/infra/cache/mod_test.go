package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

func newTestContext(t *testing.T) (context.Context, *config.Config) {
	t.Helper()
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	mgr := config.NewManager(ctx, config.NewService())
	_, err := mgr.Load(ctx, config.NewDefaultProvider())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close(ctx) })
	return config.ContextWithManager(ctx, mgr), mgr.Get()
}

func TestSetupCache_ModeAware(t *testing.T) {
	t.Run("Should start an embedded server in standalone mode", func(t *testing.T) {
		ctx, cfg := newTestContext(t)
		cfg.Mode = config.ModeDistributed
		cfg.Redis.Mode = config.ModeStandalone

		cache, cleanup, err := SetupCache(ctx)
		require.NoError(t, err)
		t.Cleanup(cleanup)

		assert.Equal(t, config.ModeStandalone, cache.Mode)
		require.NoError(t, cache.Client.Set(ctx, "k", "v", 0).Err())
		assert.NoError(t, cache.HealthCheck(ctx))
	})

	t.Run("Should fail when the distributed server is unreachable", func(t *testing.T) {
		ctx, cfg := newTestContext(t)
		cfg.Redis.Mode = config.ModeDistributed
		cfg.Redis.URL = "redis://127.0.0.1:1"
		cfg.Redis.PingTimeout = 200 * time.Millisecond

		_, _, err := SetupCache(ctx)
		assert.Error(t, err)
	})

	t.Run("Should connect to an external server in distributed mode", func(t *testing.T) {
		ctx, cfg := newTestContext(t)
		mr, err := NewMiniredisEmbedded(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = mr.Close(ctx) })
		cfg.Redis.Mode = config.ModeDistributed
		cfg.Redis.URL = "redis://" + mr.Addr()

		cache, cleanup, err := SetupCache(ctx)
		require.NoError(t, err)
		t.Cleanup(cleanup)

		require.NoError(t, cache.Client.Incr(ctx, "counter").Err())
		val, err := mr.Client().Get(ctx, "counter").Result()
		require.NoError(t, err)
		assert.Equal(t, "1", val)
	})
}

func TestMiniredisEmbedded(t *testing.T) {
	t.Run("Should close cleanly more than once", func(t *testing.T) {
		ctx, _ := newTestContext(t)
		mr, err := NewMiniredisEmbedded(ctx)
		require.NoError(t, err)

		assert.NoError(t, mr.Close(ctx))
		assert.NoError(t, mr.Close(ctx))
	})
}
