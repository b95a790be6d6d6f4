package app

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/cache"
	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/store/memory"
)

func TestOpenDefaultsToMemoryAndNoopLocker(t *testing.T) {
	deps, err := Open(context.Background(), config.Config{SweepPageSize: 10}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })

	if _, ok := deps.Repo.(*memory.Store); !ok {
		t.Fatalf("expected memory repository, got %T", deps.Repo)
	}
	if _, ok := deps.Locker.(cache.NoopLocker); !ok {
		t.Fatalf("expected noop locker, got %T", deps.Locker)
	}
	if deps.Service == nil {
		t.Fatalf("expected service to be wired")
	}
}

func TestOpenFallsBackWhenRedisIsDown(t *testing.T) {
	deps, err := Open(context.Background(), config.Config{RedisAddr: "127.0.0.1:1"}, zap.NewNop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })

	if _, ok := deps.Locker.(cache.NoopLocker); !ok {
		t.Fatalf("expected noop locker fallback, got %T", deps.Locker)
	}
}
