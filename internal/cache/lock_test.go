package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNoopLockerAlwaysGrants(t *testing.T) {
	var locker Locker = NoopLocker{}
	for i := 0; i < 2; i++ {
		ok, err := locker.Acquire(context.Background(), "sweep", time.Minute)
		if err != nil || !ok {
			t.Fatalf("attempt %d: expected lease, got ok=%t err=%v", i+1, ok, err)
		}
	}
}

func TestRedisLockerGrantsOnce(t *testing.T) {
	addr := os.Getenv("POS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set POS_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	locker := NewRedisLocker(addr, "", 0)
	t.Cleanup(func() { _ = locker.Close() })
	if err := locker.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	key := "test:" + uuid.NewString()
	first, err := locker.Acquire(ctx, key, 5*time.Second)
	if err != nil || !first {
		t.Fatalf("expected first acquire to win, got ok=%t err=%v", first, err)
	}
	second, err := locker.Acquire(ctx, key, 5*time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if second {
		t.Fatalf("expected second acquire to be refused")
	}
}
