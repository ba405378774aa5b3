package quota

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/hitoshi/chat2doc/internal/model"
)

// setupTestRedis はテスト用のRedisクライアントを準備する。
// 到達できない場合はテストをスキップする。
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("テスト用Redisに接続できません（スキップ）: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisTracker_FiveThenDenied(t *testing.T) {
	client := setupTestRedis(t)
	tracker := NewRedisTracker(client, 5)
	ctx := context.Background()
	identity := model.NewAnonymousIdentity("anon_" + uuid.NewString())

	for i := 0; i < 5; i++ {
		d, err := tracker.CheckAndConsume(ctx, identity)
		if err != nil {
			t.Fatalf("call %d returned error: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("call %d denied, want allowed", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Errorf("call %d remaining = %d, want %d", i+1, d.Remaining, 5-(i+1))
		}
	}

	d, err := tracker.CheckAndConsume(ctx, identity)
	if err != nil {
		t.Fatalf("6th call returned error: %v", err)
	}
	if d.Allowed {
		t.Error("6th call allowed, want denied")
	}

	// 拒否は副作用を残さない（7回目も同様に拒否され、カウントは上振れしない）
	count, err := client.Get(ctx, quotaKeyPrefix+identity.ID).Int()
	if err != nil {
		t.Fatalf("failed to read counter: %v", err)
	}
	if count != 5 {
		t.Errorf("counter = %d, want 5 after denial rollback", count)
	}
}

// TestRedisTracker_ConcurrentCeiling は並行呼び出しでも許可総数が
// 上限を超えないことを検証する。
func TestRedisTracker_ConcurrentCeiling(t *testing.T) {
	client := setupTestRedis(t)
	tracker := NewRedisTracker(client, 5)
	identity := model.NewAnonymousIdentity("anon_" + uuid.NewString())

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := tracker.CheckAndConsume(context.Background(), identity)
			if err != nil {
				t.Errorf("CheckAndConsume returned error: %v", err)
				return
			}
			results <- d.Allowed
		}()
	}
	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}
	if allowed != 5 {
		t.Errorf("allowed = %d, want exactly 5", allowed)
	}
}

func TestRedisTracker_AuthenticatedUnlimited(t *testing.T) {
	client := setupTestRedis(t)
	tracker := NewRedisTracker(client, 5)
	identity := model.Identity{ID: "auth0|user-1", Authenticated: true}

	for i := 0; i < 10; i++ {
		d, err := tracker.CheckAndConsume(context.Background(), identity)
		if err != nil {
			t.Fatalf("call %d returned error: %v", i+1, err)
		}
		if !d.Allowed || d.Remaining != -1 {
			t.Fatalf("call %d decision = %+v, want allowed/unlimited", i+1, d)
		}
	}
}

func TestRedisTracker_Reset(t *testing.T) {
	client := setupTestRedis(t)
	tracker := NewRedisTracker(client, 5)
	ctx := context.Background()
	identity := model.NewAnonymousIdentity("anon_" + uuid.NewString())

	for i := 0; i < 5; i++ {
		if _, err := tracker.CheckAndConsume(ctx, identity); err != nil {
			t.Fatalf("CheckAndConsume returned error: %v", err)
		}
	}

	if err := tracker.Reset(ctx, identity.ID); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}

	d, err := tracker.CheckAndConsume(ctx, identity)
	if err != nil {
		t.Fatalf("CheckAndConsume after reset returned error: %v", err)
	}
	if !d.Allowed {
		t.Error("expected allowed after reset")
	}
}
