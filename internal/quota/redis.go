package quota

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/hitoshi/chat2doc/internal/model"
)

const quotaKeyPrefix = "chat2doc:quota:"

// RedisTracker はRedisを使用したTracker実装。
// INCRの原子性で並行リクエストの二重消費を防ぐ。上限超過時は
// 補償DECRで巻き戻すため、拒否はカウントに正味の副作用を残さない。
// 2つの並行リクエストが同時に上限を跨いでも、INCRの戻り値が
// limit以下のものだけが許可されるため、許可総数が上限を超えることはない。
type RedisTracker struct {
	client *redis.Client
	limit  int
}

// NewRedisTracker はRedisTrackerを生成する。
// limitが0以下の場合はDefaultLimitを使用する。
func NewRedisTracker(client *redis.Client, limit int) *RedisTracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisTracker{client: client, limit: limit}
}

// CheckAndConsume はクォータを判定し、許可された場合のみ1消費する。
func (t *RedisTracker) CheckAndConsume(ctx context.Context, identity model.Identity) (Decision, error) {
	if !identity.IsAnonymous() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	key := quotaKeyPrefix + identity.ID

	count, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment quota counter: %w", err)
	}

	if count > int64(t.limit) {
		// 上限超過分を巻き戻す。失敗してもカウントが上振れするだけで
		// 上限を超えて許可されることはない。
		if err := t.client.Decr(ctx, key).Err(); err != nil {
			return Decision{}, fmt.Errorf("failed to roll back quota counter: %w", err)
		}
		return Decision{Allowed: false, Remaining: 0}, nil
	}

	return Decision{Allowed: true, Remaining: t.limit - int(count)}, nil
}

// Reset は指定オーナーのカウントを0に戻す。
func (t *RedisTracker) Reset(ctx context.Context, ownerID string) error {
	if err := t.client.Del(ctx, quotaKeyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("failed to reset quota counter: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Tracker = (*RedisTracker)(nil)
