package store

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hitoshi/chat2doc/internal/model"
)

const (
	docKeyPrefix       = "chat2doc:doc:"
	docUpdatedAtSuffix = ":updated_at"
)

// RedisStore はRedisを使用したDocumentStore実装。
// ドキュメント本文と更新日時を別キーで保持する。TTLは設定しない
// （明示的な削除機構は持たないという契約に合わせる）。
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore はRedisStoreを生成する。
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Put はオーナーのドキュメントを保存する。既存の値は上書きされる。
func (s *RedisStore) Put(ctx context.Context, ownerID, text string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, docKeyPrefix+ownerID, text, 0)
	pipe.Set(ctx, docKeyPrefix+ownerID+docUpdatedAtSuffix, now, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// Get はオーナーのドキュメントを取得する。未登録の場合はnilを返す。
func (s *RedisStore) Get(ctx context.Context, ownerID string) (*model.StoredDocument, error) {
	text, err := s.client.Get(ctx, docKeyPrefix+ownerID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	doc := &model.StoredDocument{
		OwnerID: ownerID,
		Text:    text,
	}

	// 更新日時キーの欠落はドキュメント欠落として扱わない
	if raw, err := s.client.Get(ctx, docKeyPrefix+ownerID+docUpdatedAtSuffix).Result(); err == nil {
		if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			doc.UpdatedAt = ts
		}
	}

	return doc, nil
}

// compile-time interface check
var _ DocumentStore = (*RedisStore)(nil)
