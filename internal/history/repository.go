// Package history は質問と回答の履歴の永続化を提供する。
package history

import (
	"context"
	"sort"
	"sync"

	"github.com/hitoshi/chat2doc/internal/model"
)

// Repository は会話履歴リポジトリのインターフェース。
type Repository interface {
	// Append は1件の質問・回答を履歴に追加する。
	Append(ctx context.Context, record model.ChatRecord) error
	// ListByOwner は指定オーナーの履歴を新しい順に取得する。
	// limitが0以下の場合は全件を返す。
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.ChatRecord, error)
}

// MemoryRepository はメモリ上のRepository実装。
// 外部ストアが構成されていない環境で使用する。プロセス再起動で消える。
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]model.ChatRecord
}

// NewMemoryRepository はMemoryRepositoryを生成する。
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string][]model.ChatRecord)}
}

// Append は履歴レコードを追加する。
func (r *MemoryRepository) Append(ctx context.Context, record model.ChatRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.OwnerID] = append(r.records[record.OwnerID], record)
	return nil
}

// ListByOwner は指定オーナーの履歴を新しい順に返す。
func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.ChatRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.records[ownerID]
	out := make([]model.ChatRecord, len(stored))
	copy(out, stored)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// compile-time interface check
var _ Repository = (*MemoryRepository)(nil)
