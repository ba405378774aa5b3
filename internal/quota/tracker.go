// Package quota は匿名ユーザーの質問数クォータを管理する。
package quota

import (
	"context"
	"sync"

	"github.com/hitoshi/chat2doc/internal/model"
)

// DefaultLimit は匿名ユーザーの質問数上限のデフォルト値。
const DefaultLimit = 5

// Decision はクォータ判定の結果を表す。
type Decision struct {
	Allowed   bool
	Remaining int // 判定後の残り質問数。認証済みの場合は-1（無制限）。
}

// Tracker は質問数クォータの管理インターフェース。
type Tracker interface {
	// CheckAndConsume はクォータを判定し、許可された場合のみ1消費する。
	// 認証済みIdentityは常に許可される。拒否時に副作用はない
	// （カウントはそれ以上増えない）。
	// 同一Identityへの並行呼び出しでも上限を超えて許可しないこと。
	CheckAndConsume(ctx context.Context, identity model.Identity) (Decision, error)

	// Reset は指定オーナーのカウントを0に戻す。管理操作専用。
	Reset(ctx context.Context, ownerID string) error
}

// MemoryTracker はプロセス内メモリのTracker実装。
// read-then-incrementをミューテックスで直列化し、同一匿名IDからの
// 並行リクエストによる二重消費を防ぐ。再起動でカウントは失われる。
type MemoryTracker struct {
	limit int

	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryTracker はMemoryTrackerを生成する。
// limitが0以下の場合はDefaultLimitを使用する。
func NewMemoryTracker(limit int) *MemoryTracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryTracker{
		limit:  limit,
		counts: make(map[string]int),
	}
}

// CheckAndConsume はクォータを判定し、許可された場合のみ1消費する。
func (t *MemoryTracker) CheckAndConsume(ctx context.Context, identity model.Identity) (Decision, error) {
	if !identity.IsAnonymous() {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	count := t.counts[identity.ID]
	if count >= t.limit {
		return Decision{Allowed: false, Remaining: 0}, nil
	}

	t.counts[identity.ID] = count + 1
	return Decision{Allowed: true, Remaining: t.limit - count - 1}, nil
}

// Reset は指定オーナーのカウントを0に戻す。
func (t *MemoryTracker) Reset(ctx context.Context, ownerID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.counts, ownerID)
	return nil
}

// Count は指定オーナーの現在のカウントを返す。テストおよび診断用。
func (t *MemoryTracker) Count(ownerID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[ownerID]
}

// compile-time interface check
var _ Tracker = (*MemoryTracker)(nil)
