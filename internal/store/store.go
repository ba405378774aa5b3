// Package store はドキュメントテキストの永続化を提供する。
// インメモリ・PostgreSQL・Redisの差し替え可能なバックエンドを
// 1つのDocumentStore契約の背後に置く。
package store

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/chat2doc/internal/model"
)

// DocumentStore はオーナーIDごとのドキュメントテキストの永続化インターフェース。
type DocumentStore interface {
	// Put はオーナーのドキュメントを保存する。既存の値は無条件に上書きする。
	Put(ctx context.Context, ownerID, text string) error

	// Get はオーナーのドキュメントを取得する。
	// 一度も保存されていない場合は(nil, nil)を返す。未登録はエラーではない。
	Get(ctx context.Context, ownerID string) (*model.StoredDocument, error)
}

// MemoryStore はプロセス内メモリのDocumentStore実装。
// 最も単純なバックエンドであり、FallbackStoreの退避先としても使用する。
// プロセス再起動で内容は失われる。
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*model.StoredDocument
}

// NewMemoryStore はMemoryStoreを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]*model.StoredDocument),
	}
}

// Put はオーナーのドキュメントを保存する。
func (s *MemoryStore) Put(ctx context.Context, ownerID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[ownerID] = &model.StoredDocument{
		OwnerID:   ownerID,
		Text:      text,
		UpdatedAt: time.Now(),
	}
	return nil
}

// Get はオーナーのドキュメントを取得する。未登録の場合はnilを返す。
func (s *MemoryStore) Get(ctx context.Context, ownerID string) (*model.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[ownerID]
	if !ok {
		return nil, nil
	}

	// 呼び出し側での変更から内部状態を守るためコピーを返す
	copied := *doc
	return &copied, nil
}

// Len は保存されているドキュメント数を返す。テストおよび診断用。
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// compile-time interface check
var _ DocumentStore = (*MemoryStore)(nil)
