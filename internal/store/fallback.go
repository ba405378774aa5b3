package store

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hitoshi/chat2doc/internal/model"
)

// FallbackRecorder はフォールバック発生の記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type FallbackRecorder interface {
	RecordStoreFallback(op string)
}

// FallbackStore はバックエンド障害時にプロセス内メモリへ退避するラッパー。
// バックエンドの失敗は呼び出し元には透過（エラーを返さない）だが、
// ログ・メトリクス・FallbackActiveプローブで観測可能にする。
// 再起動でデータを失う退避モードを無音で続けないための措置。
type FallbackStore struct {
	backend  DocumentStore
	fallback *MemoryStore
	logger   *slog.Logger
	recorder FallbackRecorder

	active atomic.Bool
}

// NewFallbackStore はFallbackStoreを生成する。
// recorderはnil可（メトリクスなしで動作する）。
func NewFallbackStore(backend DocumentStore, logger *slog.Logger, recorder FallbackRecorder) *FallbackStore {
	return &FallbackStore{
		backend:  backend,
		fallback: NewMemoryStore(),
		logger:   logger,
		recorder: recorder,
	}
}

// Put はバックエンドへの保存を試み、失敗した場合はメモリへ退避する。
// 退避への切り替えはログとメトリクスに記録する。
func (s *FallbackStore) Put(ctx context.Context, ownerID, text string) error {
	if err := s.backend.Put(ctx, ownerID, text); err != nil {
		s.noteFallback("put", ownerID, err)
		return s.fallback.Put(ctx, ownerID, text)
	}
	return nil
}

// Get はバックエンドからの取得を試み、失敗した場合はメモリ退避分を探す。
// 退避発生後は、バックエンドが正常に「未登録」を返した場合も退避分を探す。
// 障害中に退避へ書かれたドキュメントはバックエンドに存在しないため、
// バックエンド復旧後もこの補完がないと読めなくなる。
func (s *FallbackStore) Get(ctx context.Context, ownerID string) (*model.StoredDocument, error) {
	doc, err := s.backend.Get(ctx, ownerID)
	if err != nil {
		s.noteFallback("get", ownerID, err)
		return s.fallback.Get(ctx, ownerID)
	}
	if doc == nil && s.active.Load() {
		return s.fallback.Get(ctx, ownerID)
	}
	return doc, nil
}

// FallbackActive は一度でも退避が発生したかどうかを返す。
// 劣化運転を外部から観測するための診断プローブ。
func (s *FallbackStore) FallbackActive() bool {
	return s.active.Load()
}

func (s *FallbackStore) noteFallback(op, ownerID string, err error) {
	s.active.Store(true)
	if s.recorder != nil {
		s.recorder.RecordStoreFallback(op)
	}
	s.logger.Warn("document store degraded to in-memory fallback",
		slog.String("op", op),
		slog.String("owner_id", ownerID),
		slog.String("error", err.Error()),
	)
}

// compile-time interface check
var _ DocumentStore = (*FallbackStore)(nil)
