// Package chat は保存済みドキュメントへの質問応答を担う。
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/chat2doc/internal/chunk"
	"github.com/hitoshi/chat2doc/internal/history"
	"github.com/hitoshi/chat2doc/internal/llm"
	"github.com/hitoshi/chat2doc/internal/model"
	"github.com/hitoshi/chat2doc/internal/quota"
	"github.com/hitoshi/chat2doc/internal/store"
)

// Result は質問応答の結果を表す。
type Result struct {
	Answer string
	// Remaining は匿名Identityの残り質問数。認証済みの場合は-1（無制限）。
	Remaining int
}

// Service は質問応答サービス。
// クォータ判定、ドキュメント取得、コンテキスト構築、回答生成、履歴記録を
// この順序で直列に実行する。途中の失敗はすべて最終的な失敗となる。
type Service struct {
	tracker      quota.Tracker
	store        store.DocumentStore
	generator    llm.Generator
	history      history.Repository
	maxChunkSize int
	quotaLimit   int
	logger       *slog.Logger
}

// NewService はServiceを生成する。
// historyRepoがnilの場合、履歴記録はスキップされる。
func NewService(
	tracker quota.Tracker,
	docStore store.DocumentStore,
	generator llm.Generator,
	historyRepo history.Repository,
	maxChunkSize int,
	quotaLimit int,
	logger *slog.Logger,
) *Service {
	if maxChunkSize <= 0 {
		maxChunkSize = chunk.DefaultMaxChunkSize
	}
	if quotaLimit <= 0 {
		quotaLimit = quota.DefaultLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tracker:      tracker,
		store:        docStore,
		generator:    generator,
		history:      historyRepo,
		maxChunkSize: maxChunkSize,
		quotaLimit:   quotaLimit,
		logger:       logger,
	}
}

// Ask は保存済みドキュメントに対する質問への回答を生成する。
// コンテキストには常にドキュメントの先頭チャンクのみを使用する。
// クォータは回答生成の成否に関わらず、判定を通過した時点で消費される。
func (s *Service) Ask(ctx context.Context, identity model.Identity, question string) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, model.NewMissingFieldError("question")
	}

	// 1. クォータ判定（匿名Identityのみカウント）
	decision, err := s.tracker.CheckAndConsume(ctx, identity)
	if err != nil {
		s.logger.Error("クォータの確認に失敗しました",
			slog.String("owner_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return Result{}, model.NewQuotaCheckFailedError()
	}
	if !decision.Allowed {
		return Result{}, model.NewQuotaExceededError(s.quotaLimit)
	}

	// 2. ドキュメント取得
	doc, err := s.store.Get(ctx, identity.ID)
	if err != nil {
		s.logger.Error("ドキュメントの取得に失敗しました",
			slog.String("owner_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return Result{}, model.NewStorageFailedError()
	}
	if doc == nil {
		return Result{}, model.NewDocumentNotFoundError()
	}

	// 3. コンテキスト構築: 先頭チャンクのみを使用する
	chunks := chunk.Split(doc.Text, s.maxChunkSize)
	docContext := chunk.FirstChunk(chunks)

	// 4. 回答生成
	answer, err := s.generator.Generate(ctx, question, docContext)
	if err != nil {
		s.logger.Error("回答の生成に失敗しました",
			slog.String("owner_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return Result{}, model.NewGenerationFailedError()
	}

	// 5. 履歴記録（ベストエフォート: 失敗しても回答は返す）
	s.appendHistory(ctx, identity.ID, question, answer)

	return Result{Answer: answer, Remaining: decision.Remaining}, nil
}

// appendHistory は質問と回答を履歴に記録する。失敗はログのみに残す。
func (s *Service) appendHistory(ctx context.Context, ownerID, question, answer string) {
	if s.history == nil {
		return
	}
	record := model.ChatRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Question:  question,
		Answer:    answer,
		CreatedAt: time.Now(),
	}
	if err := s.history.Append(ctx, record); err != nil {
		s.logger.Warn("履歴の記録に失敗しました",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
	}
}
