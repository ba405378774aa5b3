// Package document はPDFアップロードの受付からテキスト保存までを担う。
package document

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/chat2doc/internal/extract"
	"github.com/hitoshi/chat2doc/internal/model"
	"github.com/hitoshi/chat2doc/internal/store"
)

// TextExtractor はファイルからプレーンテキストを取り出すインターフェース。
type TextExtractor interface {
	Extract(fileName string, data []byte) (string, error)
}

// Service はドキュメントの取り込みサービス。
// 抽出の各失敗モードを統一エラーフォーマットに変換して返す。
type Service struct {
	extractor   TextExtractor
	store       store.DocumentStore
	maxFileSize int64
	logger      *slog.Logger
}

// NewService はServiceを生成する。
func NewService(extractor TextExtractor, docStore store.DocumentStore, maxFileSize int64, logger *slog.Logger) *Service {
	if maxFileSize <= 0 {
		maxFileSize = extract.DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		extractor:   extractor,
		store:       docStore,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// ProcessUpload はPDFからテキストを抽出してオーナーのドキュメントとして保存する。
// 同じオーナーの既存ドキュメントは無条件に置き換える。
// 成功時は抽出されたテキストの文字数を返す。
func (s *Service) ProcessUpload(ctx context.Context, ownerID, fileName string, data []byte) (int, error) {
	text, err := s.extractor.Extract(fileName, data)
	if err != nil {
		return 0, s.mapExtractError(ownerID, fileName, err)
	}

	if err := s.store.Put(ctx, ownerID, text); err != nil {
		// 詳細はログのみに残し、クライアントには短いメッセージだけ返す
		s.logger.Error("ドキュメントの保存に失敗しました",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return 0, model.NewStorageFailedError()
	}

	s.logger.Info("ドキュメントを保存しました",
		slog.String("owner_id", ownerID),
		slog.String("file_name", fileName),
		slog.Int("content_length", len(text)),
	)

	return len(text), nil
}

// mapExtractError は抽出層のエラーを統一エラーフォーマットに変換する。
func (s *Service) mapExtractError(ownerID, fileName string, err error) error {
	var parseErr *extract.ParseError
	var initErr *extract.InitError

	switch {
	case errors.Is(err, extract.ErrInvalidFileType):
		return model.NewInvalidFileTypeError(fileName)
	case errors.Is(err, extract.ErrEmptyFile):
		return model.NewMissingFieldError("file")
	case errors.Is(err, extract.ErrFileTooLarge):
		return model.NewFileTooLargeError(s.maxFileSize)
	case errors.Is(err, extract.ErrEmptyExtraction):
		return model.NewEmptyExtractionError()
	case errors.As(err, &initErr):
		s.logger.Error("抽出エンジンの初期化に失敗しました", slog.String("error", err.Error()))
		return model.NewInitializingError()
	case errors.As(err, &parseErr):
		s.logger.Warn("PDFの解析に失敗しました",
			slog.String("owner_id", ownerID),
			slog.String("file_name", fileName),
			slog.String("error", err.Error()),
		)
		return model.NewExtractionFailedError(parseErr.Reason)
	default:
		s.logger.Error("テキスト抽出で予期しないエラーが発生しました",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return model.NewExtractionFailedError("unexpected error")
	}
}
