package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/hitoshi/chat2doc/internal/extract"
	"github.com/hitoshi/chat2doc/internal/model"
	"github.com/hitoshi/chat2doc/internal/store"
)

// mockExtractor はテスト用のTextExtractorモック。
type mockExtractor struct {
	extractFn func(fileName string, data []byte) (string, error)
}

func (m *mockExtractor) Extract(fileName string, data []byte) (string, error) {
	return m.extractFn(fileName, data)
}

// failingStore は常にエラーを返すDocumentStoreモック。
type failingStore struct{}

func (s *failingStore) Put(ctx context.Context, ownerID, text string) error {
	return errors.New("connection refused")
}

func (s *failingStore) Get(ctx context.Context, ownerID string) (*model.StoredDocument, error) {
	return nil, errors.New("connection refused")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestService_ProcessUpload_Success(t *testing.T) {
	memStore := store.NewMemoryStore()
	extractor := &mockExtractor{
		extractFn: func(fileName string, data []byte) (string, error) {
			return "抽出されたテキスト", nil
		},
	}
	service := NewService(extractor, memStore, 0, discardLogger())

	length, err := service.ProcessUpload(context.Background(), "anon_abc", "report.pdf", []byte("%PDF-"))
	if err != nil {
		t.Fatalf("ProcessUpload returned error: %v", err)
	}
	if length != len("抽出されたテキスト") {
		t.Errorf("content length = %d, want %d", length, len("抽出されたテキスト"))
	}

	doc, err := memStore.Get(context.Background(), "anon_abc")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if doc == nil || doc.Text != "抽出されたテキスト" {
		t.Errorf("stored document = %+v, want extracted text", doc)
	}
}

// TestService_ProcessUpload_Overwrites は同じオーナーの再アップロードが
// 既存ドキュメントを置き換えることを検証する。
func TestService_ProcessUpload_Overwrites(t *testing.T) {
	memStore := store.NewMemoryStore()
	texts := []string{"最初のドキュメント", "新しいドキュメント"}
	call := 0
	extractor := &mockExtractor{
		extractFn: func(fileName string, data []byte) (string, error) {
			text := texts[call]
			call++
			return text, nil
		},
	}
	service := NewService(extractor, memStore, 0, discardLogger())

	for range texts {
		if _, err := service.ProcessUpload(context.Background(), "anon_abc", "doc.pdf", []byte("x")); err != nil {
			t.Fatalf("ProcessUpload returned error: %v", err)
		}
	}

	doc, _ := memStore.Get(context.Background(), "anon_abc")
	if doc.Text != "新しいドキュメント" {
		t.Errorf("stored text = %q, want 新しいドキュメント", doc.Text)
	}
}

// TestService_ProcessUpload_ErrorMapping は抽出層の各失敗モードが
// 対応するエラーコードとHTTPステータスに変換されることを検証する。
func TestService_ProcessUpload_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		extractErr error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "非対応ファイル形式",
			extractErr: fmt.Errorf("%w: doc.txt", extract.ErrInvalidFileType),
			wantCode:   model.ErrCodeInvalidFileType,
			wantStatus: 400,
		},
		{
			name:       "空ファイル",
			extractErr: extract.ErrEmptyFile,
			wantCode:   model.ErrCodeMissingField,
			wantStatus: 400,
		},
		{
			name:       "サイズ超過",
			extractErr: fmt.Errorf("%w: 99 bytes", extract.ErrFileTooLarge),
			wantCode:   model.ErrCodeFileTooLarge,
			wantStatus: 400,
		},
		{
			name:       "空抽出",
			extractErr: extract.ErrEmptyExtraction,
			wantCode:   model.ErrCodeEmptyExtraction,
			wantStatus: 422,
		},
		{
			name:       "パース失敗",
			extractErr: &extract.ParseError{Reason: "invalid pdf structure"},
			wantCode:   model.ErrCodeExtractionFailed,
			wantStatus: 422,
		},
		{
			name:       "初期化失敗",
			extractErr: &extract.InitError{Err: errors.New("engine unavailable")},
			wantCode:   model.ErrCodeInitializing,
			wantStatus: 503,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &mockExtractor{
				extractFn: func(fileName string, data []byte) (string, error) {
					return "", tt.extractErr
				},
			}
			service := NewService(extractor, store.NewMemoryStore(), 0, discardLogger())

			_, err := service.ProcessUpload(context.Background(), "anon_abc", "doc.pdf", []byte("x"))
			if err == nil {
				t.Fatal("ProcessUpload succeeded, want error")
			}

			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error is not *model.APIError: %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if apiErr.HTTPStatus() != tt.wantStatus {
				t.Errorf("status = %d, want %d", apiErr.HTTPStatus(), tt.wantStatus)
			}
		})
	}
}

func TestService_ProcessUpload_StorageFailure(t *testing.T) {
	extractor := &mockExtractor{
		extractFn: func(fileName string, data []byte) (string, error) {
			return "テキスト", nil
		},
	}
	service := NewService(extractor, &failingStore{}, 0, discardLogger())

	_, err := service.ProcessUpload(context.Background(), "anon_abc", "doc.pdf", []byte("x"))

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error is not *model.APIError: %v", err)
	}
	if apiErr.Code != model.ErrCodeStorageFailed {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeStorageFailed)
	}
}
