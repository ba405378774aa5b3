package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/chat2doc/internal/chat"
	"github.com/hitoshi/chat2doc/internal/middleware"
	"github.com/hitoshi/chat2doc/internal/model"
)

// mockChatService はテスト用のChatServiceInterfaceモック。
type mockChatService struct {
	askFn func(ctx context.Context, identity model.Identity, question string) (chat.Result, error)
}

func (m *mockChatService) Ask(ctx context.Context, identity model.Identity, question string) (chat.Result, error) {
	return m.askFn(ctx, identity, question)
}

func newAskRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), model.NewAnonymousIdentity("anon_abc")))
	return req
}

func TestChatHandler_Ask_Success(t *testing.T) {
	var gotQuestion string
	service := &mockChatService{
		askFn: func(ctx context.Context, identity model.Identity, question string) (chat.Result, error) {
			gotQuestion = question
			return chat.Result{Answer: "契約書です。", Remaining: 3}, nil
		},
	}
	h := NewChatHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Ask(rec, newAskRequest(`{"question":"これは何の文書ですか？"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if gotQuestion != "これは何の文書ですか？" {
		t.Errorf("question = %q", gotQuestion)
	}

	var body askResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Answer != "契約書です。" {
		t.Errorf("answer = %q", body.Answer)
	}
	if body.Remaining != 3 {
		t.Errorf("remaining = %d, want 3", body.Remaining)
	}
}

func TestChatHandler_Ask_InvalidJSON(t *testing.T) {
	service := &mockChatService{
		askFn: func(ctx context.Context, identity model.Identity, question string) (chat.Result, error) {
			t.Fatal("service called with invalid JSON")
			return chat.Result{}, nil
		},
	}
	h := NewChatHandler(service, nil)

	rec := httptest.NewRecorder()
	h.Ask(rec, newAskRequest(`{broken`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// TestChatHandler_Ask_ServiceErrorStatuses はサービス層のAPIErrorが
// 分類どおりのステータスコードで返ることを検証する。
func TestChatHandler_Ask_ServiceErrorStatuses(t *testing.T) {
	tests := []struct {
		name       string
		serviceErr *model.APIError
		wantStatus int
	}{
		{"質問未指定", model.NewMissingFieldError("question"), 400},
		{"クォータ超過", model.NewQuotaExceededError(5), 403},
		{"ドキュメント未登録", model.NewDocumentNotFoundError(), 404},
		{"生成失敗", model.NewGenerationFailedError(), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockChatService{
				askFn: func(ctx context.Context, identity model.Identity, question string) (chat.Result, error) {
					return chat.Result{}, tt.serviceErr
				},
			}
			h := NewChatHandler(service, nil)

			rec := httptest.NewRecorder()
			h.Ask(rec, newAskRequest(`{"question":"質問"}`))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body middleware.ErrorResponseBody
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Code != tt.serviceErr.Code {
				t.Errorf("code = %q, want %q", body.Code, tt.serviceErr.Code)
			}
			if body.Action == "" {
				t.Error("action is empty")
			}
		})
	}
}
