package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hitoshi/chat2doc/internal/chat"
	"github.com/hitoshi/chat2doc/internal/metrics"
	"github.com/hitoshi/chat2doc/internal/middleware"
	"github.com/hitoshi/chat2doc/internal/model"
)

// ChatServiceInterface は質問応答ハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Ask(ctx context.Context, identity model.Identity, question string) (chat.Result, error)
}

// ChatHandler は質問応答のHTTPハンドラー。
type ChatHandler struct {
	service   ChatServiceInterface
	collector metrics.MetricsCollector
}

// NewChatHandler はChatHandlerを生成する。collectorはnil可。
func NewChatHandler(service ChatServiceInterface, collector metrics.MetricsCollector) *ChatHandler {
	return &ChatHandler{service: service, collector: collector}
}

// askRequest はPOST /askのリクエストボディ。
type askRequest struct {
	Question string `json:"question"`
}

// askResponse はPOST /askのレスポンスボディ。
// remainingは匿名Identityの残り質問数（認証済みは-1）。
type askResponse struct {
	Answer    string `json:"answer"`
	Remaining int    `json:"remaining"`
}

// Ask は保存済みドキュメントへの質問に回答する。
// POST /ask
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, model.NewMissingFieldError("question"))
		return
	}

	start := time.Now()
	result, err := h.service.Ask(r.Context(), identity, req.Question)
	if err != nil {
		h.recordFailure(err)
		writeServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordQuestion(metrics.OutcomeSuccess)
		h.collector.RecordGenerationLatency(time.Since(start))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(askResponse{
		Answer:    result.Answer,
		Remaining: result.Remaining,
	})
}

func (h *ChatHandler) recordFailure(err error) {
	if h.collector == nil {
		return
	}
	h.collector.RecordQuestion(metrics.OutcomeFailure)

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == model.KindQuota {
		h.collector.RecordQuotaDenied()
	}
}
