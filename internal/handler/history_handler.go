package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/chat2doc/internal/history"
	"github.com/hitoshi/chat2doc/internal/middleware"
)

// defaultHistoryLimit はGET /historyのデフォルト取得件数。
const defaultHistoryLimit = 50

// HistoryHandler は会話履歴のHTTPハンドラー。
type HistoryHandler struct {
	repo history.Repository
}

// NewHistoryHandler はHistoryHandlerを生成する。
func NewHistoryHandler(repo history.Repository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// historyEntry はGET /historyのレスポンス要素。
type historyEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// List は現在のIdentityの会話履歴を新しい順に返す。
// GET /history?limit=50
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.repo.ListByOwner(r.Context(), identity.ID, limit)
	if err != nil {
		slog.Error("failed to list chat history",
			slog.String("owner_id", identity.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:        rec.ID,
			Question:  rec.Question,
			Answer:    rec.Answer,
			CreatedAt: rec.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"history": entries,
	})
}
