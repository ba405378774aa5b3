package handler

import (
	"encoding/json"
	"net/http"
)

// FallbackProber はドキュメントストアの退避状態の観測インターフェース。
// store.FallbackStoreの部分集合として定義する。
type FallbackProber interface {
	FallbackActive() bool
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	prober FallbackProber
}

// NewHealthHandler はHealthHandlerを生成する。proberはnil可。
func NewHealthHandler(prober FallbackProber) *HealthHandler {
	return &HealthHandler{prober: prober}
}

// Health は稼働状態を返す。ストアが退避運転中の場合はdegradedと報告するが、
// サービス自体は応答可能なので200を維持する。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if h.prober != nil && h.prober.FallbackActive() {
		status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
