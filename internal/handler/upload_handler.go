package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chat2doc/internal/metrics"
	"github.com/hitoshi/chat2doc/internal/middleware"
	"github.com/hitoshi/chat2doc/internal/model"
)

// DocumentServiceInterface はアップロードハンドラーが必要とするサービスインターフェース。
type DocumentServiceInterface interface {
	ProcessUpload(ctx context.Context, ownerID, fileName string, data []byte) (int, error)
}

// UploadHandler はドキュメントアップロードのHTTPハンドラー。
type UploadHandler struct {
	service       DocumentServiceInterface
	collector     metrics.MetricsCollector
	maxUploadSize int64
}

// NewUploadHandler はUploadHandlerを生成する。collectorはnil可。
func NewUploadHandler(service DocumentServiceInterface, collector metrics.MetricsCollector, maxUploadSize int64) *UploadHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	return &UploadHandler{
		service:       service,
		collector:     collector,
		maxUploadSize: maxUploadSize,
	}
}

// Upload はmultipart/form-dataのPDFを受け付けてテキストを保存する。
// オーナーIDはリクエストボディではなく、解決済みIdentityから取る。
// POST /upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	// multipart全体のサイズを制限する。超過はParseMultipartFormが失敗する。
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+4096)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.recordUpload(metrics.OutcomeFailure)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			middleware.WriteErrorResponse(w, model.NewFileTooLargeError(h.maxUploadSize))
			return
		}
		middleware.WriteErrorResponse(w, model.NewMissingFieldError("file"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.recordUpload(metrics.OutcomeFailure)
		middleware.WriteErrorResponse(w, model.NewMissingFieldError("file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.recordUpload(metrics.OutcomeFailure)
		slog.Error("failed to read uploaded file",
			slog.String("owner_id", identity.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	contentLength, err := h.service.ProcessUpload(r.Context(), identity.ID, header.Filename, data)
	if err != nil {
		h.recordUpload(metrics.OutcomeFailure)
		h.recordExtractionFailure(err)
		writeServiceError(w, err)
		return
	}

	h.recordUpload(metrics.OutcomeSuccess)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":        true,
		"file_name":      header.Filename,
		"content_length": contentLength,
	})
}

func (h *UploadHandler) recordUpload(outcome string) {
	if h.collector != nil {
		h.collector.RecordUpload(outcome)
	}
}

// recordExtractionFailure は抽出段階の失敗をエラーコード別に記録する。
// ストレージ障害など抽出以外の失敗は記録しない。
func (h *UploadHandler) recordExtractionFailure(err error) {
	if h.collector == nil {
		return
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidFileType, model.ErrCodeEmptyExtraction, model.ErrCodeExtractionFailed:
		h.collector.RecordExtractionFailure(apiErr.Code)
	}
}

// writeServiceError はサービス層のエラーを統一フォーマットで書き込む。
// *APIError以外の予期しないエラーは500に落とす。
func writeServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, apiErr)
		return
	}
	slog.Error("unexpected service error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}
