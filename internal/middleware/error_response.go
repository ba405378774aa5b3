package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/chat2doc/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因分類と対処方法を含む。
type ErrorResponseBody struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Action  string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// ステータスコードはエラー分類から導出され、すべてのAPIエンドポイントで
// 一貫したレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.HTTPStatus())
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:    apiErr.Code,
		Kind:    string(apiErr.Kind),
		Message: apiErr.Message,
		Action:  apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, &model.APIError{
		Code:    "INTERNAL_ERROR",
		Kind:    model.KindUpstream,
		Message: "内部エラーが発生しました。",
		Action:  "しばらく待ってから再度お試しください。",
	})
}
