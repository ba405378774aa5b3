package model

import (
	"fmt"
	"net/http"
)

// ErrorKind はAPIエラーの分類を表す。
// リクエスト境界でHTTPステータスへのマッピングに使用する。
type ErrorKind string

const (
	// KindValidation は入力不備によるエラー。リトライしても解決しない。
	KindValidation ErrorKind = "validation"
	// KindAuth は認証に関するエラー。
	KindAuth ErrorKind = "auth"
	// KindQuota は匿名ユーザーの質問数上限超過。ログインするまで解消しない。
	KindQuota ErrorKind = "quota"
	// KindNotFound は対象ドキュメントの未登録。
	KindNotFound ErrorKind = "not_found"
	// KindUnprocessable は抽出結果が利用不能（空抽出・パース失敗）。
	KindUnprocessable ErrorKind = "unprocessable"
	// KindUpstream は抽出エンジン・生成モデル・ストレージの障害。
	KindUpstream ErrorKind = "upstream"
	// KindInitializing はサービス初期化中。時間をおいたリトライで解消しうる。
	KindInitializing ErrorKind = "initializing"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code    string    // エラーコード
	Kind    ErrorKind // 分類（HTTPステータス決定に使用）
	Message string    // エラーメッセージ
	Action  string    // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// HTTPStatus はエラー分類に対応するHTTPステータスコードを返す。
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindQuota:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUnprocessable:
		return http.StatusUnprocessableEntity
	case KindInitializing:
		return http.StatusServiceUnavailable
	case KindUpstream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// 定義済みエラーコード
const (
	ErrCodeMissingField     = "MISSING_FIELD"
	ErrCodeInvalidFileType  = "INVALID_FILE_TYPE"
	ErrCodeFileTooLarge     = "FILE_TOO_LARGE"
	ErrCodeEmptyExtraction  = "EMPTY_EXTRACTION"
	ErrCodeExtractionFailed = "EXTRACTION_FAILED"
	ErrCodeDocumentNotFound = "DOCUMENT_NOT_FOUND"
	ErrCodeQuotaExceeded    = "QUOTA_EXCEEDED"
	ErrCodeQuotaCheckFailed = "QUOTA_CHECK_FAILED"
	ErrCodeGenerationFailed = "GENERATION_FAILED"
	ErrCodeStorageFailed    = "STORAGE_FAILED"
	ErrCodeInitializing     = "INITIALIZING"
	ErrCodeSessionInvalid   = "SESSION_INVALID"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
)

// NewMissingFieldError は必須フィールド未指定エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:    ErrCodeMissingField,
		Kind:    KindValidation,
		Message: fmt.Sprintf("必須フィールドが指定されていません: %s", field),
		Action:  "リクエスト内容を確認して再度お試しください。",
	}
}

// NewInvalidFileTypeError は非対応ファイル形式エラーを生成する。
func NewInvalidFileTypeError(fileName string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidFileType,
		Kind:    KindValidation,
		Message: fmt.Sprintf("対応していないファイル形式です: %s", fileName),
		Action:  "PDFファイル（.pdf）をアップロードしてください。",
	}
}

// NewFileTooLargeError はファイルサイズ上限超過エラーを生成する。
func NewFileTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:    ErrCodeFileTooLarge,
		Kind:    KindValidation,
		Message: fmt.Sprintf("ファイルサイズが上限（%dバイト）を超えています。", maxBytes),
		Action:  "ファイルサイズを小さくして再度お試しください。",
	}
}

// NewEmptyExtractionError はテキスト抽出結果が空だった場合のエラーを生成する。
// 空文字列での成功とは区別し、後段のチャンク分割に空テキストを渡さない。
func NewEmptyExtractionError() *APIError {
	return &APIError{
		Code:    ErrCodeEmptyExtraction,
		Kind:    KindUnprocessable,
		Message: "PDFからテキストを抽出できませんでした。",
		Action:  "テキストを含むPDFをアップロードしてください。画像のみのPDFには対応していません。",
	}
}

// NewExtractionFailedError はPDFパース失敗エラーを生成する。
func NewExtractionFailedError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeExtractionFailed,
		Kind:    KindUnprocessable,
		Message: fmt.Sprintf("PDFの解析に失敗しました: %s", reason),
		Action:  "破損していない有効なPDFファイルか確認してください。",
	}
}

// NewDocumentNotFoundError はドキュメント未登録エラーを生成する。
func NewDocumentNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeDocumentNotFound,
		Kind:    KindNotFound,
		Message: "ドキュメントが登録されていません。",
		Action:  "先にPDFをアップロードしてから質問してください。",
	}
}

// NewQuotaExceededError は匿名ユーザーの質問数上限超過エラーを生成する。
func NewQuotaExceededError(limit int) *APIError {
	return &APIError{
		Code:    ErrCodeQuotaExceeded,
		Kind:    KindQuota,
		Message: fmt.Sprintf("ゲストモードの質問数上限（%d件）に達しました。", limit),
		Action:  "ログインすると質問を続けられます。",
	}
}

// NewQuotaCheckFailedError はクォータカウンタの照会失敗エラーを生成する。
// 判定不能時は安全側に倒して質問を処理しない。
func NewQuotaCheckFailedError() *APIError {
	return &APIError{
		Code:    ErrCodeQuotaCheckFailed,
		Kind:    KindUpstream,
		Message: "質問数の確認に失敗しました。",
		Action:  "しばらく待ってから再度お試しください。",
	}
}

// NewGenerationFailedError は回答生成失敗エラーを生成する。
// 上流の詳細はログのみに記録し、クライアントには短いメッセージだけ返す。
func NewGenerationFailedError() *APIError {
	return &APIError{
		Code:    ErrCodeGenerationFailed,
		Kind:    KindUpstream,
		Message: "回答の生成に失敗しました。",
		Action:  "しばらく待ってから再度お試しください。",
	}
}

// NewStorageFailedError はストレージ障害エラーを生成する。
func NewStorageFailedError() *APIError {
	return &APIError{
		Code:    ErrCodeStorageFailed,
		Kind:    KindUpstream,
		Message: "ドキュメントの保存に失敗しました。",
		Action:  "しばらく待ってから再度お試しください。",
	}
}

// NewInitializingError はサービス初期化中エラーを生成する。
// 障害とは区別し、時間をおいたリトライが安全であることを示す。
func NewInitializingError() *APIError {
	return &APIError{
		Code:    ErrCodeInitializing,
		Kind:    KindInitializing,
		Message: "サービスを初期化しています。",
		Action:  "数秒待ってから再度お試しください。",
	}
}

// NewSessionInvalidError はセッショントークン不正エラーを生成する。
// トークンが存在しない場合ではなく、存在するが解析できない場合にのみ使用する。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Code:    ErrCodeSessionInvalid,
		Kind:    KindAuth,
		Message: "セッションが無効です。",
		Action:  "ログインし直してください。",
	}
}

// NewUnauthorizedError は認証必須エンドポイントでの未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthorized,
		Kind:    KindAuth,
		Message: "この操作にはログインが必要です。",
		Action:  "ログインしてから再度お試しください。",
	}
}
