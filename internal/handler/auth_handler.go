// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chat2doc/internal/middleware"
	"github.com/hitoshi/chat2doc/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	LoginURL(state string) string
	LogoutURL(returnTo string) string
	HandleCallback(ctx context.Context, code string) (string, model.Identity, error)
}

// RealtimeTokenMinterInterface はリアルタイムトークン発行のインターフェース。
type RealtimeTokenMinterInterface interface {
	Mint(identity model.Identity) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	minter  RealtimeTokenMinterInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
// minterはnil可（リアルタイムトークン機能が無効の場合）。
func NewAuthHandler(service AuthServiceInterface, minter RealtimeTokenMinterInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		minter:  minter,
		config:  config,
	}
}

// Login はAuth0のOAuthフローを開始する。
// GET /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.LoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		middleware.WriteErrorResponse(w, model.NewMissingFieldError("state"))
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		middleware.WriteErrorResponse(w, model.NewMissingFieldError("code"))
		return
	}

	// 3. 認証処理とセッショントークン発行
	token, identity, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed",
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, model.NewSessionInvalidError())
		return
	}

	// 4. セッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user logged in", slog.String("owner_id", identity.ID))

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションCookieを破棄し、IdP側のログアウトにリダイレクトする。
// GET /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.LogoutURL(h.config.BaseURL), http.StatusTemporaryRedirect)
}

// Session は現在のIdentity情報を返す。
// 匿名・認証済みを問わず200で応答し、フロントエンドの表示切り替えに使用する。
// GET /session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":            identity.ID,
		"name":          identity.Name,
		"email":         identity.Email,
		"picture":       identity.Picture,
		"authenticated": identity.Authenticated,
	})
}

// RealtimeToken はリアルタイム連携基盤向けのカスタムトークンを発行する。
// 認証済みIdentityのみが対象。機能が無効の場合は404を返す。
// POST /auth/realtime-token
func (h *AuthHandler) RealtimeToken(w http.ResponseWriter, r *http.Request) {
	if h.minter == nil {
		http.NotFound(w, r)
		return
	}

	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}

	token, err := h.minter.Mint(identity)
	if err != nil {
		middleware.WriteErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
