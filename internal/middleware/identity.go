// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/chat2doc/internal/auth"
	"github.com/hitoshi/chat2doc/internal/model"
)

// Cookie名。セッショントークンと匿名IDは別のCookieで管理する。
const (
	SessionCookieName   = "session"
	AnonymousCookieName = "anonymous_id"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストにIdentityを格納するためのキー。
var identityContextKey = contextKey("identity")

// IdentityConfig はIdentityミドルウェアのCookie設定。
type IdentityConfig struct {
	CookieSecure bool
	CookieMaxAge int // 秒。匿名ID Cookieとセッション破棄に使用する
}

// NewIdentityMiddleware はリクエストのCookieからIdentityを解決し、
// コンテキストに注入するミドルウェアを返す。
// トークンが無いリクエストには新しい匿名IDを発行してCookieに書き戻す。
// 改ざんされたセッショントークンにはCookieを破棄して401を返す。
func NewIdentityMiddleware(resolver *auth.Resolver, config IdentityConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得（不在はエラーではない）
			sessionToken := cookieValue(r, SessionCookieName)
			anonymousID := cookieValue(r, AnonymousCookieName)

			// 2. Identityを解決
			identity, minted, err := resolver.Resolve(sessionToken, anonymousID)
			if err != nil {
				if errors.Is(err, auth.ErrMalformedToken) {
					// 壊れたセッションCookieは破棄させる
					clearCookie(w, SessionCookieName, config.CookieSecure)
					apiErr := model.NewSessionInvalidError()
					WriteErrorResponse(w, apiErr)
					return
				}
				slog.Error("failed to resolve identity",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			// 3. 新規発行した匿名IDをCookieに書き戻す
			if minted {
				http.SetCookie(w, &http.Cookie{
					Name:     AnonymousCookieName,
					Value:    identity.ID,
					Path:     "/",
					MaxAge:   config.CookieMaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// 4. Identityをコンテキストに注入
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext はリクエストコンテキストからIdentityを取得する。
// Identityミドルウェアを通過したリクエストでのみ有効。
func IdentityFromContext(ctx context.Context) (model.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || identity.ID == "" {
		return model.Identity{}, fmt.Errorf("identity not found in context")
	}
	return identity, nil
}

// ContextWithIdentity はコンテキストにIdentityを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, identity model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// cookieValue は指定Cookieの値を返す。不在の場合は空文字列。
func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// clearCookie は指定Cookieを即時失効させる。
func clearCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
