package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/chat2doc/internal/auth"
	"github.com/hitoshi/chat2doc/internal/history"
	"github.com/hitoshi/chat2doc/internal/metrics"
	"github.com/hitoshi/chat2doc/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          *auth.Resolver
	IdentityConfig    middleware.IdentityConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	TokenMinter RealtimeTokenMinterInterface
	AuthConfig  AuthHandlerConfig

	// ドキュメントと質問応答
	DocumentService DocumentServiceInterface
	ChatService     ChatServiceInterface
	HistoryRepo     history.Repository
	MaxUploadSize   int64

	// 観測
	Collector      metrics.MetricsCollector
	Gatherer       prometheus.Gatherer
	FallbackProber FallbackProber
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Identity → RateLimit(General)
//
// /healthと/metricsはIdentity解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.TokenMinter, deps.AuthConfig)
	uploadHandler := NewUploadHandler(deps.DocumentService, deps.Collector, deps.MaxUploadSize)
	chatHandler := NewChatHandler(deps.ChatService, deps.Collector)
	historyHandler := NewHistoryHandler(deps.HistoryRepo)
	healthHandler := NewHealthHandler(deps.FallbackProber)

	// --- Identity解決の外のルート ---

	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// OAuthフロー（IdentityのないブラウザからのリダイレクトでもCookieを扱える）
	r.Get("/auth/login", authHandler.Login)
	r.Get("/auth/callback", authHandler.Callback)
	r.Get("/auth/logout", authHandler.Logout)

	// --- Identityが必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware(deps.Resolver, deps.IdentityConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/session", authHandler.Session)
		r.Post("/auth/realtime-token", authHandler.RealtimeToken)

		// POST /upload - PDF取り込み（アップロード専用レート制限を追加）
		r.With(deps.RateLimiter.UploadMiddleware()).Post("/upload", uploadHandler.Upload)

		r.Post("/ask", chatHandler.Ask)
		r.Get("/history", historyHandler.List)
	})

	return r
}
