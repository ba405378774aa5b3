package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	UploadRate      rate.Limit    // アップロードのレート（req/sec）。10/60
	UploadBurst     int           // アップロードのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min、アップロード 10 req/min（Identityごと）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10)
}

// NewRateLimiterConfig は1分あたりの上限からレート制限設定を生成する。
func NewRateLimiterConfig(generalPerMinute, uploadPerMinute int) RateLimiterConfig {
	if generalPerMinute <= 0 {
		generalPerMinute = 120
	}
	if uploadPerMinute <= 0 {
		uploadPerMinute = 10
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		UploadRate:      rate.Limit(float64(uploadPerMinute) / 60.0),
		UploadBurst:     uploadPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// ownerLimiter はIdentityごとのレートリミッターとアクセス時刻を保持する。
type ownerLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はIdentityごとのレート制限を管理する。
// API全般のレート制限と、PDF解析を伴うアップロード専用のレート制限の
// 2種類を提供する。匿名・認証済みを問わずIdentity IDをキーとする。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*ownerLimiter

	uploadMu       sync.RWMutex
	uploadLimiters map[string]*ownerLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*ownerLimiter),
		uploadLimiters:  make(map[string]*ownerLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにIdentityが含まれている必要がある
// （Identityミドルウェアの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteInternalServerError(w)
				return
			}

			limiter := rl.getOrCreateGeneralLimiter(identity.ID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("owner_id", identity.ID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// UploadMiddleware はアップロード専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) UploadMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteInternalServerError(w)
				return
			}

			limiter := rl.getOrCreateUploadLimiter(identity.ID)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.UploadRate)
				slog.Warn("rate limit exceeded",
					slog.String("owner_id", identity.ID),
					slog.String("limit_type", "upload"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよび診断用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// UploadLimiterCount は現在管理されているアップロードリミッターのエントリ数を返す。
// テストおよび診断用。
func (rl *RateLimiter) UploadLimiterCount() int {
	rl.uploadMu.RLock()
	defer rl.uploadMu.RUnlock()
	return len(rl.uploadLimiters)
}

// getOrCreateGeneralLimiter はIdentityのAPI全般リミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateGeneralLimiter(ownerID string) *rate.Limiter {
	rl.generalMu.RLock()
	ol, exists := rl.generalLimiters[ownerID]
	rl.generalMu.RUnlock()

	if exists {
		rl.generalMu.Lock()
		ol.lastAccess = time.Now()
		rl.generalMu.Unlock()
		return ol.limiter
	}

	rl.generalMu.Lock()
	defer rl.generalMu.Unlock()

	// ダブルチェック
	if ol, exists := rl.generalLimiters[ownerID]; exists {
		ol.lastAccess = time.Now()
		return ol.limiter
	}

	limiter := rate.NewLimiter(rl.config.GeneralRate, rl.config.GeneralBurst)
	rl.generalLimiters[ownerID] = &ownerLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// getOrCreateUploadLimiter はIdentityのアップロードリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateUploadLimiter(ownerID string) *rate.Limiter {
	rl.uploadMu.RLock()
	ol, exists := rl.uploadLimiters[ownerID]
	rl.uploadMu.RUnlock()

	if exists {
		rl.uploadMu.Lock()
		ol.lastAccess = time.Now()
		rl.uploadMu.Unlock()
		return ol.limiter
	}

	rl.uploadMu.Lock()
	defer rl.uploadMu.Unlock()

	// ダブルチェック
	if ol, exists := rl.uploadLimiters[ownerID]; exists {
		ol.lastAccess = time.Now()
		return ol.limiter
	}

	limiter := rate.NewLimiter(rl.config.UploadRate, rl.config.UploadBurst)
	rl.uploadLimiters[ownerID] = &ownerLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for ownerID, ol := range rl.generalLimiters {
		if now.Sub(ol.lastAccess) > ttl {
			delete(rl.generalLimiters, ownerID)
		}
	}
	rl.generalMu.Unlock()

	rl.uploadMu.Lock()
	for ownerID, ol := range rl.uploadLimiters {
		if now.Sub(ol.lastAccess) > ttl {
			delete(rl.uploadLimiters, ownerID)
		}
	}
	rl.uploadMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	w.Write([]byte(`{"code":"RATE_LIMIT_EXCEEDED","kind":"quota","message":"リクエストが多すぎます。","action":"しばらく待ってから再度お試しください。"}` + "\n"))
}
