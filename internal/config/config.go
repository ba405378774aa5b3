// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageBackend はドキュメントストアのバックエンド種別を表す。
type StorageBackend string

const (
	// BackendMemory はプロセス内メモリバックエンド。再起動で内容は失われる。
	BackendMemory StorageBackend = "memory"
	// BackendPostgres はPostgreSQLバックエンド。
	BackendPostgres StorageBackend = "postgres"
	// BackendRedis はRedisバックエンド。
	BackendRedis StorageBackend = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Auth0
	Auth0Domain       string
	Auth0ClientID     string
	Auth0ClientSecret string
	Auth0RedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int // 秒。デフォルトは7日。

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Storage
	StorageBackend StorageBackend
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Realtime platform（カスタムトークン発行。空の場合は機能無効）
	RealtimeTokenSecret string
	RealtimeTokenTTL    time.Duration

	// Document
	MaxUploadSize int64
	ChunkMaxSize  int

	// Quota
	QuotaLimit int

	// Rate Limit
	RateLimitGeneral int
	RateLimitUpload  int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Logging
	Debug bool
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（上書きはしない）。
// 必須環境変数が未設定の場合は、不足している変数をすべて列挙した1つのエラーを返す。
func Load() (*Config, error) {
	// .envは開発用。存在しなくてもエラーにしない。
	_ = godotenv.Load()

	cfg := &Config{}

	var missing []string
	requireEnv := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.Auth0Domain = requireEnv("AUTH0_DOMAIN")
	cfg.Auth0ClientID = requireEnv("AUTH0_CLIENT_ID")
	cfg.Auth0ClientSecret = requireEnv("AUTH0_CLIENT_SECRET")
	cfg.Auth0RedirectURL = requireEnv("AUTH0_REDIRECT_URL")
	cfg.SessionSecret = requireEnv("SESSION_SECRET")
	cfg.GeminiAPIKey = requireEnv("GEMINI_API_KEY")
	cfg.BaseURL = requireEnv("BASE_URL")

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 604800) // 7日
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-1.5-flash-latest")
	cfg.StorageBackend = StorageBackend(getEnvString("STORAGE_BACKEND", string(BackendMemory)))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.RealtimeTokenSecret = os.Getenv("REALTIME_TOKEN_SECRET")
	cfg.RealtimeTokenTTL = getEnvDuration("REALTIME_TOKEN_TTL", time.Hour)
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 10*1024*1024)
	cfg.ChunkMaxSize = getEnvInt("CHUNK_MAX_SIZE", 4000)
	cfg.QuotaLimit = getEnvInt("QUOTA_LIMIT", 5)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.Debug = getEnvBool("DEBUG", false)

	// バックエンド種別に応じた条件付き必須変数も同じエラーに集約する
	switch cfg.StorageBackend {
	case BackendMemory:
		// 追加の必須変数なし
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND: %q (must be memory, postgres or redis)", cfg.StorageBackend)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
