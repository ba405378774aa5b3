package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/chat2doc/internal/auth"
	"github.com/hitoshi/chat2doc/internal/chat"
	"github.com/hitoshi/chat2doc/internal/config"
	"github.com/hitoshi/chat2doc/internal/database"
	"github.com/hitoshi/chat2doc/internal/document"
	"github.com/hitoshi/chat2doc/internal/extract"
	"github.com/hitoshi/chat2doc/internal/handler"
	"github.com/hitoshi/chat2doc/internal/history"
	"github.com/hitoshi/chat2doc/internal/llm"
	"github.com/hitoshi/chat2doc/internal/logger"
	"github.com/hitoshi/chat2doc/internal/metrics"
	"github.com/hitoshi/chat2doc/internal/middleware"
	"github.com/hitoshi/chat2doc/internal/quota"
	"github.com/hitoshi/chat2doc/internal/store"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, false)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. DEBUG指定時はログレベルを引き上げて再セットアップする
	if cfg.Debug {
		logger.SetupDefault(w, true)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("storage_backend", string(cfg.StorageBackend)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// storageDeps はバックエンド選択の結果をまとめて保持する。
type storageDeps struct {
	docStore    store.DocumentStore
	historyRepo history.Repository
	tracker     quota.Tracker
	prober      handler.FallbackProber
	closeFn     func()
}

// buildStorage はSTORAGE_BACKENDに応じてドキュメントストア・履歴・
// クォータトラッカーを組み立てる。postgres/redisバックエンドは
// メモリ退避ラッパー（FallbackStore）で包み、障害時も応答を継続する。
func buildStorage(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*storageDeps, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := database.Ping(ctx, db, 5*time.Second); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		fallback := store.NewFallbackStore(store.NewPostgresStore(db), slog.Default(), collector)
		return &storageDeps{
			docStore:    fallback,
			historyRepo: history.NewPostgresRepository(db),
			tracker:     quota.NewMemoryTracker(cfg.QuotaLimit),
			prober:      fallback,
			closeFn:     func() { db.Close() },
		}, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")

		fallback := store.NewFallbackStore(store.NewRedisStore(client), slog.Default(), collector)
		return &storageDeps{
			docStore:    fallback,
			historyRepo: history.NewMemoryRepository(),
			tracker:     quota.NewRedisTracker(client, cfg.QuotaLimit),
			prober:      fallback,
			closeFn:     func() { client.Close() },
		}, nil

	default:
		// メモリバックエンド。退避先がバックエンドそのものなのでラップしない。
		return &storageDeps{
			docStore:    store.NewMemoryStore(),
			historyRepo: history.NewMemoryRepository(),
			tracker:     quota.NewMemoryTracker(cfg.QuotaLimit),
			closeFn:     func() {},
		}, nil
	}
}

// runServe はAPIサーバーモードで起動する。
// ストレージバックエンドを選択し、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. メトリクスコレクタの初期化
	// 専用レジストリを使い、プロセス内で複数回起動しても二重登録にならないようにする。
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. ストレージバックエンドの組み立て
	storageD, err := buildStorage(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer storageD.closeFn()

	// 3. ドキュメントサービスの初期化
	extractor := extract.NewExtractor(cfg.MaxUploadSize)
	docService := document.NewService(extractor, storageD.docStore, cfg.MaxUploadSize, slog.Default())

	// 4. 回答生成器の初期化
	generator, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}
	defer generator.Close()

	chatService := chat.NewService(
		storageD.tracker, storageD.docStore, generator, storageD.historyRepo,
		cfg.ChunkMaxSize, cfg.QuotaLimit, slog.Default(),
	)

	// 5. 認証まわりの初期化
	oauthProvider := auth.NewAuth0Provider(auth.Auth0Config{
		Domain:       cfg.Auth0Domain,
		ClientID:     cfg.Auth0ClientID,
		ClientSecret: cfg.Auth0ClientSecret,
		RedirectURL:  cfg.Auth0RedirectURL,
	})
	codec := auth.NewTokenCodec(cfg.SessionSecret, time.Duration(cfg.SessionMaxAge)*time.Second)
	authService := auth.NewService(oauthProvider, codec)
	resolver := auth.NewResolver(codec)

	// 6. レートリミッタの初期化
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitUpload),
	)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Resolver: resolver,
		IdentityConfig: middleware.IdentityConfig{
			CookieSecure: cfg.CookieSecure,
			CookieMaxAge: cfg.SessionMaxAge,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		DocumentService: docService,
		ChatService:     chatService,
		HistoryRepo:     storageD.historyRepo,
		MaxUploadSize:   cfg.MaxUploadSize,

		Collector:      collector,
		Gatherer:       registry,
		FallbackProber: storageD.prober,
	}

	// リアルタイムトークン発行は秘密鍵が設定された場合のみ有効化する
	if cfg.RealtimeTokenSecret != "" {
		deps.TokenMinter = auth.NewRealtimeTokenMinter(cfg.RealtimeTokenSecret, cfg.RealtimeTokenTTL)
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
