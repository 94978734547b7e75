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

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/yuki/nourish/internal/auth"
	"github.com/yuki/nourish/internal/chat"
	"github.com/yuki/nourish/internal/config"
	"github.com/yuki/nourish/internal/database"
	"github.com/yuki/nourish/internal/encourage"
	"github.com/yuki/nourish/internal/foodsearch"
	"github.com/yuki/nourish/internal/handler"
	"github.com/yuki/nourish/internal/llm"
	"github.com/yuki/nourish/internal/logger"
	"github.com/yuki/nourish/internal/meal"
	"github.com/yuki/nourish/internal/metrics"
	"github.com/yuki/nourish/internal/middleware"
	"github.com/yuki/nourish/internal/nutrition"
	"github.com/yuki/nourish/internal/profile"
	"github.com/yuki/nourish/internal/repository"
	"github.com/yuki/nourish/internal/security"
	"github.com/yuki/nourish/internal/weight"
	"github.com/yuki/nourish/internal/worker/cleanup"
	"github.com/yuki/nourish/internal/worker/reconcile"
)

// maxLLMResponseSize はLLM・外部APIレスポンスの読み取り上限。
const maxLLMResponseSize = 1 << 20

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// buildCompleter はLLMフォールバックチェーンを構築する。
// gpt-4o-mini → gpt-3.5-turbo の順に試行し、
// PerplexityのAPIキーが設定されている場合は最後にsonarを試行する。
func buildCompleter(cfg *config.Config, ssrfGuard security.SSRFGuardService, collector *metrics.Collector) *llm.Chain {
	safeClient := ssrfGuard.NewSafeClient(cfg.LLMTimeout, maxLLMResponseSize)

	openaiClient := llm.NewClient(safeClient, slog.Default(), llm.OpenAIEndpoint, cfg.OpenAIAPIKey)
	candidates := []llm.Candidate{
		{Client: openaiClient, Model: "gpt-4o-mini"},
		{Client: openaiClient, Model: "gpt-3.5-turbo"},
	}

	if cfg.PerplexityAPIKey != "" {
		perplexityClient := llm.NewClient(safeClient, slog.Default(), llm.PerplexityEndpoint, cfg.PerplexityAPIKey)
		candidates = append(candidates, llm.Candidate{Client: perplexityClient, Model: "sonar"})
	}

	return llm.NewChain(candidates, cfg.LLMTimeout, slog.Default(), collector)
}

// startMetricsServer はPrometheusスクレイプ用のメトリクスサーバーを
// バックグラウンドで起動する。
func startMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	server := &http.Server{
		Addr:    ":" + port,
		Handler: metrics.SetupMetricsRoute(gatherer),
	}

	go func() {
		slog.Info("metrics server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	return server
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	mealRepo := repository.NewPostgresMealRepo(db)
	weightRepo := repository.NewPostgresWeightRepo(db)
	chatLogRepo := repository.NewPostgresChatLogRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 5. LLMチェーンの構築
	completer := buildCompleter(cfg, ssrfGuard, collector)

	// 6. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	estimator := nutrition.NewEstimator(completer, slog.Default(), cfg.LLMMaxTokensEstimate, collector)
	composer := encourage.NewComposer(completer, slog.Default(), cfg.LLMMaxTokensEncourage)

	profileService := profile.NewService(userRepo, sessionRepo, sanitizer)
	mealService := meal.NewService(mealRepo, userRepo, estimator, composer, sanitizer)
	weightService := weight.NewService(weightRepo)
	chatService := chat.NewService(userRepo, chatLogRepo, completer, sanitizer, cfg.LLMMaxTokensChat)

	foodClient := foodsearch.NewClient(
		ssrfGuard.NewSafeClient(10*time.Second, maxLLMResponseSize),
		slog.Default(),
		cfg.NutritionixAppID,
		cfg.NutritionixAppKey,
	)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.AnalyzeRate = rate.Limit(float64(cfg.RateLimitAnalyze) / 60.0)
	rateLimiterCfg.AnalyzeBurst = cfg.RateLimitAnalyze

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}

	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterCfg),
		CSRFConfig:        csrfConfig,
		Logger:            slog.Default(),
		HTTPMetrics:       collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProfileService: profileService,
		MealService:    mealService,
		MealMetrics:    collector,
		WeightService:  weightService,
		ChatService:    chatService,
		Encourager:     composer,
		FoodSearch:     foodClient,
	}

	router := handler.NewRouter(deps)

	// 8. メトリクスサーバーの起動（APIサーバーとは別ポート）
	metricsServer := startMetricsServer(cfg.MetricsPort, registry)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、派生値の整合ワーカーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	mealRepo := repository.NewPostgresMealRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	chatLogRepo := repository.NewPostgresChatLogRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	metricsServer := startMetricsServer(cfg.MetricsPort, registry)

	// 4. 整合ワーカーの初期化
	reconcileWorker := reconcile.NewWorker(
		userRepo, mealRepo, slog.Default(), collector, cfg.ReconcileConcurrency,
	)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(chatLogRepo, sessionRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.ChatLogRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Int("max_concurrency", cfg.ReconcileConcurrency),
		slog.Int("chat_log_retention_days", cfg.ChatLogRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 整合ワーカーをメインgoroutineで実行（ブロッキング）
	reconcileWorker.Start(ctx, cfg.ReconcileInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
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
