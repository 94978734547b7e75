package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuki/nourish/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger                  // nil許容（デフォルトロガーを使用）
	HTTPMetrics       middleware.HTTPStatusRecorder // nil許容

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロフィール
	ProfileService ProfileServiceInterface

	// 食事
	MealService MealServiceInterface
	MealMetrics MealMetrics // nil許容

	// 体重
	WeightService WeightServiceInterface

	// チャット
	ChatService ChatServiceInterface

	// 励まし
	Encourager DailyEncourager

	// 食品検索
	FoodSearch FoodSearchInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS →
//	SessionMiddleware → CSRFMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）とヘルスチェックはセッション以降のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// 全ルートに効く外側のミドルウェア
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.ProfileService)
	mealHandler := NewMealHandler(deps.MealService, deps.MealMetrics)
	weightHandler := NewWeightHandler(deps.WeightService)
	chatHandler := NewChatHandler(deps.ChatService)
	encourageHandler := NewEncourageHandler(deps.Encourager)
	foodHandler := NewFoodHandler(deps.FoodSearch)

	// --- 認証不要のルート ---

	// ヘルスチェック
	r.Get("/health", healthHandler)

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// CSRFトークン発行
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール管理
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.Get)
			r.Put("/", profileHandler.Update)
		})

		// 食事記録
		r.Route("/api/meals", func(r chi.Router) {
			// POST /api/meals/analyze - LLM栄養推定（推定専用レート制限を追加）
			r.With(deps.RateLimiter.AnalyzeMiddleware()).Post("/analyze", mealHandler.Analyze)

			r.Post("/", mealHandler.Save)
			r.Get("/", mealHandler.List)
			r.Put("/{id}", mealHandler.Update)
			r.Delete("/{id}", mealHandler.Delete)
		})

		// 当日統計
		r.Get("/api/stats/today", mealHandler.TodayStats)

		// 体重記録
		r.Route("/api/weight", func(r chi.Router) {
			r.Put("/", weightHandler.Record)
			r.Get("/", weightHandler.History)
		})

		// AIチャット
		r.Route("/api/chat", func(r chi.Router) {
			r.Post("/", chatHandler.Send)
			r.Get("/history", chatHandler.History)
		})

		// 励ましメッセージ
		r.Get("/api/encouragement/daily", encourageHandler.Daily)

		// 食品データベース検索（外部APIプロキシ）
		r.Route("/api/foods", func(r chi.Router) {
			r.Get("/search", foodHandler.Search)
			r.Post("/nutrients", foodHandler.Nutrients)
			r.Get("/item", foodHandler.Item)
		})

		// ユーザー管理
		r.Delete("/api/users/me", profileHandler.Withdraw)
	})

	return r
}

// healthHandler はヘルスチェックレスポンスを返す。
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
