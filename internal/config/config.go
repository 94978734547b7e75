package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// LLM
	OpenAIAPIKey          string
	PerplexityAPIKey      string
	LLMTimeout            time.Duration
	LLMMaxTokensChat      int
	LLMMaxTokensEstimate  int
	LLMMaxTokensEncourage int

	// Nutritionix
	NutritionixAppID  string
	NutritionixAppKey string

	// Rate Limit
	RateLimitGeneral int
	RateLimitAnalyze int

	// Worker
	ReconcileInterval    time.Duration
	ReconcileConcurrency int
	ChatLogRetentionDays int

	// Server
	ServerPort  string
	MetricsPort string
	BaseURL     string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.PerplexityAPIKey = getEnvString("PERPLEXITY_API_KEY", "")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 12*time.Second)
	cfg.LLMMaxTokensChat = getEnvInt("LLM_MAX_TOKENS_CHAT", 500)
	cfg.LLMMaxTokensEstimate = getEnvInt("LLM_MAX_TOKENS_ESTIMATE", 100)
	cfg.LLMMaxTokensEncourage = getEnvInt("LLM_MAX_TOKENS_ENCOURAGE", 200)
	cfg.NutritionixAppID = getEnvString("NUTRITIONIX_APP_ID", "")
	cfg.NutritionixAppKey = getEnvString("NUTRITIONIX_APP_KEY", "")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAnalyze = getEnvInt("RATE_LIMIT_ANALYZE", 10)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", 24*time.Hour)
	cfg.ReconcileConcurrency = getEnvInt("RECONCILE_CONCURRENCY", 10)
	cfg.ChatLogRetentionDays = getEnvInt("CHATLOG_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

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
