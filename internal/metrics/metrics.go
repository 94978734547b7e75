// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordLLMRequest(model, outcome string, duration time.Duration)
	RecordEstimate(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordMealLogged()
	RecordDriftRepaired(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	llmRequests   *prometheus.CounterVec
	llmLatency    prometheus.Histogram
	estimates     *prometheus.CounterVec
	httpStatus    *prometheus.CounterVec
	mealsLogged   prometheus.Counter
	driftRepaired *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nourish_llm_requests_total",
			Help: "モデル・結果別のLLMリクエスト数",
		}, []string{"model", "outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nourish_llm_latency_seconds",
			Help:    "LLMリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nourish_nutrition_estimates_total",
			Help: "結果別の栄養推定数（success/fallback）",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nourish_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		mealsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nourish_meals_logged_total",
			Help: "記録された食事の合計数",
		}),
		driftRepaired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nourish_drift_repaired_total",
			Help: "整合ワーカーが修復した派生値ドリフトの数（種類別）",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.llmRequests,
		c.llmLatency,
		c.estimates,
		c.httpStatus,
		c.mealsLogged,
		c.driftRepaired,
	)

	return c
}

// RecordLLMRequest はLLMリクエストの結果とレイテンシを記録する。
// outcomeは"success"または"error"。
func (c *Collector) RecordLLMRequest(model, outcome string, duration time.Duration) {
	c.llmRequests.WithLabelValues(model, outcome).Inc()
	c.llmLatency.Observe(duration.Seconds())
}

// RecordEstimate は栄養推定の結果を記録する。outcomeは"success"または"fallback"。
func (c *Collector) RecordEstimate(outcome string) {
	c.estimates.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordMealLogged は食事記録の保存を記録する。
func (c *Collector) RecordMealLogged() {
	c.mealsLogged.Inc()
}

// RecordDriftRepaired は整合ワーカーによるドリフト修復を記録する。
// kindは"derived"（プロフィール派生値）または"meal_totals"（食事集計値）。
func (c *Collector) RecordDriftRepaired(kind string) {
	c.driftRepaired.WithLabelValues(kind).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
