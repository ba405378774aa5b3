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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordUpload(outcome string)
	RecordExtractionFailure(reason string)
	RecordQuestion(outcome string)
	RecordQuotaDenied()
	RecordGenerationLatency(duration time.Duration)
	RecordStoreFallback(op string)
	RecordHTTPStatus(statusCode int)
}

// アップロード・質問の結果ラベル。
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	uploads           *prometheus.CounterVec
	extractionFail    *prometheus.CounterVec
	questions         *prometheus.CounterVec
	quotaDenied       prometheus.Counter
	generationLatency prometheus.Histogram
	storeFallback     *prometheus.CounterVec
	httpStatus        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat2doc_uploads_total",
			Help: "ドキュメントアップロードの合計数（結果別）",
		}, []string{"outcome"}),
		extractionFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat2doc_extraction_fail_total",
			Help: "テキスト抽出失敗の合計数（原因別）",
		}, []string{"reason"}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat2doc_questions_total",
			Help: "質問の合計数（結果別）",
		}, []string{"outcome"}),
		quotaDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat2doc_quota_denied_total",
			Help: "クォータ超過で拒否された質問の合計数",
		}),
		generationLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat2doc_generation_latency_seconds",
			Help:    "回答生成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		storeFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat2doc_store_fallback_total",
			Help: "ドキュメントストアのフォールバック発生数（操作別）",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat2doc_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.uploads,
		c.extractionFail,
		c.questions,
		c.quotaDenied,
		c.generationLatency,
		c.storeFallback,
		c.httpStatus,
	)

	return c
}

// RecordUpload はアップロードの結果を記録する。
func (c *Collector) RecordUpload(outcome string) {
	c.uploads.WithLabelValues(outcome).Inc()
}

// RecordExtractionFailure はテキスト抽出の失敗を原因別に記録する。
func (c *Collector) RecordExtractionFailure(reason string) {
	c.extractionFail.WithLabelValues(reason).Inc()
}

// RecordQuestion は質問の結果を記録する。
func (c *Collector) RecordQuestion(outcome string) {
	c.questions.WithLabelValues(outcome).Inc()
}

// RecordQuotaDenied はクォータ超過による拒否を記録する。
func (c *Collector) RecordQuotaDenied() {
	c.quotaDenied.Inc()
}

// RecordGenerationLatency は回答生成のレイテンシを記録する。
func (c *Collector) RecordGenerationLatency(duration time.Duration) {
	c.generationLatency.Observe(duration.Seconds())
}

// RecordStoreFallback はドキュメントストアのフォールバック発生を記録する。
func (c *Collector) RecordStoreFallback(op string) {
	c.storeFallback.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
