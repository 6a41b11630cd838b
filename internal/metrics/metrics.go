// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はバックエンドAPI呼び出しとセッション操作のメトリクスを収集する。
// apiclient.Recorder を満たす。
type Collector struct {
	apiRequests *prometheus.CounterVec
	apiFailures *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	logins      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harryweb_api_requests_total",
			Help: "バックエンドAPIへのリクエスト数（メソッド・ステータス別）",
		}, []string{"method", "status_code"}),
		apiFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harryweb_api_failures_total",
			Help: "バックエンドAPI呼び出し失敗の数（種別別）",
		}, []string{"method", "kind"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harryweb_api_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harryweb_logins_total",
			Help: "ログイン試行の数（結果別）",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.apiRequests,
		c.apiFailures,
		c.apiLatency,
		c.logins,
	)

	return c
}

// RecordAPIRequest はレスポンスを受け取ったAPI呼び出しを記録する。
func (c *Collector) RecordAPIRequest(method string, statusCode int, duration time.Duration) {
	c.apiRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.apiLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordAPIFailure はAPI呼び出しの失敗を記録する。
func (c *Collector) RecordAPIFailure(method string, kind string) {
	c.apiFailures.WithLabelValues(method, kind).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
