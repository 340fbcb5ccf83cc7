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
// ハンドラーやワーカーから利用する。
type MetricsCollector interface {
	RecordInviteIssued(orgID string)
	RecordInviteAccept(outcome string)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLogoFetchSuccess(orgID string)
	RecordLogoFetchFailure(orgID string, reason string)
	RecordMaintenanceDeleted(kind string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	inviteIssued       prometheus.Counter
	inviteAccept       *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
	logoFetchSuccess   prometheus.Counter
	logoFetchFail      prometheus.Counter
	maintenanceDeleted *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		inviteIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "karte_invite_issued_total",
			Help: "発行された招待の合計数",
		}),
		inviteAccept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karte_invite_accept_total",
			Help: "招待受諾試行の結果別合計数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karte_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "karte_request_latency_seconds",
			Help:    "APIリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logoFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "karte_logo_fetch_success_total",
			Help: "組織ロゴ取得成功の合計数",
		}),
		logoFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "karte_logo_fetch_fail_total",
			Help: "組織ロゴ取得失敗の合計数",
		}),
		maintenanceDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "karte_maintenance_deleted_total",
			Help: "メンテナンスで削除されたレコードの種別合計数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.inviteIssued,
		c.inviteAccept,
		c.httpStatus,
		c.requestLatency,
		c.logoFetchSuccess,
		c.logoFetchFail,
		c.maintenanceDeleted,
	)

	return c
}

// RecordInviteIssued は招待発行を記録する。
func (c *Collector) RecordInviteIssued(orgID string) {
	c.inviteIssued.Inc()
}

// RecordInviteAccept は招待受諾試行の結果を記録する。
// outcomeは accepted / email_mismatch / not_pending / not_found などの結果名。
func (c *Collector) RecordInviteAccept(outcome string) {
	c.inviteAccept.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストのレイテンシを記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLogoFetchSuccess はロゴ取得成功を記録する。
func (c *Collector) RecordLogoFetchSuccess(orgID string) {
	c.logoFetchSuccess.Inc()
}

// RecordLogoFetchFailure はロゴ取得失敗を記録する。
func (c *Collector) RecordLogoFetchFailure(orgID string, reason string) {
	c.logoFetchFail.Inc()
}

// RecordMaintenanceDeleted はメンテナンスで削除したレコード数を記録する。
func (c *Collector) RecordMaintenanceDeleted(kind string, count int64) {
	c.maintenanceDeleted.WithLabelValues(kind).Add(float64(count))
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
