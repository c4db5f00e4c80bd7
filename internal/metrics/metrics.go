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
// ボードの読み込み処理とHTTPハンドラーから利用する。
type MetricsCollector interface {
	RecordLoadSuccess(count int)
	RecordLoadFailure(reason string)
	RecordUpstreamStatus(statusCode int)
	RecordLoadLatency(duration time.Duration)
	RecordFilterRequest(filtered bool)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loadSuccess    prometheus.Counter
	loadFail       *prometheus.CounterVec
	upstreamStatus *prometheus.CounterVec
	loadLatency    prometheus.Histogram
	loaded         prometheus.Gauge
	filterRequests *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loadSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campusclimb_load_success_total",
			Help: "募集情報読み込み成功の合計数",
		}),
		loadFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusclimb_load_fail_total",
			Help: "募集情報読み込み失敗の合計数",
		}, []string{"reason"}),
		upstreamStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusclimb_upstream_http_status_total",
			Help: "上流APIのエラーステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		loadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campusclimb_load_latency_seconds",
			Help:    "募集情報読み込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "campusclimb_opportunities_loaded",
			Help: "直近の読み込みで取得した募集情報の件数",
		}),
		filterRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campusclimb_filter_requests_total",
			Help: "絞り込み条件付き・なしの表示リクエスト数",
		}, []string{"filtered"}),
	}

	reg.MustRegister(
		c.loadSuccess,
		c.loadFail,
		c.upstreamStatus,
		c.loadLatency,
		c.loaded,
		c.filterRequests,
	)

	return c
}

// RecordLoadSuccess は読み込み成功と取得件数を記録する。
func (c *Collector) RecordLoadSuccess(count int) {
	c.loadSuccess.Inc()
	c.loaded.Set(float64(count))
}

// RecordLoadFailure は読み込み失敗を記録する。失敗時は件数を0にする。
func (c *Collector) RecordLoadFailure(reason string) {
	c.loadFail.WithLabelValues(reason).Inc()
	c.loaded.Set(0)
}

// RecordUpstreamStatus は上流APIのHTTPステータスコードを記録する。
func (c *Collector) RecordUpstreamStatus(statusCode int) {
	c.upstreamStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordLoadLatency は読み込みのレイテンシを記録する。
func (c *Collector) RecordLoadLatency(duration time.Duration) {
	c.loadLatency.Observe(duration.Seconds())
}

// RecordFilterRequest は表示リクエストを絞り込み条件の有無別に記録する。
func (c *Collector) RecordFilterRequest(filtered bool) {
	c.filterRequests.WithLabelValues(strconv.FormatBool(filtered)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
