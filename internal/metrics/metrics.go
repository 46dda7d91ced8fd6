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
// フェッチャー、インジェスター、スケジューラから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchFailure()
	RecordFetchLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordPostingsUpserted(count int)
	RecordSweep(feedCount int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess     prometheus.Counter
	fetchFail        prometheus.Counter
	fetchLatency     prometheus.Histogram
	httpStatus       *prometheus.CounterVec
	postingsUpserted prometheus.Counter
	sweeps           prometheus.Counter
	sweptFeeds       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_fetch_success_total",
			Help: "フィードフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedcloud_fetch_latency_seconds",
			Help:    "フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feedcloud_fetch_http_status_total",
			Help: "アップストリームのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		postingsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_postings_upserted_total",
			Help: "UPSERTされた記事の合計数",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_scheduler_sweeps_total",
			Help: "スケジューラのスイープ実行回数",
		}),
		sweptFeeds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "feedcloud_scheduler_swept_feeds_total",
			Help: "スイープで起動されたリフレッシュタスクの合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.fetchLatency,
		c.httpStatus,
		c.postingsUpserted,
		c.sweeps,
		c.sweptFeeds,
	)

	return c
}

// RecordFetchSuccess はフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフェッチ失敗を記録する。
func (c *Collector) RecordFetchFailure() {
	c.fetchFail.Inc()
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はアップストリームのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordPostingsUpserted はUPSERTされた記事数を記録する。
func (c *Collector) RecordPostingsUpserted(count int) {
	c.postingsUpserted.Add(float64(count))
}

// RecordSweep はスイープの実行と起動されたタスク数を記録する。
func (c *Collector) RecordSweep(feedCount int) {
	c.sweeps.Inc()
	c.sweptFeeds.Add(float64(feedCount))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
