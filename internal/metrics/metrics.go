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
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordListingCreated()
	RecordPurchases(count int)
	RecordCheckoutLine(outcome string)
	RecordCheckoutLatency(duration time.Duration)
	RecordImageUpload()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus      *prometheus.CounterVec
	listingsCreated prometheus.Counter
	purchases       prometheus.Counter
	checkoutLines   *prometheus.CounterVec
	checkoutLatency prometheus.Histogram
	imageUploads    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecofinds_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecofinds_listings_created_total",
			Help: "作成された商品の合計数",
		}),
		purchases: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecofinds_purchases_total",
			Help: "作成された購入記録の合計数",
		}),
		checkoutLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ecofinds_checkout_lines_total",
			Help: "チェックアウト明細の結果別件数",
		}, []string{"outcome"}),
		checkoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecofinds_checkout_latency_seconds",
			Help:    "チェックアウト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		imageUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ecofinds_image_uploads_total",
			Help: "アップロードされた画像の合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.listingsCreated,
		c.purchases,
		c.checkoutLines,
		c.checkoutLatency,
		c.imageUploads,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordListingCreated は商品作成を記録する。
func (c *Collector) RecordListingCreated() {
	c.listingsCreated.Inc()
}

// RecordPurchases は作成された購入記録数を記録する。
func (c *Collector) RecordPurchases(count int) {
	c.purchases.Add(float64(count))
}

// RecordCheckoutLine はチェックアウト明細の結果（committed/skipped/conflict）を記録する。
func (c *Collector) RecordCheckoutLine(outcome string) {
	c.checkoutLines.WithLabelValues(outcome).Inc()
}

// RecordCheckoutLatency はチェックアウトのレイテンシを記録する。
func (c *Collector) RecordCheckoutLatency(duration time.Duration) {
	c.checkoutLatency.Observe(duration.Seconds())
}

// RecordImageUpload は画像アップロードを記録する。
func (c *Collector) RecordImageUpload() {
	c.imageUploads.Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordListingCreated() {}
func (Nop) RecordPurchases(int) {}
func (Nop) RecordCheckoutLine(string) {}
func (Nop) RecordCheckoutLatency(time.Duration) {}
func (Nop) RecordImageUpload() {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
