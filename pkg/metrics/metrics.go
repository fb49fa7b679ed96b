package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ItemsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "designpress", Name: "cms_items_created_total", Help: "Number of CMS item creations by outcome."},
		[]string{"outcome"},
	)
	PDFsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "designpress", Name: "pdfs_rendered_total", Help: "Number of PDF render requests by outcome."},
		[]string{"outcome"},
	)
	RenderDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "designpress", Name: "pdf_render_duration_seconds", Help: "Time spent rendering a page to PDF.", Buckets: prometheus.ExponentialBuckets(0.25, 2, 8)},
	)
	AssetUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "designpress", Name: "cms_asset_uploads_total", Help: "Number of CMS asset uploads by outcome."},
		[]string{"outcome"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "designpress", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "designpress", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

// Outcome labels used across the counters above.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(ItemsCreated)
	reg.MustRegister(PDFsRendered)
	reg.MustRegister(RenderDuration)
	reg.MustRegister(AssetUploads)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
