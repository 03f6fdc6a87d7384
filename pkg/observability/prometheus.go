package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements every hook interface with Prometheus collectors.
type Prometheus struct {
	renders        *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	toolMissing    *prometheus.CounterVec
	pages          prometheus.Counter
	diagrams       prometheus.Counter
	warnings       prometheus.Counter
	pageDuration   prometheus.Histogram
	cacheLookups   *prometheus.CounterVec
	cacheBytes     *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewPrometheus registers the mmdoc collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		renders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmdoc_renders_total",
			Help: "External renderer invocations by format and result",
		}, []string{"format", "result"}),
		renderDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mmdoc_render_duration_seconds",
			Help:    "External renderer duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"format"}),
		toolMissing: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmdoc_tool_missing_total",
			Help: "Renders skipped because the tool binary was not found",
		}, []string{"command"}),
		pages: f.NewCounter(prometheus.CounterOpts{
			Name: "mmdoc_pages_built_total",
			Help: "Pages built",
		}),
		diagrams: f.NewCounter(prometheus.CounterOpts{
			Name: "mmdoc_diagrams_total",
			Help: "Diagram instances emitted",
		}),
		warnings: f.NewCounter(prometheus.CounterOpts{
			Name: "mmdoc_warnings_total",
			Help: "Warnings reported while building pages",
		}),
		pageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mmdoc_page_build_duration_seconds",
			Help:    "Page build duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmdoc_cache_lookups_total",
			Help: "Artifact cache lookups by layer and result",
		}, []string{"layer", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmdoc_cache_written_bytes_total",
			Help: "Bytes written to artifact caches",
		}, []string{"layer"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mmdoc_http_requests_total",
			Help: "Preview server responses by method and status",
		}, []string{"method", "status"}),
		requestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mmdoc_http_request_duration_seconds",
			Help:    "Preview server latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

func (p *Prometheus) OnRenderStart(context.Context, string) {}

func (p *Prometheus) OnRenderComplete(_ context.Context, format string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.renders.WithLabelValues(format, result).Inc()
	p.renderDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (p *Prometheus) OnToolMissing(_ context.Context, command string) {
	p.toolMissing.WithLabelValues(command).Inc()
}

func (p *Prometheus) OnPageComplete(_ context.Context, _ string, diagrams, warnings int, d time.Duration) {
	p.pages.Inc()
	p.diagrams.Add(float64(diagrams))
	p.warnings.Add(float64(warnings))
	p.pageDuration.Observe(d.Seconds())
}

func (p *Prometheus) OnCacheHit(_ context.Context, layer string) {
	p.cacheLookups.WithLabelValues(layer, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, layer string) {
	p.cacheLookups.WithLabelValues(layer, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, layer string, size int) {
	p.cacheBytes.WithLabelValues(layer).Add(float64(size))
}

// OnRequest is a no-op; requests are counted when the response completes.
func (p *Prometheus) OnRequest(context.Context, string, string) {}

// OnResponse counts by method and status only, so paths do not blow up label cardinality.
func (p *Prometheus) OnResponse(_ context.Context, method, _ string, status int, d time.Duration) {
	p.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	p.requestLatency.WithLabelValues(method).Observe(d.Seconds())
}

var (
	_ RenderHooks = (*Prometheus)(nil)
	_ CacheHooks  = (*Prometheus)(nil)
	_ HTTPHooks   = (*Prometheus)(nil)
)
