package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"imgresize/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	outcomeProcessed = "processed"
	outcomeFailed    = "failed"
)

// Collector collects and exposes metrics
type Collector struct {
	registry      *prometheus.Registry
	eventsTotal   *prometheus.CounterVec
	bytesTotal    prometheus.Counter
	inflight      prometheus.Gauge
	duration      prometheus.Histogram
	resizedPixels prometheus.Histogram

	progressTracker *progress.Tracker
}

// New creates a new metrics collector with its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imgresize_events_total",
				Help: "Total number of upload events handled",
			},
			[]string{"outcome"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "imgresize_source_bytes_total",
				Help: "Total bytes of source images resized",
			},
		),
		inflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "imgresize_inflight_events",
				Help: "Number of events currently being handled",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imgresize_event_duration_seconds",
				Help:    "Time taken to handle an eligible event",
				Buckets: prometheus.DefBuckets,
			},
		),
		resizedPixels: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "imgresize_output_pixels",
				Help:    "Pixel count of resized images when the engine reports it",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		progressTracker: progress.NewTracker(),
	}

	c.registry.MustRegister(
		c.eventsTotal,
		c.bytesTotal,
		c.inflight,
		c.duration,
		c.resizedPixels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// IncProcessedWithBytes counts a resized image and its source size, and updates progress
func (c *Collector) IncProcessedWithBytes(bytes int64) {
	c.eventsTotal.WithLabelValues(outcomeProcessed).Inc()
	if bytes > 0 {
		c.bytesTotal.Add(float64(bytes))
	} else {
		bytes = 0
	}
	c.progressTracker.AddProcessed(bytes)
}

// IncSkipped counts an ineligible event under its skip outcome
func (c *Collector) IncSkipped(outcome string) {
	c.eventsTotal.WithLabelValues(outcome).Inc()
	c.progressTracker.AddSkipped()
}

// IncFailed counts a failed event
func (c *Collector) IncFailed() {
	c.eventsTotal.WithLabelValues(outcomeFailed).Inc()
	c.progressTracker.AddFailed()
}

// GetProgressTracker returns the progress tracker fed by the counters
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}

// Begin marks an event as in flight and returns the matching completion func
func (c *Collector) Begin() func() {
	c.inflight.Inc()
	return c.inflight.Dec
}

// ObserveDuration observes handling duration
func (c *Collector) ObserveDuration(duration time.Duration) {
	c.duration.Observe(duration.Seconds())
}

// ObserveOutputSize records the dimensions of a resized image
func (c *Collector) ObserveOutputSize(width, height int) {
	if width > 0 && height > 0 {
		c.resizedPixels.Observe(float64(width * height))
	}
}

// Handler serves the collector's registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until ctx is cancelled
func (c *Collector) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
