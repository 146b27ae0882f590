package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the transcription pipeline
type Metrics struct {
	registry *prometheus.Registry

	// Capture
	FramesCaptured prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Accumulator
	Drains         prometheus.Counter
	SamplesDropped prometheus.Counter

	// Transcription
	ChunksTranscribed     prometheus.Counter
	EngineFailures        prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Publishing
	EventsPublished prometheus.Counter
	PublishFailures prometheus.Counter

	// Sessions
	SessionsStarted prometheus.Counter
	DeviceErrors    prometheus.Counter
	SessionActive   prometheus.Gauge
}

// New creates the metrics on a private registry that also carries the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_frames_captured_total",
			Help: "Total number of audio frames received from the capture device",
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "livewhisper_frame_queue_depth",
			Help: "Frames waiting between capture and the worker",
		}),

		Drains: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_drains_total",
			Help: "Total number of accumulator drain cycles",
		}),
		SamplesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_remainder_samples_dropped_total",
			Help: "Samples left over after splitting a drained buffer into equal chunks",
		}),

		ChunksTranscribed: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_chunks_transcribed_total",
			Help: "Total number of chunks handed to the speech engine",
		}),
		EngineFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_engine_failures_total",
			Help: "Chunks whose transcription failed",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "livewhisper_transcription_duration_seconds",
			Help:    "Time spent in the speech engine per chunk",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_events_published_total",
			Help: "Transcription events handed to the emitter",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_publish_failures_total",
			Help: "Transcription events the emitter reported as failed",
		}),

		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_sessions_started_total",
			Help: "Total number of transcription sessions started",
		}),
		DeviceErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "livewhisper_device_errors_total",
			Help: "Session starts that failed to open the capture device",
		}),
		SessionActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "livewhisper_session_active",
			Help: "1 while a transcription session is running",
		}),
	}
}

// RegisterGaugeFunc exposes a value computed on scrape.
func (m *Metrics) RegisterGaugeFunc(name, help string, fn func() float64) {
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
