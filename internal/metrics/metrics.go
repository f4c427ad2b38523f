// Package metrics exposes daemon counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the daemon updates. A nil *Metrics is
// valid and records nothing, so the session pipeline can run without a
// registry in tests.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsFinalized prometheus.Counter
	SessionsDiscarded prometheus.Counter
	SessionSeconds    prometheus.Histogram

	ChunksEmitted     prometheus.Counter
	ChunkSeconds      prometheus.Histogram
	QueueDepth        prometheus.Gauge
	Transcriptions    prometheus.Counter
	TranscribeErrors  prometheus.Counter
	TranscribeSeconds prometheus.Histogram

	FragmentsAccepted prometheus.Counter
	FragmentsFiltered prometheus.Counter
	BatchesDropped    prometheus.Counter
	HooksSent         prometheus.Counter
	HooksDropped      prometheus.Counter
}

// New registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_sessions_started_total",
			Help: "Recording sessions started",
		}),
		SessionsFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_sessions_finalized_total",
			Help: "Sessions that produced a final transcript",
		}),
		SessionsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_sessions_discarded_total",
			Help: "Sessions discarded for being shorter than the minimum",
		}),
		SessionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "careless_whisper_session_duration_seconds",
			Help:    "Captured audio per session",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ChunksEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_chunks_emitted_total",
			Help: "Chunks cut by the voice activity segmenter",
		}),
		ChunkSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "careless_whisper_chunk_duration_seconds",
			Help:    "Audio length of emitted chunks",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "careless_whisper_chunk_queue_depth",
			Help: "Chunks waiting for transcription",
		}),
		Transcriptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_transcriptions_total",
			Help: "Successful engine calls",
		}),
		TranscribeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_transcription_errors_total",
			Help: "Failed engine calls",
		}),
		TranscribeSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "careless_whisper_transcription_duration_seconds",
			Help:    "Wall time per engine call",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		FragmentsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_fragments_accepted_total",
			Help: "Transcript fragments appended to a session",
		}),
		FragmentsFiltered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_fragments_filtered_total",
			Help: "Fragments rejected as hallucinations",
		}),
		BatchesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_batches_dropped_total",
			Help: "Capture batches dropped on conversion failure",
		}),
		HooksSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_hooks_sent_total",
			Help: "Hook invocations completed",
		}),
		HooksDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "careless_whisper_hooks_dropped_total",
			Help: "Hook jobs dropped because the queue was full",
		}),
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) RecordSessionFinalized(captured time.Duration) {
	if m == nil {
		return
	}
	m.SessionsFinalized.Inc()
	m.SessionSeconds.Observe(captured.Seconds())
}

func (m *Metrics) RecordSessionDiscarded() {
	if m == nil {
		return
	}
	m.SessionsDiscarded.Inc()
}

func (m *Metrics) RecordChunkEmitted(length time.Duration, queueDepth int) {
	if m == nil {
		return
	}
	m.ChunksEmitted.Inc()
	m.ChunkSeconds.Observe(length.Seconds())
	m.QueueDepth.Set(float64(queueDepth))
}

func (m *Metrics) RecordChunkDequeued(queueDepth int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(queueDepth))
}

func (m *Metrics) RecordTranscription(took time.Duration) {
	if m == nil {
		return
	}
	m.Transcriptions.Inc()
	m.TranscribeSeconds.Observe(took.Seconds())
}

func (m *Metrics) RecordTranscriptionError() {
	if m == nil {
		return
	}
	m.TranscribeErrors.Inc()
}

func (m *Metrics) RecordFragmentAccepted() {
	if m == nil {
		return
	}
	m.FragmentsAccepted.Inc()
}

func (m *Metrics) RecordFragmentFiltered() {
	if m == nil {
		return
	}
	m.FragmentsFiltered.Inc()
}

func (m *Metrics) RecordBatchDropped() {
	if m == nil {
		return
	}
	m.BatchesDropped.Inc()
}

func (m *Metrics) RecordHookSent() {
	if m == nil {
		return
	}
	m.HooksSent.Inc()
}

func (m *Metrics) RecordHookDropped() {
	if m == nil {
		return
	}
	m.HooksDropped.Inc()
}
