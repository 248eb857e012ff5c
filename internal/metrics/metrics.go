package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Capture metrics
	sessionsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxcode_capture_sessions_total",
		Help: "Capture sessions started, by mode",
	}, []string{"mode"})

	engineState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxcode_engine_state",
		Help: "Capture engine state (0=idle, 1=recording, 2=processing, 3=disposed)",
	})

	chunksEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxcode_accumulator_evicted_chunks_total",
		Help: "Audio chunks dropped by the accumulator ceiling",
	})

	providerFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxcode_microphone_open_failures_total",
		Help: "Microphone provider open failures, by provider",
	}, []string{"provider"})

	bufferLevel = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxcode_buffer_rms",
		Help:    "RMS level of processed buffers (0..1)",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
	})

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxcode_transcription_requests_total",
		Help: "Transcription requests, by status",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voxcode_transcription_latency_seconds",
		Help:    "Transcription request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	pipelineOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxcode_pipeline_outcomes_total",
		Help: "Pipeline run outcomes",
	}, []string{"outcome"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxcode_errors_total",
		Help: "Errors reported to listeners, by kind",
	}, []string{"kind"})

	// Earcon cache metrics
	earconLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voxcode_earcon_cache_lookups_total",
		Help: "Earcon cache lookups, by result",
	}, []string{"result"})

	earconBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voxcode_earcon_cache_bytes",
		Help: "Bytes of PCM held by the earcon cache",
	})

	earconEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voxcode_earcon_cache_evictions_total",
		Help: "Earcon cache entries evicted",
	})
)

// RecordSessionStart counts a started capture session
func RecordSessionStart(mode string) {
	sessionsStarted.WithLabelValues(mode).Inc()
}

// SetEngineState records the numeric engine state
func SetEngineState(state int) {
	engineState.Set(float64(state))
}

// RecordEviction counts chunks dropped by the accumulator
func RecordEviction(chunks int) {
	chunksEvicted.Add(float64(chunks))
}

// RecordProviderFailure counts a failed microphone open
func RecordProviderFailure(provider string) {
	providerFallbacks.WithLabelValues(provider).Inc()
}

// ObserveBufferLevel records the RMS of a processed buffer
func ObserveBufferLevel(rms float64) {
	bufferLevel.Observe(rms)
}

// RecordTranscription records a transcription request status and latency
func RecordTranscription(status string, latency time.Duration) {
	transcriptionRequests.WithLabelValues(status).Inc()
	if latency > 0 {
		transcriptionLatency.Observe(latency.Seconds())
	}
}

// RecordOutcome counts a pipeline outcome
func RecordOutcome(outcome string) {
	pipelineOutcomes.WithLabelValues(outcome).Inc()
}

// RecordError counts an error reported to listeners
func RecordError(kind string) {
	errorsTotal.WithLabelValues(kind).Inc()
}

// RecordEarconLookup counts an earcon cache hit or miss
func RecordEarconLookup(hit bool) {
	if hit {
		earconLookups.WithLabelValues("hit").Inc()
		return
	}
	earconLookups.WithLabelValues("miss").Inc()
}

// SetEarconBytes records the earcon cache size
func SetEarconBytes(n int) {
	earconBytes.Set(float64(n))
}

// RecordEarconEvictions counts evicted earcon entries
func RecordEarconEvictions(n int) {
	earconEvictions.Add(float64(n))
}

// Handler serves the default registry in the prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}
