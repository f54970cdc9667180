package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	sessionsActive prometheus.Gauge
	sessionsTotal  prometheus.Counter
	eventsTotal    *prometheus.CounterVec
	responsesTotal *prometheus.CounterVec
	audioSeconds   prometheus.Counter
	stageDuration  *prometheus.HistogramVec
}

var globalMetrics *Metrics

// NewMetrics creates and registers Prometheus metrics.
func NewMetrics() *Metrics {
	if globalMetrics != nil {
		return globalMetrics
	}

	globalMetrics = &Metrics{
		sessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "voicegw_sessions_active",
				Help: "Number of realtime sessions currently connected",
			},
		),
		sessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "voicegw_sessions_total",
				Help: "Total number of realtime sessions accepted",
			},
		),
		eventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicegw_events_total",
				Help: "Total number of protocol events by type and direction",
			},
			[]string{"type", "direction"},
		),
		responsesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "voicegw_responses_total",
				Help: "Total number of model responses by outcome",
			},
			[]string{"outcome"},
		),
		audioSeconds: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "voicegw_input_audio_seconds_total",
				Help: "Seconds of caller audio appended to input buffers",
			},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "voicegw_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"stage"},
		),
	}

	return globalMetrics
}

// SessionOpened records an accepted session.
func (m *Metrics) SessionOpened() {
	m.sessionsTotal.Inc()
	m.sessionsActive.Inc()
}

// SessionClosed records a finished session.
func (m *Metrics) SessionClosed() {
	m.sessionsActive.Dec()
}

// RecordEvent counts one protocol event.
func (m *Metrics) RecordEvent(eventType, direction string) {
	m.eventsTotal.WithLabelValues(eventType, direction).Inc()
}

// RecordResponse counts one response by outcome (completed, cancelled, failed).
func (m *Metrics) RecordResponse(outcome string) {
	m.responsesTotal.WithLabelValues(outcome).Inc()
}

// RecordInputAudio accumulates appended caller audio.
func (m *Metrics) RecordInputAudio(seconds float64) {
	m.audioSeconds.Add(seconds)
}

// RecordStage records the duration of one pipeline stage (stt, llm, tts).
func (m *Metrics) RecordStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
