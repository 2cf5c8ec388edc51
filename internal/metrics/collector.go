package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/models"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/protocol"
	"github.com/Harsha-pandey9/Ai-Based-Tutoring/internal/relay"
)

type PrometheusCollector struct {
	// Gauges
	onlineUsers    prometheus.Gauge
	waitingUsers   prometheus.Gauge
	activeSessions prometheus.Gauge

	// Counters
	matchesTotal       prometheus.Counter
	invalidEventsTotal prometheus.Counter
	sessionsEnded      *prometheus.CounterVec
	roleSwaps          *prometheus.CounterVec
	relayedEvents      *prometheus.CounterVec
	executions         *prometheus.CounterVec

	// Histograms
	sessionDuration prometheus.Histogram
}

// NewPrometheusCollector registers every metric on reg. Pass
// prometheus.DefaultRegisterer to expose them through promhttp.Handler().
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		onlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alphax_online_users",
			Help: "Number of open participant connections",
		}),

		waitingUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alphax_waiting_users",
			Help: "Number of participants in the matching queue",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alphax_active_sessions",
			Help: "Number of active interview sessions",
		}),

		matchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphax_matches_total",
			Help: "Total number of pairs formed by the matching queue",
		}),

		invalidEventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "alphax_invalid_events_total",
			Help: "Total number of malformed or invalid inbound events",
		}),

		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphax_sessions_ended_total",
			Help: "Total number of ended sessions by reason",
		}, []string{"reason"}),

		roleSwaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphax_role_swaps_total",
			Help: "Total number of role swaps by trigger",
		}, []string{"reason"}),

		relayedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphax_relayed_events_total",
			Help: "Total number of relay attempts by event type and outcome",
		}, []string{"type", "outcome"}),

		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "alphax_code_executions_total",
			Help: "Total number of code execution requests by language and result",
		}, []string{"language", "success"}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "alphax_session_duration_seconds",
			Help:    "Duration of interview sessions",
			Buckets: []float64{30, 60, 300, 600, 1200, 1800, 3600, 7200},
		}),
	}
}

func (p *PrometheusCollector) SetOnlineUsers(n int) {
	p.onlineUsers.Set(float64(n))
}

func (p *PrometheusCollector) SetWaitingUsers(n int) {
	p.waitingUsers.Set(float64(n))
}

func (p *PrometheusCollector) RecordMatch() {
	p.matchesTotal.Inc()
	p.activeSessions.Inc()
}

func (p *PrometheusCollector) RecordSessionEnded(rec models.SessionRecord) {
	p.activeSessions.Dec()
	p.sessionsEnded.WithLabelValues(string(rec.EndReason)).Inc()
	if !rec.EndedAt.IsZero() && !rec.StartedAt.IsZero() {
		p.sessionDuration.Observe(rec.EndedAt.Sub(rec.StartedAt).Seconds())
	}
}

func (p *PrometheusCollector) RecordRoleSwap(reason protocol.SwapReason) {
	p.roleSwaps.WithLabelValues(string(reason)).Inc()
}

func (p *PrometheusCollector) RecordInvalidEvent() {
	p.invalidEventsTotal.Inc()
}

// ObserveRelay implements relay.Observer.
func (p *PrometheusCollector) ObserveRelay(t protocol.Type, outcome relay.Outcome) {
	p.relayedEvents.WithLabelValues(string(t), string(outcome)).Inc()
}

func (p *PrometheusCollector) RecordExecution(language string, success bool) {
	result := "false"
	if success {
		result = "true"
	}
	p.executions.WithLabelValues(language, result).Inc()
}
