package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentdesk"

type moduleMetrics struct {
	agentLoadTotal *prometheus.CounterVec
	stackDepth     prometheus.Gauge

	chatTotal    *prometheus.CounterVec
	chatDuration *prometheus.HistogramVec

	delegationTotal *prometheus.CounterVec
	commandTotal    *prometheus.CounterVec
	remoteQueries   prometheus.Counter

	streamEnvelopes   prometheus.Counter
	streamActivities  *prometheus.CounterVec
	streamConnDropped prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			agentLoadTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "agent_load_total",
					Help:      "Agent load attempts by source and status.",
				},
				[]string{"source", "status"},
			),
			stackDepth: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Name:      "agent_stack_depth",
					Help:      "Current depth of the active agent stack.",
				},
			),
			chatTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "chat_total",
					Help:      "Chat dispatches by agent and outcome.",
				},
				[]string{"agent", "outcome"},
			),
			chatDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "chat_duration_seconds",
					Help:      "Chat dispatch duration in seconds by agent.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
			delegationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "orchestrator_delegation_total",
					Help:      "Orchestrator delegation attempts by outcome.",
				},
				[]string{"outcome"},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "command_total",
					Help:      "Executed commands by status.",
				},
				[]string{"status"},
			),
			remoteQueries: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "remote_queries_total",
					Help:      "Queries received from the remote query channel.",
				},
			),
			streamEnvelopes: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "stream_envelopes_total",
					Help:      "Activity envelopes parsed by streaming receivers.",
				},
			),
			streamActivities: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "stream_activities_total",
					Help:      "Activities seen by streaming receivers by disposition.",
				},
				[]string{"disposition"},
			),
			streamConnDropped: prometheus.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "stream_connections_dropped_total",
					Help:      "Streaming connections that ended.",
				},
			),
		}

		prometheus.MustRegister(
			m.agentLoadTotal,
			m.stackDepth,
			m.chatTotal,
			m.chatDuration,
			m.delegationTotal,
			m.commandTotal,
			m.remoteQueries,
			m.streamEnvelopes,
			m.streamActivities,
			m.streamConnDropped,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordAgentLoad(source string, success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().agentLoadTotal.WithLabelValues(source, status).Inc()
}

func SetStackDepth(depth int) {
	getMetrics().stackDepth.Set(float64(depth))
}

// RecordChat records one chat dispatch. outcome is served, self_check_failed, cancelled or error.
func RecordChat(agentName, outcome string, duration time.Duration) {
	m := getMetrics()
	m.chatTotal.WithLabelValues(agentName, outcome).Inc()
	m.chatDuration.WithLabelValues(agentName).Observe(duration.Seconds())
}

// RecordDelegation records an orchestrator gate outcome: delegated, kept, declined, cancelled or failed.
func RecordDelegation(outcome string) {
	getMetrics().delegationTotal.WithLabelValues(outcome).Inc()
}

func RecordCommand(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().commandTotal.WithLabelValues(status).Inc()
}

func RecordRemoteQuery() {
	getMetrics().remoteQueries.Inc()
}

func RecordStreamEnvelope(enqueued, dropped int) {
	m := getMetrics()
	m.streamEnvelopes.Inc()
	m.streamActivities.WithLabelValues("enqueued").Add(float64(enqueued))
	m.streamActivities.WithLabelValues("self_dropped").Add(float64(dropped))
}

func RecordStreamDropped() {
	getMetrics().streamConnDropped.Inc()
}
