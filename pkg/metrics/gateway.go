package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics records outcomes of external payment gateway calls and the
// QR status-polling loop.
type GatewayMetrics struct {
	callDuration *prometheus.HistogramVec
	callFailure  *prometheus.CounterVec
	pollAttempts *prometheus.HistogramVec
	pollOutcome  *prometheus.CounterVec
}

// NewGatewayMetrics registers the gateway metrics on the provided registerer.
func NewGatewayMetrics(reg prometheus.Registerer) *GatewayMetrics {
	if reg == nil {
		return &GatewayMetrics{}
	}
	callDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of external payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"gateway", "operation"})
	callFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_call_failure",
		Help: "Failed external payment gateway calls.",
	}, []string{"gateway", "operation"})
	pollAttempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qr_poll_attempts",
		Help:    "Poll attempts consumed before the QR payment loop terminated.",
		Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
	}, []string{"outcome"})
	pollOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qr_poll_outcome",
		Help: "Terminal outcomes of the QR payment polling loop.",
	}, []string{"outcome"})
	reg.MustRegister(callDuration, callFailure, pollAttempts, pollOutcome)
	return &GatewayMetrics{
		callDuration: callDuration,
		callFailure:  callFailure,
		pollAttempts: pollAttempts,
		pollOutcome:  pollOutcome,
	}
}

// ObserveCall records the duration for one gateway call.
func (g *GatewayMetrics) ObserveCall(gateway, operation string, duration time.Duration) {
	if g == nil || g.callDuration == nil {
		return
	}
	g.callDuration.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncCallFailure increments the failure counter for one gateway call.
func (g *GatewayMetrics) IncCallFailure(gateway, operation string) {
	if g == nil || g.callFailure == nil {
		return
	}
	g.callFailure.WithLabelValues(normalizeLabel(gateway), normalizeLabel(operation)).Inc()
}

// ObservePollLoop records the terminal outcome of one polling loop run.
func (g *GatewayMetrics) ObservePollLoop(outcome string, attempts int) {
	if g == nil {
		return
	}
	label := normalizeLabel(outcome)
	if g.pollAttempts != nil {
		g.pollAttempts.WithLabelValues(label).Observe(float64(attempts))
	}
	if g.pollOutcome != nil {
		g.pollOutcome.WithLabelValues(label).Inc()
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
