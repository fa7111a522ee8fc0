package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, which keeps domain tests free of registry setup.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Arbitration metrics
	EventsTotal      *prometheus.CounterVec
	DecisionsTotal   *prometheus.CounterVec
	IntentsTotal     *prometheus.CounterVec
	QuotaRemaining   prometheus.Gauge
	TimerFires       *prometheus.CounterVec
	GuardExpiries    prometheus.Counter
	CommandsSent     *prometheus.CounterVec
	CommandsDropped  prometheus.Counter
	InterventionsCut prometheus.Counter

	// Persistence metrics
	StoreOps      *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
	StoreFailures prometheus.Counter

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON state endpoint.
type Snapshot struct {
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	Events            int64   `json:"events"`
	Launches          int64   `json:"launches"`
	StoreFailures     int64   `json:"storeFailures"`
	ActiveConnections int64   `json:"activeConnections"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a metrics collector registered on reg. Passing a
// fresh prometheus.NewRegistry() keeps parallel tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{startTime: time.Now()}

	// HTTP metrics
	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focusgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "path"},
	)

	// Arbitration metrics
	m.EventsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_foreground_events_total",
			Help: "Foreground events by classification",
		},
		[]string{"class"},
	)
	m.DecisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_decisions_total",
			Help: "Entry decisions by outcome and reason",
		},
		[]string{"decision", "reason"},
	)
	m.IntentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_intents_total",
			Help: "User intents by name and outcome",
		},
		[]string{"intent", "outcome"},
	)
	m.QuotaRemaining = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusgate_quota_remaining",
			Help: "Remaining global quick task quota",
		},
	)
	m.TimerFires = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_timer_fires_total",
			Help: "Quick task timer expiries by outcome",
		},
		[]string{"outcome"},
	)
	m.GuardExpiries = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "focusgate_surface_guard_expiries_total",
			Help: "Surface liveness guards cleared because they aged out",
		},
	)
	m.CommandsSent = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_commands_total",
			Help: "Commands dispatched to the surface",
		},
		[]string{"type"},
	)
	m.CommandsDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "focusgate_commands_dropped_total",
			Help: "Commands dropped because no surface could take them",
		},
	)
	m.InterventionsCut = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "focusgate_interventions_cancelled_total",
			Help: "Incomplete interventions cancelled by switching away",
		},
	)

	// Persistence metrics
	m.StoreOps = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_store_operations_total",
			Help: "Store operations by kind and status",
		},
		[]string{"op", "status"},
	)
	m.StoreDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focusgate_store_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"op"},
	)
	m.StoreFailures = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "focusgate_store_write_failures_total",
			Help: "Mutations whose persistence failed after retry",
		},
	)

	// WebSocket metrics
	m.WSConnections = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "focusgate_ws_connections",
			Help: "Number of connected surfaces",
		},
	)
	m.WSMessages = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focusgate_ws_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction", "type"},
	)

	// System metrics
	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "focusgate_uptime_seconds",
			Help: "Authority uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordEvent records a foreground event by class (monitored,
// unmonitored, infrastructure, duplicate).
func (m *Metrics) RecordEvent(class string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(class).Inc()
	m.mu.Lock()
	m.snapshot.Events++
	m.mu.Unlock()
}

// RecordDecision records the outcome of an entry decision
func (m *Metrics) RecordDecision(decision, reason string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(decision, reason).Inc()
	if decision == "LAUNCH" {
		m.mu.Lock()
		m.snapshot.Launches++
		m.mu.Unlock()
	}
}

// RecordIntent records a user intent
func (m *Metrics) RecordIntent(intent, outcome string) {
	if m == nil {
		return
	}
	m.IntentsTotal.WithLabelValues(intent, outcome).Inc()
}

// SetQuotaRemaining sets the quota gauge
func (m *Metrics) SetQuotaRemaining(n int) {
	if m == nil {
		return
	}
	m.QuotaRemaining.Set(float64(n))
}

// RecordTimerFire records a timer expiry; outcome is "expired" or "stale".
func (m *Metrics) RecordTimerFire(outcome string) {
	if m == nil {
		return
	}
	m.TimerFires.WithLabelValues(outcome).Inc()
}

// IncGuardExpiries counts a guard cleared by age
func (m *Metrics) IncGuardExpiries() {
	if m == nil {
		return
	}
	m.GuardExpiries.Inc()
}

// RecordCommand records a dispatched command
func (m *Metrics) RecordCommand(cmdType string) {
	if m == nil {
		return
	}
	m.CommandsSent.WithLabelValues(cmdType).Inc()
}

// IncCommandsDropped counts commands no surface received
func (m *Metrics) IncCommandsDropped() {
	if m == nil {
		return
	}
	m.CommandsDropped.Inc()
}

// IncInterventionsCancelled counts interventions cut short
func (m *Metrics) IncInterventionsCancelled() {
	if m == nil {
		return
	}
	m.InterventionsCut.Inc()
}

// RecordStoreOp records a store operation
func (m *Metrics) RecordStoreOp(op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.StoreOps.WithLabelValues(op, status).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncStoreFailures counts a write that failed after retry
func (m *Metrics) IncStoreFailures() {
	if m == nil {
		return
	}
	m.StoreFailures.Inc()
	m.mu.Lock()
	m.snapshot.StoreFailures++
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current tracked values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
