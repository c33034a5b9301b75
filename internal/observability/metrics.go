package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	publishCyclesTotal    *prometheus.CounterVec
	publishCycleSeconds   prometheus.Histogram
	publishGroupsTotal    *prometheus.CounterVec
	marksPublishedTotal   prometheus.Counter
	markUpdateFailures    *prometheus.CounterVec
	pushSendsTotal        *prometheus.CounterVec
	markActionsTotal      *prometheus.CounterVec
	publishSchedulesTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		publishCyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_publish_cycles_total",
			Help: "Publication cycles by outcome.",
		}, []string{"outcome"})

		publishCycleSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "results_publish_cycle_seconds",
			Help:    "Duration of publication cycles.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		})

		publishGroupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_publish_groups_total",
			Help: "Groups evaluated by the publication engine, by result.",
		}, []string{"result"})

		marksPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "results_marks_published_total",
			Help: "Marks transitioned to published.",
		})

		markUpdateFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_mark_update_failures_total",
			Help: "Per-record failures inside batch mark updates.",
		}, []string{"operation"})

		pushSendsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_push_sends_total",
			Help: "Push notification attempts by type and outcome.",
		}, []string{"type", "outcome"})

		markActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_mark_actions_total",
			Help: "Manual approve/reject actions by action.",
		}, []string{"action"})

		publishSchedulesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "results_publish_schedules_total",
			Help: "Schedule gate invocations by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			publishCyclesTotal,
			publishCycleSeconds,
			publishGroupsTotal,
			marksPublishedTotal,
			markUpdateFailures,
			pushSendsTotal,
			markActionsTotal,
			publishSchedulesTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// PublishCycles counts publication cycles by outcome (completed, skipped, failed).
func PublishCycles() *prometheus.CounterVec {
	RegisterMetrics()
	return publishCyclesTotal
}

// PublishCycleDuration observes how long a publication cycle took.
func PublishCycleDuration() prometheus.Histogram {
	RegisterMetrics()
	return publishCycleSeconds
}

// PublishGroups counts evaluated groups by result.
func PublishGroups() *prometheus.CounterVec {
	RegisterMetrics()
	return publishGroupsTotal
}

// MarksPublished counts marks moved to published.
func MarksPublished() prometheus.Counter {
	RegisterMetrics()
	return marksPublishedTotal
}

// MarkUpdateFailures counts failed records within batch updates.
func MarkUpdateFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return markUpdateFailures
}

// PushSends counts push attempts.
func PushSends() *prometheus.CounterVec {
	RegisterMetrics()
	return pushSendsTotal
}

// MarkActions counts manual overrides.
func MarkActions() *prometheus.CounterVec {
	RegisterMetrics()
	return markActionsTotal
}

// PublishSchedules counts schedule gate calls.
func PublishSchedules() *prometheus.CounterVec {
	RegisterMetrics()
	return publishSchedulesTotal
}
