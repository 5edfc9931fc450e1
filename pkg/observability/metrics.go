package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "skiros"

// Metrics holds the Prometheus collectors of the skill manager.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Ticks           prometheus.Counter
	TickDuration    prometheus.Histogram
	Traversal       *prometheus.HistogramVec
	ActiveTasks     prometheus.Gauge
	TaskOutcomes    *prometheus.CounterVec
	PreemptTimeouts prometheus.Counter
	Commands        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Number of tick cycles completed by the scheduler",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent ticking every task in one cycle",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .02, .04, .08, .16},
		}),
		Traversal: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "traversal_duration_seconds",
			Help:      "Duration of one traversal of one task",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		ActiveTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_tasks",
			Help:      "Number of tasks registered with the scheduler",
		}),
		TaskOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_outcomes_total",
			Help:      "Tasks removed from the scheduler by final state",
		}, []string{"state"}),
		PreemptTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preempt_timeouts_total",
			Help:      "Preemptions that were not honored within the grace period",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands received by action and result",
		}, []string{"action", "ok"}),
	}
	reg.MustRegister(m.Ticks, m.TickDuration, m.Traversal, m.ActiveTasks, m.TaskOutcomes, m.PreemptTimeouts, m.Commands)
	return m
}

// ObserveTick records one completed cycle.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(d.Seconds())
}

// ObserveTraversal records the duration of one traversal.
func (m *Metrics) ObserveTraversal(strategy string, d time.Duration) {
	if m == nil {
		return
	}
	m.Traversal.WithLabelValues(strategy).Observe(d.Seconds())
}

// SetActiveTasks records the size of the task registry.
func (m *Metrics) SetActiveTasks(n int) {
	if m == nil {
		return
	}
	m.ActiveTasks.Set(float64(n))
}

// TaskFinished counts a task removed in the given state.
func (m *Metrics) TaskFinished(state string) {
	if m == nil {
		return
	}
	m.TaskOutcomes.WithLabelValues(state).Inc()
}

// PreemptTimedOut counts a forced termination.
func (m *Metrics) PreemptTimedOut() {
	if m == nil {
		return
	}
	m.PreemptTimeouts.Inc()
}

// CommandHandled counts a command by action and result.
func (m *Metrics) CommandHandled(action string, ok bool) {
	if m == nil {
		return
	}
	result := "false"
	if ok {
		result = "true"
	}
	m.Commands.WithLabelValues(action, result).Inc()
}
