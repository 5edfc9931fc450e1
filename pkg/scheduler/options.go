package scheduler

import (
	"log/slog"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/observability"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithRate sets the tick rate in Hz. Non-positive values are ignored.
func WithRate(hz float64) Option {
	return func(s *Scheduler) {
		if hz > 0 {
			s.period = time.Duration(float64(time.Second) / hz)
		}
	}
}

// WithPreemptTimeout sets the grace period given to a cooperative preemption.
func WithPreemptTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.preemptTimeout = d
		}
	}
}

// WithPrinter sets the strategy producing progress snapshots.
func WithPrinter(p ports.Snapshotter) Option {
	return func(s *Scheduler) {
		s.printer = p
	}
}

// WithMetrics records loop metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithProgressObserver sets the progress callback.
func WithProgressObserver(fn ports.ProgressFunc) Option {
	return func(s *Scheduler) {
		s.onProgress = fn
	}
}

// WithTickObserver sets the tick callback.
func WithTickObserver(fn ports.TickFunc) Option {
	return func(s *Scheduler) {
		s.onTick = fn
	}
}
