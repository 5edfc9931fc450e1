package manager

import (
	"log/slog"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/observability"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Strategies and the scheduler share it.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithWorldModel sets the store behaviors act on. The default is an
// in-memory world model.
func WithWorldModel(wm ports.WorldModel) Option {
	return func(m *Manager) {
		m.wm = wm
	}
}

// WithPublisher forwards every progress event to p.
func WithPublisher(p ports.ProgressPublisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithLocker guards agent registration across managers sharing a world model.
func WithLocker(l ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = l
	}
}

// WithMetrics records scheduler and command metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTickRate sets the scheduler tick rate in Hz.
func WithTickRate(hz float64) Option {
	return func(m *Manager) {
		m.tickRate = hz
	}
}

// WithPreemptTimeout sets the grace period of a preemption.
func WithPreemptTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.preemptTimeout = d
	}
}

// WithVerbose makes strategies log node transitions.
func WithVerbose(verbose bool) Option {
	return func(m *Manager) {
		m.verbose = verbose
	}
}

// WithLibraryFiles sets the skill library files read by ReloadSkills.
func WithLibraryFiles(paths ...string) Option {
	return func(m *Manager) {
		m.libraryFiles = append([]string(nil), paths...)
	}
}

// WithAdvertised restricts the skills offered to clients. It is applied
// again after every reload.
func WithAdvertised(types ...string) Option {
	return func(m *Manager) {
		m.advertised = append([]string(nil), types...)
	}
}

// WithTickObserver is called once per tick cycle.
func WithTickObserver(fn ports.TickFunc) Option {
	return func(m *Manager) {
		m.onTick = fn
	}
}
