package ports

import (
	"context"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// Strategy is a traversal applied to a task tree.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Traverse walks the tree once and returns its aggregate state.
	// Node level failures are reported through the returned state; a
	// non-nil error is a fault that stops the tick loop.
	Traverse(ctx context.Context, tree *domain.TaskTree) (domain.RunState, error)

	// Preempt asks the traversal in progress, or the next one, to stop at
	// the next node visit. Calling it twice has the same effect as once.
	Preempt()

	// SetVerbose toggles diagnostic detail.
	SetVerbose(verbose bool)
}

// Snapshotter is a strategy that produces a read-only progress snapshot.
type Snapshotter interface {
	Strategy

	// Capture describes tree and returns that description. Concurrent
	// captures of different trees do not interfere.
	Capture(ctx context.Context, tree *domain.TaskTree) (domain.Snapshot, error)

	// Snapshot returns the description produced by the last complete pass.
	Snapshot() domain.Snapshot
}

// RootProvider exposes the tree a strategy ended up with.
type RootProvider interface {
	ExecutionRoot() *domain.Node
}

// ProgressFunc receives the snapshot of a task after each tick.
// It must not block.
type ProgressFunc func(taskID int, snapshot domain.Snapshot)

// TickFunc is called once per tick cycle.
type TickFunc func()
