package visitor

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/worldmodel"
)

// Executor ticks the skill behaviors of a tree against a backend.
type Executor struct {
	base

	backend  domain.Backend
	simulate atomic.Bool

	simMu sync.Mutex
	sim   *worldmodel.Overlay

	tracker *tracker
}

// NewExecutor returns an executor acting on backend.
func NewExecutor(backend domain.Backend, opts ...Option) *Executor {
	x := &Executor{
		base:    newBase(NameExecutor, opts),
		backend: backend,
	}
	x.tracker = newTracker(x.logger)
	return x
}

// Simulate redirects effects to an overlay of the backend that is never
// committed. Turning it off discards the simulated effects.
func (x *Executor) Simulate(on bool) {
	x.simulate.Store(on)
	x.simMu.Lock()
	defer x.simMu.Unlock()
	if on && x.sim == nil {
		x.sim = worldmodel.NewOverlay(x.backend)
	}
	if !on {
		x.sim = nil
	}
}

// Simulated reports whether effects are redirected.
func (x *Executor) Simulated() bool {
	return x.simulate.Load()
}

// SimulatedEffects returns the effects recorded while simulating.
func (x *Executor) SimulatedEffects() []worldmodel.Effect {
	x.simMu.Lock()
	defer x.simMu.Unlock()
	if x.sim == nil {
		return nil
	}
	return x.sim.Effects()
}

// TrackParam records the values of the given params of the node labelled
// label after every pass. With no keys every param of the node is tracked.
func (x *Executor) TrackParam(label string, keys ...string) {
	x.tracker.add(label, keys)
}

// Tracked returns the recorded parameter changes, oldest first.
func (x *Executor) Tracked() []ParamSample {
	return x.tracker.samples()
}

func (x *Executor) currentBackend() (domain.Backend, bool) {
	if !x.simulate.Load() {
		return x.backend, false
	}
	x.simMu.Lock()
	defer x.simMu.Unlock()
	if x.sim == nil {
		x.sim = worldmodel.NewOverlay(x.backend)
	}
	return x.sim, true
}

// Traverse ticks the tree once.
func (x *Executor) Traverse(ctx context.Context, tree *domain.TaskTree) (domain.RunState, error) {
	defer x.done()
	if err := checkTree(tree); err != nil {
		return domain.StateError, err
	}

	backend, simulated := x.currentBackend()
	st := newPass(ctx, &x.base, tree, backend, simulated).run()
	x.tracker.sample(tree)
	return st, nil
}
