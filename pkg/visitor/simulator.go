package visitor

import (
	"context"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/worldmodel"
)

// ReversibleSimulator ticks a tree like Executor, but every effect goes to
// an overlay of the backend that the simulator never commits.
type ReversibleSimulator struct {
	base

	overlay *worldmodel.Overlay

	mu   sync.Mutex
	root *domain.Node
}

// NewReversibleSimulator returns a simulator reading through backend.
func NewReversibleSimulator(backend domain.Backend, opts ...Option) *ReversibleSimulator {
	return &ReversibleSimulator{
		base:    newBase(NameSimulator, opts),
		overlay: worldmodel.NewOverlay(backend),
	}
}

// Traverse ticks the tree once and records the branch taken so far.
func (s *ReversibleSimulator) Traverse(ctx context.Context, tree *domain.TaskTree) (domain.RunState, error) {
	defer s.done()
	if err := checkTree(tree); err != nil {
		return domain.StateError, err
	}

	st := newPass(ctx, &s.base, tree, s.overlay, true).run()

	s.mu.Lock()
	s.root = prune(tree.Root.Clone())
	s.mu.Unlock()
	return st, nil
}

// ExecutionRoot returns the tree restricted to the nodes that were
// actually visited, each annotated with its outcome. Nil before the first pass.
func (s *ReversibleSimulator) ExecutionRoot() *domain.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.root == nil {
		return nil
	}
	return s.root.Clone()
}

// Effects returns the simulated effects in order.
func (s *ReversibleSimulator) Effects() []worldmodel.Effect {
	return s.overlay.Effects()
}

// Undo reverts the latest simulated effect.
func (s *ReversibleSimulator) Undo() bool {
	return s.overlay.Undo()
}

// Reset discards the simulated effects and the execution root.
func (s *ReversibleSimulator) Reset() {
	s.overlay.Rollback()
	s.mu.Lock()
	s.root = nil
	s.mu.Unlock()
}

// prune drops the children that were never started.
func prune(n *domain.Node) *domain.Node {
	kept := make([]*domain.Node, 0, len(n.Children))
	for _, c := range n.Children {
		if c.State == domain.StateIdle {
			continue
		}
		kept = append(kept, prune(c))
	}
	n.SetChildren(kept)
	return n
}
