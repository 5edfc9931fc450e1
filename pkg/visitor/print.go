package visitor

import (
	"context"
	"errors"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// Print describes a tree without executing it. In verbose mode the
// descriptions carry the node params.
type Print struct {
	base

	mu       sync.Mutex
	snapshot domain.Snapshot
}

// NewPrint returns a print strategy.
func NewPrint(opts ...Option) *Print {
	return &Print{base: newBase(NamePrint, opts)}
}

// Traverse refreshes the snapshot and returns the root state. A preempted
// pass returns StatePreempted and keeps the previous snapshot.
func (p *Print) Traverse(ctx context.Context, tree *domain.TaskTree) (domain.RunState, error) {
	if _, err := p.Capture(ctx, tree); err != nil {
		if errors.Is(err, errInterrupted) {
			return domain.StatePreempted, nil
		}
		return domain.StateError, err
	}
	return tree.Root.State, nil
}

// Capture describes tree and returns that description. It also becomes the
// latest snapshot. The result belongs to the caller, so concurrent captures
// of different trees never see each other's output.
func (p *Print) Capture(ctx context.Context, tree *domain.TaskTree) (domain.Snapshot, error) {
	defer p.done()
	if err := checkTree(tree); err != nil {
		return nil, err
	}

	snap := make(domain.Snapshot, 0, 8)
	verbose := p.isVerbose()
	preempted := false
	tree.Root.Walk(func(n *domain.Node) bool {
		if preempted || p.preemptRequested(ctx) {
			preempted = true
			return false
		}
		snap = append(snap, describe(n, verbose))
		return true
	})
	if preempted {
		return nil, errInterrupted
	}

	p.mu.Lock()
	p.snapshot = snap
	p.mu.Unlock()
	return append(domain.Snapshot(nil), snap...), nil
}

// Snapshot returns the descriptions produced by the last complete pass.
func (p *Print) Snapshot() domain.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append(domain.Snapshot(nil), p.snapshot...)
}

// Describe builds the snapshot of a subtree in pre-order.
func Describe(root *domain.Node, withParams bool) domain.Snapshot {
	var snap domain.Snapshot
	root.Walk(func(n *domain.Node) bool {
		snap = append(snap, describe(n, withParams))
		return true
	})
	return snap
}

func describe(n *domain.Node, withParams bool) domain.NodeProgress {
	d := domain.Description{
		Type:      n.Type,
		Label:     n.Label,
		State:     n.State,
		Processor: n.Composition.String(),
		ParentID:  -1,
		Code:      n.Progress.Code,
		Message:   n.Progress.Message,
		Period:    n.Progress.Period,
		Time:      n.Progress.Time,
	}
	if parent := n.Parent(); parent != nil {
		d.ParentID = parent.ID
		d.ParentLabel = parent.Label
	}
	if withParams {
		d.Params = n.Params.Clone()
	}
	return domain.NodeProgress{ID: n.ID, Description: d}
}
