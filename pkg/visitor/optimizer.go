package visitor

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// Optimizer rewrites the idle part of a tree to lower its expected cost.
// It never runs a behavior and never modifies the tree it is given: the
// rewritten tree is exposed through ExecutionRoot.
//
// Rewrites:
//   - identical adjacent leaves of a sequential node are merged;
//   - alternatives of a selector are deduplicated and ordered cheapest first.
type Optimizer struct {
	base

	mu     sync.Mutex
	root   *domain.Node
	err    error
	before float64
	after  float64
}

// NewOptimizer returns an optimizer.
func NewOptimizer(opts ...Option) *Optimizer {
	return &Optimizer{base: newBase(NameOptimizer, opts)}
}

// Traverse returns StateSuccess when the tree was rewritten and
// StateFailure when a param binding does not resolve. In both cases
// ExecutionRoot returns the last valid root.
func (o *Optimizer) Traverse(ctx context.Context, tree *domain.TaskTree) (domain.RunState, error) {
	defer o.done()
	if err := checkTree(tree); err != nil {
		return domain.StateError, err
	}

	candidate := tree.Root.Clone()
	o.mu.Lock()
	o.root = tree.Root.Clone()
	o.mu.Unlock()

	if err := domain.CheckBindings(candidate); err != nil {
		o.setErr(&domain.OptimizationError{TaskID: tree.ID, Err: err})
		o.logger.Warn("optimization failed", "task", tree.Label(), "err", err)
		return domain.StateFailure, nil
	}

	before := Cost(candidate)
	if !o.rewrite(ctx, candidate, candidate) {
		return domain.StatePreempted, nil
	}
	candidate.Renumber()
	after := Cost(candidate)

	o.mu.Lock()
	o.root = candidate
	o.err = nil
	o.before, o.after = before, after
	o.mu.Unlock()

	o.logger.Info("tree optimized", "task", tree.Label(), "cost_before", before, "cost_after", after)
	return domain.StateSuccess, nil
}

// ExecutionRoot returns a copy of the last valid root, or nil before the
// first pass.
func (o *Optimizer) ExecutionRoot() *domain.Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.root == nil {
		return nil
	}
	return o.root.Clone()
}

// Err returns the failure of the last pass, if any.
func (o *Optimizer) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Stats returns the expected cost before and after the last successful pass.
func (o *Optimizer) Stats() (before, after float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.before, o.after
}

func (o *Optimizer) setErr(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

// rewrite works bottom-up and reports false when preempted.
func (o *Optimizer) rewrite(ctx context.Context, root, n *domain.Node) bool {
	if o.preemptRequested(ctx) {
		return false
	}
	for _, c := range n.Children {
		if !o.rewrite(ctx, root, c) {
			return false
		}
	}
	if n.Leaf() || !allIdle(n) {
		return true
	}

	switch n.Composition {
	case domain.Sequential, domain.NoFail:
		kept := []*domain.Node{n.Children[0]}
		for _, c := range n.Children[1:] {
			prev := kept[len(kept)-1]
			if sameLeaf(prev, c) && !domain.References(root, c.Label) {
				o.verboseLog("merged duplicate", c.Label, prev.Label)
				continue
			}
			kept = append(kept, c)
		}
		n.SetChildren(kept)

	case domain.Selector:
		kept := make([]*domain.Node, 0, len(n.Children))
		for _, c := range n.Children {
			dup := false
			for _, k := range kept {
				if sameLeaf(k, c) && !domain.References(root, c.Label) {
					dup = true
					o.verboseLog("dropped duplicate alternative", c.Label, k.Label)
					break
				}
			}
			if !dup {
				kept = append(kept, c)
			}
		}
		sort.SliceStable(kept, func(i, j int) bool { return Cost(kept[i]) < Cost(kept[j]) })
		n.SetChildren(kept)
	}
	return true
}

func (o *Optimizer) verboseLog(msg, label, into string) {
	if o.isVerbose() {
		o.logger.Debug(msg, "label", label, "into", into)
	}
}

func allIdle(n *domain.Node) bool {
	idle := true
	n.Walk(func(x *domain.Node) bool {
		if x.State != domain.StateIdle {
			idle = false
		}
		return idle
	})
	return idle
}

func sameLeaf(a, b *domain.Node) bool {
	return a.Leaf() && b.Leaf() && a.Type == b.Type && reflect.DeepEqual(a.Params, b.Params)
}

// Cost is the expected cost of ticking a subtree to completion. Leaves
// cost their template cost; sequences and parallels add up their children;
// a selector weighs each alternative by the chance that all earlier ones
// failed, assuming an even chance of failure.
func Cost(n *domain.Node) float64 {
	if n.Leaf() {
		return n.Cost
	}
	total := 0.0
	if n.Composition == domain.Selector {
		weight := 1.0
		for _, c := range n.Children {
			total += weight * Cost(c)
			weight /= 2
		}
		return total
	}
	for _, c := range n.Children {
		total += Cost(c)
	}
	return total
}
