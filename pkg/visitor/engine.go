package visitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
)

// pass is one tick of a tree by the execution engine.
type pass struct {
	ctx       context.Context
	owner     *base
	tree      *domain.TaskTree
	backend   domain.Backend
	simulated bool
	now       time.Time
	aborted   bool
}

func newPass(ctx context.Context, owner *base, tree *domain.TaskTree, backend domain.Backend, simulated bool) *pass {
	return &pass{
		ctx:       ctx,
		owner:     owner,
		tree:      tree,
		backend:   backend,
		simulated: simulated,
		now:       time.Now(),
	}
}

func (p *pass) run() domain.RunState {
	st := p.tick(p.tree.Root)
	if p.aborted {
		return p.tree.Root.State
	}
	return st
}

func (p *pass) tick(n *domain.Node) domain.RunState {
	if p.checkPreempt() {
		return n.State
	}
	if n.State.Terminal() {
		return n.State
	}
	if n.State == domain.StateIdle && !p.start(n) {
		return n.State
	}

	var st domain.RunState
	reported := false
	if n.Leaf() {
		st, reported = p.execute(n)
	} else {
		st = p.compose(n)
	}
	if p.aborted {
		return n.State
	}
	n.Ticks++
	p.finish(n, st, reported)
	return st
}

func (p *pass) checkPreempt() bool {
	if p.aborted {
		return true
	}
	if !p.owner.preemptRequested(p.ctx) {
		return false
	}
	p.aborted = true
	p.owner.logger.Debug("preemption observed", "task", p.tree.Label())
	p.halt(p.tree.Root)
	return true
}

func (p *pass) context(n *domain.Node, resolve bool) (*domain.SkillContext, error) {
	sc := &domain.SkillContext{Node: n, Params: n.Params, Backend: p.backend, Simulated: p.simulated}
	if !resolve {
		return sc, nil
	}
	params, err := domain.ResolveParams(p.tree.Root, n)
	if err != nil {
		return nil, err
	}
	sc.Params = params
	return sc, nil
}

func (p *pass) start(n *domain.Node) bool {
	n.State = domain.StateRunning
	n.StartedAt = p.now
	if n.Behavior == nil {
		return true
	}
	sc, err := p.context(n, true)
	if err == nil {
		err = p.guard(func() error { return n.Behavior.OnStart(p.ctx, sc) })
	}
	if err != nil {
		p.fail(n, err)
		p.finish(n, domain.StateError, false)
		return false
	}
	return true
}

// execute runs the behavior of a leaf. reported is set when the behavior
// recorded its own progress code on this tick.
func (p *pass) execute(n *domain.Node) (st domain.RunState, reported bool) {
	if n.Behavior == nil {
		return domain.StateSuccess, false
	}
	sc, err := p.context(n, true)
	if err != nil {
		p.fail(n, err)
		return domain.StateError, false
	}

	st = domain.StateRunning
	err = p.guard(func() error {
		var xerr error
		st, xerr = n.Behavior.Execute(p.ctx, sc)
		return xerr
	})
	if err != nil {
		p.fail(n, err)
		return domain.StateError, false
	}
	if st == domain.StateIdle {
		st = domain.StateRunning
	}
	return st, sc.Reported()
}

// guard turns a panicking behavior into an execution error.
func (p *pass) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// fail records cause on the node. The caller finishes the node.
func (p *pass) fail(n *domain.Node, cause error) {
	err := &domain.ExecutionError{Label: n.Label, Err: cause}
	p.owner.logger.Warn("skill failed", "task", p.tree.Label(), "label", n.Label, "err", err)
	n.Progress.Message = err.Error()
}

func (p *pass) compose(n *domain.Node) domain.RunState {
	switch n.Composition {
	case domain.Selector:
		for _, c := range n.Children {
			st := p.tick(c)
			if p.aborted {
				return domain.StatePreempted
			}
			if st != domain.StateFailure {
				return st
			}
		}
		return domain.StateFailure

	case domain.ParallelFf, domain.ParallelFs:
		running := false
		for i, c := range n.Children {
			st := p.tick(c)
			if p.aborted {
				return domain.StatePreempted
			}
			stop := st != domain.StateSuccess && st.Terminal()
			if n.Composition == domain.ParallelFs {
				stop = st.Terminal()
			}
			if stop {
				p.haltSiblings(n, i)
				return st
			}
			if st == domain.StateRunning {
				running = true
			}
		}
		if running {
			return domain.StateRunning
		}
		return domain.StateSuccess

	default: // Sequential, NoFail
		for _, c := range n.Children {
			st := p.tick(c)
			if p.aborted {
				return domain.StatePreempted
			}
			if st == domain.StateSuccess {
				continue
			}
			if st == domain.StateFailure && n.Composition == domain.NoFail {
				continue
			}
			return st
		}
		return domain.StateSuccess
	}
}

func (p *pass) haltSiblings(n *domain.Node, keep int) {
	for i, c := range n.Children {
		if i != keep {
			p.halt(c)
		}
	}
}

// halt forces every unfinished node of the subtree to Preempted.
func (p *pass) halt(n *domain.Node) {
	n.Walk(func(x *domain.Node) bool {
		switch x.State {
		case domain.StateRunning:
			if x.Behavior != nil {
				sc, _ := p.context(x, false)
				_ = p.guard(func() error {
					x.Behavior.OnPreempt(p.ctx, sc)
					return nil
				})
			}
			x.Progress.Message = "preempted"
			p.finish(x, domain.StatePreempted, false)
		case domain.StateIdle:
			x.State = domain.StatePreempted
			x.Progress.Code = -1
			x.Progress.Message = "preempted"
		}
		return true
	})
}

// finish records st on n. A node that ends without a code reported by its
// behavior on the final tick gets 1 for success and -1 otherwise.
func (p *pass) finish(n *domain.Node, st domain.RunState, reported bool) {
	n.State = st
	if !n.StartedAt.IsZero() {
		n.Progress.Period = p.now.Sub(n.StartedAt)
	}
	n.Progress.Time = p.now
	if !st.Terminal() {
		return
	}

	switch {
	case reported:
	case st == domain.StateSuccess:
		n.Progress.Code = 1
	default:
		n.Progress.Code = -1
	}
	if n.Progress.Message == "" {
		n.Progress.Message = st.String()
	}
	if n.Behavior != nil {
		sc, _ := p.context(n, false)
		_ = p.guard(func() error {
			n.Behavior.OnEnd(p.ctx, sc)
			return nil
		})
	}
	if p.owner.isVerbose() {
		p.owner.logger.Debug("node finished",
			slog.String("task", p.tree.Label()),
			slog.String("label", n.Label),
			slog.String("state", st.String()),
			slog.Duration("period", n.Progress.Period),
		)
	}
}
