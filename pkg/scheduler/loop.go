package scheduler

import (
	"context"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

func (s *Scheduler) run(l *loop) {
	defer func() {
		s.mu.Lock()
		if s.loop == l {
			s.loop = nil
		}
		s.mu.Unlock()
		l.cancel()
		close(l.done)
	}()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		started := time.Now()
		if !s.tick(l) {
			return
		}
		s.metrics.ObserveTick(time.Since(started))

		s.mu.Lock()
		onTick := s.onTick
		s.mu.Unlock()
		if onTick != nil {
			onTick()
		}

		select {
		case <-l.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick visits every registered task once. It returns false when the loop
// must exit.
func (s *Scheduler) tick(l *loop) bool {
	s.mu.Lock()
	if s.loop != l || l.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if len(s.tasks) == 0 {
		s.loop = nil
		s.mu.Unlock()
		s.logger.Info("tick loop stopped", "run_id", l.id)
		return false
	}
	order := sortedIDs(s.tasks)
	strategy := s.strategy
	s.mu.Unlock()

	for _, id := range order {
		if !s.visit(l, strategy, id) {
			return false
		}
	}
	return true
}

// next decides whether id is ticked in this cycle. A pending preemption
// overrides any pause.
func (s *Scheduler) next(id int) (e *entry, preempted, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok = s.tasks[id]
	if !ok {
		return nil, false, false
	}
	if _, preempted = s.preempt[id]; preempted {
		delete(s.preempt, id)
	} else if count, paused := s.pause[id]; paused {
		if count == 0 {
			return nil, false, false
		}
		s.pause[id] = count - 1
	}
	return e, preempted, true
}

func (s *Scheduler) visit(l *loop, strategy ports.Strategy, id int) bool {
	e, preempted, ok := s.next(id)
	if !ok {
		return true
	}
	ctx := l.ctx
	if preempted {
		ctx = preemptedContext(l.ctx)
	}

	e.mu.Lock()
	started := time.Now()
	st, err := strategy.Traverse(ctx, e.tree)
	s.metrics.ObserveTraversal(strategy.Name(), time.Since(started))
	var snap domain.Snapshot
	if err == nil && l.ctx.Err() == nil {
		snap = s.snapshot(l.ctx, e.tree)
	}
	e.mu.Unlock()

	s.mu.Lock()
	if s.loop != l || l.ctx.Err() != nil {
		s.mu.Unlock()
		return false
	}
	if err != nil {
		s.err = err
		s.loop = nil
		s.mu.Unlock()
		s.logger.Error("traversal failed, tick loop stopped",
			"task_id", id, "strategy", strategy.Name(), "error", err)
		return false
	}
	onProgress := s.onProgress
	s.mu.Unlock()

	if onProgress != nil {
		onProgress(id, snap)
	}

	if st.Terminal() {
		s.mu.Lock()
		removed := s.removeLocked(id)
		s.mu.Unlock()
		if removed {
			s.metrics.TaskFinished(st.String())
			s.logger.Info("task finished", "task_id", id, "state", st.String())
		}
	}
	return true
}

func (s *Scheduler) snapshot(ctx context.Context, tree *domain.TaskTree) domain.Snapshot {
	snap, err := s.printer.Capture(ctx, tree)
	if err != nil {
		s.logger.Warn("progress snapshot failed", "task_id", tree.ID, "error", err)
	}
	return snap
}

// preemptedContext returns a child of ctx that is already done. A strategy
// traversing with it halts the tree at the first node visit, while the
// strategy itself stays free for the other tasks.
func preemptedContext(ctx context.Context) context.Context {
	c, cancel := context.WithCancel(ctx)
	cancel()
	return c
}

// publish emits one snapshot of tree outside the loop.
func (s *Scheduler) publish(ctx context.Context, id int, tree *domain.TaskTree) {
	snap := s.snapshot(ctx, tree)
	s.mu.Lock()
	onProgress := s.onProgress
	s.mu.Unlock()
	if onProgress != nil && snap != nil {
		onProgress(id, snap)
	}
}
