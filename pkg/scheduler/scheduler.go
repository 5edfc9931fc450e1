package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UTNuclearRobotics/skiros2/internal/logging"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ids"
	"github.com/UTNuclearRobotics/skiros2/pkg/observability"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
	"github.com/UTNuclearRobotics/skiros2/pkg/visitor"
)

const (
	// DefaultRate is the tick rate in Hz.
	DefaultRate = 25.0
	// DefaultPreemptTimeout is the grace period of a cooperative preemption.
	DefaultPreemptTimeout = 5 * time.Second

	pollInterval = 10 * time.Millisecond
)

// entry is a registered tree. mu is held while the tree is traversed.
type entry struct {
	mu   sync.Mutex
	tree *domain.TaskTree
}

// loop is one run of the tick loop.
type loop struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *loop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Scheduler owns the task registry and the tick loop.
// All methods are safe for concurrent use.
type Scheduler struct {
	period         time.Duration
	preemptTimeout time.Duration
	logger         *slog.Logger
	metrics        *observability.Metrics
	printer        ports.Snapshotter

	mu         sync.Mutex
	ids        *ids.Allocator
	tasks      map[int]*entry
	pause      map[int]int
	preempt    map[int]struct{}
	strategy   ports.Strategy
	loop       *loop
	onProgress ports.ProgressFunc
	onTick     ports.TickFunc
	err        error
}

// New creates a scheduler with no tasks and no running loop.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		period:         time.Duration(float64(time.Second) / DefaultRate),
		preemptTimeout: DefaultPreemptTimeout,
		logger:         logging.NewNop(),
		ids:            ids.NewAllocator(),
		tasks:          make(map[int]*entry),
		pause:          make(map[int]int),
		preempt:        make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.printer == nil {
		s.printer = visitor.NewPrint(visitor.WithLogger(s.logger))
	}
	return s
}

// AddTask registers tree under desiredID when that id is free, or under the
// smallest free id otherwise. The root is labelled "task_<id>". Ticking
// does not start until Start is called.
func (s *Scheduler) AddTask(tree *domain.TaskTree, desiredID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(tree, desiredID)
}

// AddPausedTask registers tree like AddTask with a pause counter already
// set, so a running loop ticks it at most ticks times.
func (s *Scheduler) AddPausedTask(tree *domain.TaskTree, desiredID, ticks int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.addLocked(tree, desiredID)
	s.pause[id] = max(ticks, 0)
	return id
}

func (s *Scheduler) addLocked(tree *domain.TaskTree, desiredID int) int {
	id := s.ids.Allocate(desiredID)
	tree.ID = id
	tree.Root.Label = fmt.Sprintf("task_%d", id)
	s.tasks[id] = &entry{tree: tree}
	s.metrics.SetActiveTasks(len(s.tasks))
	s.logger.Info("task added", "task_id", id, "nodes", tree.Len())
	return id
}

// RemoveTask drops a task and releases its id. Unknown ids are ignored.
func (s *Scheduler) RemoveTask(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *Scheduler) removeLocked(id int) bool {
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	delete(s.pause, id)
	delete(s.preempt, id)
	s.ids.Release(id)
	s.metrics.SetActiveTasks(len(s.tasks))
	return true
}

// Start resumes id if it is paused and, when no loop is running, binds
// strategy and starts one. It reports whether a new loop was started. A
// negative id only starts the loop.
func (s *Scheduler) Start(strategy ports.Strategy, id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, paused := s.pause[id]; paused {
		delete(s.pause, id)
		s.logger.Info("task resumed", "task_id", id)
	}
	if s.loop != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &loop{id: uuid.NewString(), ctx: ctx, cancel: cancel, done: make(chan struct{})}
	s.strategy = strategy
	s.loop = l
	s.err = nil
	s.logger.Info("tick loop started", "run_id", l.id, "strategy", strategy.Name(), "task_id", id)
	go s.run(l)
	return true
}

// Pause stops ticking id until it is resumed, preempted or removed.
func (s *Scheduler) Pause(id int) {
	s.setPause(id, 0)
}

// TickOnce lets id be ticked exactly once more before pausing again.
func (s *Scheduler) TickOnce(id int) {
	s.setPause(id, 1)
}

func (s *Scheduler) setPause(id, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; ok {
		s.pause[id] = count
	}
}

// PauseAll pauses every registered task.
func (s *Scheduler) PauseAll() {
	s.setPauseAll(0)
}

// TickOnceAll lets every registered task tick once more.
func (s *Scheduler) TickOnceAll() {
	s.setPauseAll(1)
}

func (s *Scheduler) setPauseAll(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.tasks {
		s.pause[id] = count
	}
}

// Paused returns the pause counter of id.
func (s *Scheduler) Paused(id int) (count int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok = s.pause[id]
	return count, ok
}

// Preempt marks id for preemption and waits until the task is gone or the
// loop stopped. The loop delivers the request at the task's next visit and
// never to any other task. When the grace period expires the loop is
// terminated and the task dropped; this is logged, not returned. Only a
// done ctx makes Preempt fail. Unknown ids are ignored.
func (s *Scheduler) Preempt(ctx context.Context, id int) error {
	s.mu.Lock()
	if _, ok := s.tasks[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.pause, id)
	l := s.loop
	if l == nil {
		s.mu.Unlock()
		s.finalize(ctx, id)
		return nil
	}
	s.preempt[id] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("preempting task", "task_id", id)

	timer := time.NewTimer(s.preemptTimeout)
	defer timer.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	for {
		if !s.Has(id) || l.stopped() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		case <-timer.C:
			s.forceStop(l, id)
			return nil
		}
	}
}

// PreemptAll preempts every registered task.
func (s *Scheduler) PreemptAll(ctx context.Context) error {
	for _, id := range s.Tasks() {
		if err := s.Preempt(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// finalize drops a task while no loop is running, giving the last bound
// strategy one preempted pass over it first.
func (s *Scheduler) finalize(ctx context.Context, id int) {
	s.mu.Lock()
	e, ok := s.tasks[id]
	strategy := s.strategy
	s.mu.Unlock()
	if !ok {
		return
	}

	if strategy != nil && e.mu.TryLock() {
		st, err := strategy.Traverse(preemptedContext(ctx), e.tree)
		if err == nil {
			s.publish(ctx, id, e.tree)
		}
		e.mu.Unlock()
		s.logger.Info("task preempted", "task_id", id, "state", st.String())
	}

	s.mu.Lock()
	s.removeLocked(id)
	s.mu.Unlock()
}

func (s *Scheduler) forceStop(l *loop, id int) {
	s.mu.Lock()
	if s.loop == l {
		s.loop = nil
	}
	l.cancel()
	s.removeLocked(id)
	s.mu.Unlock()

	s.metrics.PreemptTimedOut()
	s.logger.Warn("task did not respond to preemption, tick loop terminated",
		"task_id", id, "run_id", l.id, "timeout", s.preemptTimeout)
}

// Clear preempts every task, waits for the loop to stop, then empties the
// registry and releases every id.
func (s *Scheduler) Clear(ctx context.Context) error {
	s.mu.Lock()
	l := s.loop
	for id := range s.tasks {
		s.preempt[id] = struct{}{}
	}
	clear(s.pause)
	s.mu.Unlock()

	var err error
	if l != nil {
		timer := time.NewTimer(s.preemptTimeout)
		select {
		case <-l.done:
		case <-ctx.Done():
			err = ctx.Err()
		case <-timer.C:
			s.mu.Lock()
			if s.loop == l {
				s.loop = nil
			}
			s.mu.Unlock()
			l.cancel()
			s.metrics.PreemptTimedOut()
			s.logger.Warn("tasks did not respond to preemption, tick loop terminated", "run_id", l.id)
		}
		timer.Stop()
	}

	s.mu.Lock()
	clear(s.tasks)
	clear(s.pause)
	clear(s.preempt)
	s.ids.Clear()
	s.strategy = nil
	s.metrics.SetActiveTasks(0)
	s.mu.Unlock()
	s.logger.Info("tasks cleared")
	return err
}

// Join blocks until the running loop, if any, exits.
func (s *Scheduler) Join(ctx context.Context) error {
	s.mu.Lock()
	l := s.loop
	s.mu.Unlock()
	if l == nil {
		return nil
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a tick loop is attached.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loop != nil
}

// Has reports whether id is registered.
func (s *Scheduler) Has(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok
}

// Tasks returns the registered ids in ascending order.
func (s *Scheduler) Tasks() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedIDs(s.tasks)
}

// Strategy returns the strategy bound to the current or last loop.
func (s *Scheduler) Strategy() ports.Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// Printer returns the strategy producing progress snapshots.
func (s *Scheduler) Printer() ports.Snapshotter {
	return s.printer
}

// Err returns the fault that stopped the last loop, if any.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// WithTask runs fn on the tree of id between two traversals of it.
func (s *Scheduler) WithTask(id int, fn func(*domain.TaskTree) error) error {
	s.mu.Lock()
	e, ok := s.tasks[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrTaskNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.tree)
}

// ObserveProgress replaces the progress callback.
func (s *Scheduler) ObserveProgress(fn ports.ProgressFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProgress = fn
}

// ObserveTick replaces the tick callback.
func (s *Scheduler) ObserveTick(fn ports.TickFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

func sortedIDs(tasks map[int]*entry) []int {
	out := make([]int, 0, len(tasks))
	for id := range tasks {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
