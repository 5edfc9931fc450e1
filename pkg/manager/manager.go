package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/UTNuclearRobotics/skiros2/internal/logging"
	"github.com/UTNuclearRobotics/skiros2/pkg/adapters/memory"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/observability"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
	"github.com/UTNuclearRobotics/skiros2/pkg/scheduler"
	"github.com/UTNuclearRobotics/skiros2/pkg/skill"
	"github.com/UTNuclearRobotics/skiros2/pkg/task"
	"github.com/UTNuclearRobotics/skiros2/pkg/visitor"
)

// AllTasks addresses every task in Preempt, Pause and TickOnce, and asks
// for a new task in commands.
const AllTasks = -1

// Manager is the skill manager of one agent.
type Manager struct {
	agent   string
	session string
	library *skill.Library
	builder *task.Builder
	sched   *scheduler.Scheduler
	printer *visitor.Print
	rate    *observability.RateMeter

	wm             ports.WorldModel
	publisher      ports.ProgressPublisher
	locker         ports.DistributedLocker
	metrics        *observability.Metrics
	logger         *slog.Logger
	tickRate       float64
	preemptTimeout time.Duration
	verbose        bool
	debug          atomic.Bool
	libraryFiles   []string
	advertised     []string
	onTick         ports.TickFunc

	mu         sync.Mutex
	optimizer  *visitor.Optimizer
	simulator  *visitor.ReversibleSimulator
	registered bool

	progressMu sync.RWMutex
	progress   map[int]domain.ProgressEvent
	subs       map[int]chan domain.ProgressEvent
	nextSub    int

	regMu sync.Mutex
}

// New creates the manager of agent using library to resolve skills.
func New(agent string, library *skill.Library, opts ...Option) (*Manager, error) {
	if agent == "" {
		return nil, errors.New("manager: empty agent name")
	}
	if library == nil {
		return nil, errors.New("manager: nil skill library")
	}

	m := &Manager{
		agent:    agent,
		session:  uuid.NewString(),
		library:  library,
		builder:  task.NewBuilder(library),
		rate:     observability.NewRateMeter(50),
		progress: make(map[int]domain.ProgressEvent),
		subs:     make(map[int]chan domain.ProgressEvent),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logging.NewNop()
	}
	m.logger = m.logger.With("agent", agent)
	if m.wm == nil {
		m.wm = memory.NewWorldModel()
	}
	if len(m.advertised) > 0 {
		if err := library.Advertise(m.advertised...); err != nil {
			return nil, fmt.Errorf("manager: %w", err)
		}
	}

	m.printer = visitor.NewPrint(visitor.WithLogger(m.logger))
	schedOpts := []scheduler.Option{
		scheduler.WithLogger(m.logger),
		scheduler.WithPrinter(m.printer),
		scheduler.WithMetrics(m.metrics),
		scheduler.WithProgressObserver(m.observeProgress),
		scheduler.WithTickObserver(m.observeTick),
	}
	if m.tickRate > 0 {
		schedOpts = append(schedOpts, scheduler.WithRate(m.tickRate))
	}
	if m.preemptTimeout > 0 {
		schedOpts = append(schedOpts, scheduler.WithPreemptTimeout(m.preemptTimeout))
	}
	m.sched = scheduler.New(schedOpts...)
	return m, nil
}

// Agent returns the name of the agent.
func (m *Manager) Agent() string { return m.agent }

// Session identifies this manager instance.
func (m *Manager) Session() string { return m.session }

// WorldModel returns the store behaviors act on.
func (m *Manager) WorldModel() ports.WorldModel { return m.wm }

// Scheduler returns the underlying scheduler.
func (m *Manager) Scheduler() *scheduler.Scheduler { return m.sched }

func (m *Manager) strategyOpts() []visitor.Option {
	return []visitor.Option{visitor.WithLogger(m.logger), visitor.WithVerbose(m.verbose)}
}

// AddTask builds a task from seq and registers it. Nothing runs until one
// of the run operations is called for the returned id.
func (m *Manager) AddTask(seq []domain.SkillSpec) (int, error) {
	tree, err := m.build(seq)
	if err != nil {
		return AllTasks, err
	}
	return m.sched.AddTask(tree, tree.PreferredID()), nil
}

func (m *Manager) build(seq []domain.SkillSpec) (*domain.TaskTree, error) {
	tree, err := m.builder.Build(seq)
	if err != nil {
		return nil, err
	}
	for _, s := range seq {
		m.logger.Debug("add skill", "type", s.Type, "label", s.Label, "params", s.Params)
	}
	return tree, nil
}

func (m *Manager) checkTask(id int) error {
	if id != AllTasks && !m.sched.Has(id) {
		return fmt.Errorf("%w: %d", domain.ErrTaskNotFound, id)
	}
	return nil
}

// ExecuteTask starts or resumes id with an executor. tracked names node
// params to record after every tick, as "label" for every param of a node
// or "label.key" for one.
func (m *Manager) ExecuteTask(id int, simulate bool, tracked ...string) error {
	if err := m.checkTask(id); err != nil {
		return err
	}
	m.start(m.executor(simulate, tracked), id)
	return nil
}

func (m *Manager) executor(simulate bool, tracked []string) *visitor.Executor {
	x := visitor.NewExecutor(m.wm, m.strategyOpts()...)
	x.Simulate(simulate)
	for _, t := range tracked {
		label, key, ok := strings.Cut(t, ".")
		if ok {
			x.TrackParam(label, key)
		} else {
			x.TrackParam(label)
		}
	}
	return x
}

// PrintTask starts or resumes id with a print strategy. Nothing executes.
func (m *Manager) PrintTask(id int) error {
	if err := m.checkTask(id); err != nil {
		return err
	}
	m.start(visitor.NewPrint(m.strategyOpts()...), id)
	return nil
}

// SimulateTask starts or resumes id with a reversible simulator. World
// model writes go to an overlay that is never committed.
func (m *Manager) SimulateTask(id int) error {
	if err := m.checkTask(id); err != nil {
		return err
	}
	sim := visitor.NewReversibleSimulator(m.wm, m.strategyOpts()...)
	if m.start(sim, id) {
		m.mu.Lock()
		m.simulator = sim
		m.mu.Unlock()
	}
	return nil
}

// Simulator returns the simulator bound by the last SimulateTask that
// started the tick loop, or nil.
func (m *Manager) Simulator() *visitor.ReversibleSimulator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.simulator
}

func (m *Manager) start(s ports.Strategy, id int) bool {
	if m.sched.Start(s, id) {
		return true
	}
	if bound := m.sched.Strategy(); bound != nil && bound.Name() != s.Name() {
		m.logger.Debug("tick loop running, keeping bound strategy",
			"task_id", id, "strategy", bound.Name(), "requested", s.Name())
	}
	return false
}

// OptimizeTask rewrites the tree of id in place. The task must not have
// started. On failure the tree is untouched, the returned error wraps
// domain.ErrOptimization and Optimizer().ExecutionRoot() still holds the
// last valid root.
func (m *Manager) OptimizeTask(ctx context.Context, id int) error {
	opt := visitor.NewOptimizer(m.strategyOpts()...)
	m.mu.Lock()
	m.optimizer = opt
	m.mu.Unlock()

	err := m.sched.WithTask(id, func(tree *domain.TaskTree) error {
		st, err := opt.Traverse(ctx, tree)
		if err != nil {
			return err
		}
		switch st {
		case domain.StateSuccess:
			tree.Root = opt.ExecutionRoot()
			m.emit(id, visitor.Describe(tree.Root, m.debug.Load()))
			return nil
		case domain.StatePreempted:
			if err := ctx.Err(); err != nil {
				return &domain.OptimizationError{TaskID: id, Err: err}
			}
			return &domain.OptimizationError{TaskID: id, Err: errors.New("preempted")}
		default:
			return opt.Err()
		}
	})
	if err != nil {
		m.logger.Warn("optimization failed", "task_id", id, "err", err)
	}
	return err
}

// Optimizer returns the optimizer of the last OptimizeTask call, or nil.
func (m *Manager) Optimizer() *visitor.Optimizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.optimizer
}

// ExecuteOptimal optimizes id, then executes it.
func (m *Manager) ExecuteOptimal(ctx context.Context, id int) error {
	if err := m.OptimizeTask(ctx, id); err != nil {
		return err
	}
	return m.ExecuteTask(id, false)
}

// PreemptTask stops id, or every task for AllTasks, and waits for the
// task to leave the registry.
func (m *Manager) PreemptTask(ctx context.Context, id int) error {
	if id == AllTasks {
		return m.sched.PreemptAll(ctx)
	}
	return m.sched.Preempt(ctx, id)
}

// Pause stops ticking id, or every task for AllTasks.
func (m *Manager) Pause(id int) {
	if id == AllTasks {
		m.sched.PauseAll()
		return
	}
	m.sched.Pause(id)
}

// TickOnce lets id, or every task for AllTasks, tick once more and pause.
func (m *Manager) TickOnce(id int) {
	if id == AllTasks {
		m.sched.TickOnceAll()
		return
	}
	m.sched.TickOnce(id)
}

// ClearTasks preempts and drops every task.
func (m *Manager) ClearTasks(ctx context.Context) error {
	return m.sched.Clear(ctx)
}

// Tasks returns the ids of the registered tasks.
func (m *Manager) Tasks() []int {
	return m.sched.Tasks()
}

// SetDebug includes node params in progress snapshots.
func (m *Manager) SetDebug(on bool) {
	m.debug.Store(on)
	m.printer.SetVerbose(on)
	m.logger.Info("debug output", "enabled", on)
}

// Debug reports whether progress snapshots carry params.
func (m *Manager) Debug() bool {
	return m.debug.Load()
}

// TickRate returns the measured tick rate in Hz.
func (m *Manager) TickRate() float64 {
	return m.rate.Rate()
}

func (m *Manager) observeTick() {
	m.rate.Tick()
	if m.onTick != nil {
		m.onTick()
	}
}

// Skills returns the skills offered to clients.
func (m *Manager) Skills() []ports.SkillTemplate {
	return m.library.Available()
}

// ReloadSkills reads the library files again and replaces the library
// content. Running tasks keep the behaviors they were built with. A
// registered agent advertises the new skill set.
func (m *Manager) ReloadSkills(ctx context.Context) error {
	if len(m.libraryFiles) == 0 {
		return errors.New("reload skills: no library files configured")
	}
	defs, err := skill.LoadFiles(m.libraryFiles...)
	if err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	if err := m.library.Replace(defs...); err != nil {
		return fmt.Errorf("reload skills: %w", err)
	}
	if len(m.advertised) > 0 {
		if err := m.library.Advertise(m.advertised...); err != nil {
			return fmt.Errorf("reload skills: %w", err)
		}
	}
	m.logger.Info("skills reloaded", "count", len(defs))

	m.mu.Lock()
	registered := m.registered
	m.mu.Unlock()
	if registered {
		return m.Register(ctx)
	}
	return nil
}
