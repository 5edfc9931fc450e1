package visitor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/UTNuclearRobotics/skiros2/internal/logging"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
)

var (
	_ ports.Snapshotter  = (*Print)(nil)
	_ ports.Strategy     = (*Executor)(nil)
	_ ports.RootProvider = (*ReversibleSimulator)(nil)
	_ ports.Strategy     = (*ReversibleSimulator)(nil)
	_ ports.RootProvider = (*Optimizer)(nil)
	_ ports.Strategy     = (*Optimizer)(nil)
)

// Strategy names reported by Name.
const (
	NamePrint     = "print"
	NameExecutor  = "executor"
	NameSimulator = "simulator"
	NameOptimizer = "optimizer"
)

var (
	errEmptyTree   = errors.New("traverse: tree has no root")
	errInterrupted = errors.New("traverse: pass interrupted")
)

// Option configures a strategy.
type Option func(*base)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

// WithVerbose starts the strategy in verbose mode.
func WithVerbose(verbose bool) Option {
	return func(b *base) {
		b.verbose.Store(verbose)
	}
}

// base carries what every strategy shares: the preemption flag and the
// verbosity switch.
type base struct {
	name    string
	logger  *slog.Logger
	verbose atomic.Bool
	preempt atomic.Bool
}

func newBase(name string, opts []Option) base {
	b := base{name: name, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	b.logger = b.logger.With("strategy", name)
	return b
}

func (b *base) Name() string { return b.name }

func (b *base) Preempt() { b.preempt.Store(true) }

func (b *base) SetVerbose(verbose bool) { b.verbose.Store(verbose) }

func (b *base) isVerbose() bool { return b.verbose.Load() }

func (b *base) preemptRequested(ctx context.Context) bool {
	return b.preempt.Load() || ctx.Err() != nil
}

// done clears the preemption flag once a pass is over.
func (b *base) done() { b.preempt.Store(false) }

func checkTree(tree *domain.TaskTree) error {
	if tree == nil || tree.Root == nil {
		return errEmptyTree
	}
	return nil
}
