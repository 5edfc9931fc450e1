package visitor_test

import (
	"context"
	"testing"

	"github.com/UTNuclearRobotics/skiros2/pkg/adapters/memory"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/visitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(n *domain.Node) []string {
	var out []string
	for _, c := range n.Children {
		out = append(out, c.Label)
	}
	return out
}

func TestOptimizer_MergesAndReorders(t *testing.T) {
	tree := build(t,
		spec("Move", "m1"),
		spec("Move", "m2"),
		withParams(spec("Move", "m3"), domain.Params{"target": "table"}),
		spec("Fallback", "alt",
			spec("Grasp", "expensive"),
			spec("Noop", "cheap"),
			spec("Grasp", "expensive_again"),
		),
	)
	o := visitor.NewOptimizer()

	st, err := o.Traverse(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, st)
	require.NoError(t, o.Err())

	root := o.ExecutionRoot()
	require.NotNil(t, root)
	assert.Equal(t, []string{"m1", "m3", "alt"}, labels(root))
	assert.Equal(t, []string{"cheap", "expensive"}, labels(root.Find("alt")))
	assert.Equal(t, 3, root.Find("alt").ID, "ids are renumbered")

	before, after := o.Stats()
	assert.Greater(t, before, after)
	assert.Equal(t, before, visitor.Cost(tree.Root), "input tree is untouched")
	assert.Len(t, tree.Root.Children, 4)
}

func TestOptimizer_KeepsBoundDuplicates(t *testing.T) {
	tree := build(t,
		spec("Move", "m1"),
		spec("Move", "m2"),
		withParams(spec("Set", "s"), domain.Params{"key": "k", "value": "$m2.target"}),
	)
	o := visitor.NewOptimizer()

	st, err := o.Traverse(context.Background(), tree)
	require.NoError(t, err)
	require.Equal(t, domain.StateSuccess, st)
	assert.Equal(t, []string{"m1", "m2", "s"}, labels(o.ExecutionRoot()))
}

func TestOptimizer_MissingBinding(t *testing.T) {
	tree := build(t,
		spec("Move", "m1"),
		spec("Move", "m2"),
		withParams(spec("Set", "s"), domain.Params{"key": "k", "value": "$ghost.target"}),
	)
	o := visitor.NewOptimizer()

	st, err := o.Traverse(context.Background(), tree)
	require.NoError(t, err, "optimization failures are recoverable")
	assert.Equal(t, domain.StateFailure, st)
	assert.ErrorIs(t, o.Err(), domain.ErrOptimization)
	assert.ErrorIs(t, o.Err(), domain.ErrMissingBinding)

	root := o.ExecutionRoot()
	require.NotNil(t, root, "last valid root is still available")
	assert.Equal(t, []string{"m1", "m2", "s"}, labels(root))
}

func TestOptimizer_SkipsStartedSubtrees(t *testing.T) {
	tree := build(t, spec("Move", "m1"), spec("Move", "m2"))
	_, err := visitor.NewExecutor(memory.NewWorldModel()).Traverse(context.Background(), tree)
	require.NoError(t, err)

	o := visitor.NewOptimizer()
	st, err := o.Traverse(context.Background(), tree)
	require.NoError(t, err)
	require.Equal(t, domain.StateSuccess, st)
	assert.Equal(t, []string{"m1", "m2"}, labels(o.ExecutionRoot()))
}

func TestOptimizer_Preempt(t *testing.T) {
	tree := build(t, spec("Move", "m1"))
	o := visitor.NewOptimizer()
	o.Preempt()

	st, err := o.Traverse(context.Background(), tree)
	require.NoError(t, err)
	assert.Equal(t, domain.StatePreempted, st)
}

func TestCost(t *testing.T) {
	tree := build(t, spec("Fallback", "alt", spec("Grasp", "g"), spec("Noop", "n")))
	// Grasp costs 2, Noop costs 1 and is tried half of the time.
	assert.Equal(t, 2.5, visitor.Cost(tree.Root))
}
