package visitor_test

import (
	"context"
	"testing"

	"github.com/UTNuclearRobotics/skiros2/internal/testutils"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/ports"
	"github.com/UTNuclearRobotics/skiros2/pkg/task"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, seq ...domain.SkillSpec) *domain.TaskTree {
	t.Helper()
	tree, err := task.NewBuilder(testutils.NewLibrary(t)).Build(seq)
	require.NoError(t, err)
	return tree
}

func spec(skillType, label string, children ...domain.SkillSpec) domain.SkillSpec {
	return domain.SkillSpec{Type: skillType, Label: label, Children: children}
}

func withParams(s domain.SkillSpec, params domain.Params) domain.SkillSpec {
	s.Params = params
	return s
}

// tickUntilDone traverses until the tree is terminal and returns every
// aggregate state seen.
func tickUntilDone(t *testing.T, s ports.Strategy, tree *domain.TaskTree) []domain.RunState {
	t.Helper()
	var states []domain.RunState
	for i := 0; i < 50; i++ {
		st, err := s.Traverse(context.Background(), tree)
		require.NoError(t, err)
		states = append(states, st)
		if st.Terminal() {
			return states
		}
	}
	t.Fatalf("tree did not finish: %v", states)
	return nil
}

func stateOf(tree *domain.TaskTree, label string) domain.RunState {
	return tree.Lookup(label).State
}
