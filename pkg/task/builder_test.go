package task_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/UTNuclearRobotics/skiros2/internal/testutils"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Sequence(t *testing.T) {
	b := task.NewBuilder(testutils.NewLibrary(t))

	tree, err := b.Build([]domain.SkillSpec{
		{Type: "Move", Label: "m1", Params: domain.Params{"target": "table"}},
		{Type: "Grasp", Label: "g1"},
	})
	require.NoError(t, err)

	root := tree.Root
	assert.Equal(t, task.RootType, root.Type)
	assert.Equal(t, domain.Sequential, root.Composition)
	require.Len(t, root.Children, 2)

	m1 := root.Children[0]
	assert.Equal(t, "m1", m1.Label)
	assert.Equal(t, 1, m1.ID)
	assert.Equal(t, "table", m1.Params["target"], "override wins")
	assert.Equal(t, 2, m1.Params["ticks"], "defaults are kept")
	assert.NotNil(t, m1.Behavior)
	assert.Same(t, root, m1.Parent())

	g1 := root.Children[1]
	assert.Equal(t, 2.0, g1.Cost)
	assert.NotSame(t, m1.Behavior, g1.Behavior)
	assert.Equal(t, 0, tree.PreferredID())
	assert.Equal(t, -1, tree.ID)
}

func TestBuild_NestedAndDefaultLabels(t *testing.T) {
	b := task.NewBuilder(testutils.NewLibrary(t))

	tree, err := b.Build([]domain.SkillSpec{
		{Type: "Fallback", Label: "pick", Children: []domain.SkillSpec{
			{Type: "Grasp"},
			{Type: "Grasp", Params: domain.Params{"object": "mug"}},
		}},
	})
	require.NoError(t, err)

	pick := tree.Lookup("pick")
	require.NotNil(t, pick)
	assert.Equal(t, domain.Selector, pick.Composition)
	assert.Nil(t, pick.Behavior)
	assert.Equal(t, []string{"Grasp_2", "Grasp_3"}, []string{pick.Children[0].Label, pick.Children[1].Label})
}

func TestBuild_ResolutionErrors(t *testing.T) {
	b := task.NewBuilder(testutils.NewLibrary(t))

	tests := []struct {
		name string
		seq  []domain.SkillSpec
		want error
	}{
		{"unknown type", []domain.SkillSpec{{Type: "Fly"}}, domain.ErrUnknownSkill},
		{"unknown param", []domain.SkillSpec{{Type: "Move", Params: domain.Params{"speed": 3}}}, domain.ErrUnknownParam},
		{"duplicate label", []domain.SkillSpec{{Type: "Move", Label: "a"}, {Type: "Grasp", Label: "a"}}, domain.ErrDuplicateLabel},
		{"nested unknown", []domain.SkillSpec{{Type: "Sequence", Children: []domain.SkillSpec{{Type: "Fly"}}}}, domain.ErrUnknownSkill},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := b.Build(tt.seq)
			assert.Nil(t, tree)
			assert.ErrorIs(t, err, domain.ErrResolution)
			assert.ErrorIs(t, err, tt.want)

			var rerr *domain.ResolutionError
			require.True(t, errors.As(err, &rerr))
			assert.NotEmpty(t, rerr.Skill)
		})
	}
}

func TestLoadSequence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.yaml")
	doc := "skills:\n  - type: Move\n    name: m1\n    params: {target: table}\n  - type: Grasp\n    name: g1\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	seq, err := task.LoadSequence(path)
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, "m1", seq[0].Label)
	assert.Equal(t, "table", seq[0].Params["target"])

	_, err = task.ParseSequence([]byte("skills: []"))
	assert.Error(t, err)
}
