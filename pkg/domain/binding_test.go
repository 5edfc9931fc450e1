package domain_test

import (
	"testing"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBinding(t *testing.T) {
	tests := []struct {
		in    any
		label string
		key   string
		ok    bool
	}{
		{"$m1.target", "m1", "target", true},
		{"$task_0.arm.side", "task_0.arm", "side", true},
		{"m1.target", "", "", false},
		{"$m1", "", "", false},
		{"$m1.", "", "", false},
		{42, "", "", false},
	}
	for _, tt := range tests {
		label, key, ok := domain.ParseBinding(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.label, label)
		assert.Equal(t, tt.key, key)
	}
}

func TestResolveParams(t *testing.T) {
	root := sampleTree()

	params, err := domain.ResolveParams(root, root.Find("g1"))
	require.NoError(t, err)
	assert.Equal(t, "cup", params["object"])
	assert.Equal(t, "$pick.object", root.Find("g1").Params["object"], "node params are left untouched")

	root.Find("g1").Params["object"] = "$ghost.object"
	_, err = domain.ResolveParams(root, root.Find("g1"))
	assert.ErrorIs(t, err, domain.ErrMissingBinding)
}

func TestCheckBindings(t *testing.T) {
	root := sampleTree()
	require.NoError(t, domain.CheckBindings(root))
	assert.True(t, domain.References(root, "pick"))
	assert.False(t, domain.References(root, "m2"))

	root.Find("m2").Params = domain.Params{"target": "$m1.pose"}
	err := domain.CheckBindings(root)
	assert.ErrorIs(t, err, domain.ErrMissingBinding)
	assert.Contains(t, err.Error(), "m2")
}

func TestErrorsUnwrapToCategory(t *testing.T) {
	err := &domain.ResolutionError{Skill: "Fly", Err: domain.ErrUnknownSkill}
	assert.ErrorIs(t, err, domain.ErrResolution)
	assert.ErrorIs(t, err, domain.ErrUnknownSkill)

	oerr := &domain.OptimizationError{TaskID: 3, Err: domain.ErrMissingBinding}
	assert.ErrorIs(t, oerr, domain.ErrOptimization)
	assert.ErrorIs(t, oerr, domain.ErrMissingBinding)
}
