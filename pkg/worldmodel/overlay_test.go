package worldmodel_test

import (
	"context"
	"testing"

	"github.com/UTNuclearRobotics/skiros2/pkg/adapters/memory"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/worldmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlay_ShadowsBase(t *testing.T) {
	ctx := context.Background()
	base := memory.NewWorldModel()
	require.NoError(t, base.Set(ctx, "gripper", "open"))
	require.NoError(t, base.Set(ctx, "arm", "home"))

	o := worldmodel.NewOverlay(base)
	require.NoError(t, o.Set(ctx, "gripper", "closed"))
	require.NoError(t, o.Delete(ctx, "arm"))

	v, err := o.Get(ctx, "gripper")
	require.NoError(t, err)
	assert.Equal(t, "closed", v)
	_, err = o.Get(ctx, "arm")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	v, err = base.Get(ctx, "gripper")
	require.NoError(t, err)
	assert.Equal(t, "open", v, "base is untouched until commit")

	assert.Equal(t, []worldmodel.Effect{
		{Key: "gripper", Value: "closed"},
		{Key: "arm", Deleted: true},
	}, o.Effects())
}

func TestOverlay_Undo(t *testing.T) {
	ctx := context.Background()
	base := memory.NewWorldModel()
	require.NoError(t, base.Set(ctx, "door", "closed"))

	o := worldmodel.NewOverlay(base)
	require.NoError(t, o.Set(ctx, "door", "ajar"))
	require.NoError(t, o.Set(ctx, "door", "open"))

	require.True(t, o.Undo())
	v, _ := o.Get(ctx, "door")
	assert.Equal(t, "ajar", v)

	require.True(t, o.Undo())
	v, _ = o.Get(ctx, "door")
	assert.Equal(t, "closed", v)

	assert.False(t, o.Undo())
}

func TestOverlay_RollbackAndCommit(t *testing.T) {
	ctx := context.Background()
	base := memory.NewWorldModel()
	o := worldmodel.NewOverlay(base)

	require.NoError(t, o.Set(ctx, "a", 1))
	o.Rollback()
	assert.Zero(t, o.Len())
	_, err := o.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, o.Set(ctx, "a", 1))
	require.NoError(t, o.Set(ctx, "b", 2))
	require.NoError(t, o.Delete(ctx, "b"))
	require.NoError(t, o.Commit(ctx))

	keys, err := base.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)
	assert.Zero(t, o.Len())
}
