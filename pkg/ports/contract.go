package ports

import (
	"context"
	"testing"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWorldModelContract verifies that a WorldModel implementation behaves
// like the in-memory reference. Values round trip through JSON in remote
// adapters, so numbers are compared loosely.
func RunWorldModelContract(t *testing.T, wm WorldModel) {
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		require.NoError(t, wm.Set(ctx, "robot:arm", map[string]any{"pose": "home", "joints": 6}))

		v, err := wm.Get(ctx, "robot:arm")
		require.NoError(t, err)
		m, ok := v.(map[string]any)
		require.True(t, ok, "expected a map, got %T", v)
		assert.Equal(t, "home", m["pose"])
		assert.EqualValues(t, 6, m["joints"])
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, wm.Set(ctx, "gripper", "open"))
		require.NoError(t, wm.Set(ctx, "gripper", "closed"))

		v, err := wm.Get(ctx, "gripper")
		require.NoError(t, err)
		assert.Equal(t, "closed", v)
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := wm.Get(ctx, "nothing-here")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("Keys", func(t *testing.T) {
		keys, err := wm.Keys(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, "robot:arm")
		assert.Contains(t, keys, "gripper")
		assert.IsIncreasing(t, keys)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, wm.Delete(ctx, "gripper"))
		_, err := wm.Get(ctx, "gripper")
		assert.ErrorIs(t, err, domain.ErrKeyNotFound)

		require.NoError(t, wm.Delete(ctx, "gripper"), "deleting twice is not an error")

		keys, err := wm.Keys(ctx)
		require.NoError(t, err)
		assert.NotContains(t, keys, "gripper")
	})
}
