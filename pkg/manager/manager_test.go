package manager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UTNuclearRobotics/skiros2/internal/testutils"
	"github.com/UTNuclearRobotics/skiros2/pkg/adapters/memory"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
	"github.com/UTNuclearRobotics/skiros2/pkg/skill"
)

const (
	waitFor = 2 * time.Second
	poll    = 5 * time.Millisecond
)

func newManager(t *testing.T, opts ...manager.Option) *manager.Manager {
	t.Helper()
	opts = append([]manager.Option{
		manager.WithTickRate(500),
		manager.WithPreemptTimeout(200 * time.Millisecond),
	}, opts...)
	m, err := manager.New("test_robot", testutils.NewLibrary(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func sk(skillType, label string) domain.SkillSpec {
	return domain.SkillSpec{Type: skillType, Label: label}
}

func setSkill(label, key string, value any) domain.SkillSpec {
	return domain.SkillSpec{Type: "Set", Label: label, Params: domain.Params{"key": key, "value": value}}
}

func waitGone(t *testing.T, m *manager.Manager, id int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !m.Scheduler().Has(id)
	}, waitFor, poll)
}

func TestNew_Validation(t *testing.T) {
	_, err := manager.New("", skill.NewLibrary())
	assert.Error(t, err)

	_, err = manager.New("robot", nil)
	assert.Error(t, err)

	_, err = manager.New("robot", testutils.NewLibrary(t), manager.WithAdvertised("Teleport"))
	assert.ErrorIs(t, err, domain.ErrUnknownSkill)
}

func TestManager_ExecuteMoveThenGrasp(t *testing.T) {
	m := newManager(t)
	events, cancel := m.Subscribe(0)
	defer cancel()

	id, err := m.AddTask([]domain.SkillSpec{sk("Move", "m1"), sk("Grasp", "g1")})
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	assert.Equal(t, []int{0}, m.Tasks())

	require.NoError(t, m.ExecuteTask(id, false))
	waitGone(t, m, id)

	last, err := m.Progress(id)
	require.NoError(t, err)
	assert.True(t, last.Done())
	assert.Equal(t, "test_robot", last.Agent)
	assert.Equal(t, []string{"task_0", "m1", "g1"}, last.Snapshot.Labels())
	for _, p := range last.Snapshot {
		assert.Equal(t, domain.StateSuccess, p.State, p.Label)
	}

	var seen []domain.RunState
	for len(events) > 0 {
		ev := <-events
		root, ok := ev.Snapshot.Root()
		require.True(t, ok)
		seen = append(seen, root.State)
	}
	require.NotEmpty(t, seen)
	assert.Equal(t, domain.StateSuccess, seen[len(seen)-1])
	for _, st := range seen[:len(seen)-1] {
		assert.Equal(t, domain.StateRunning, st)
	}
	assert.Greater(t, m.TickRate(), 0.0)
}

func TestManager_AddTaskResolutionError(t *testing.T) {
	m := newManager(t)

	_, err := m.AddTask([]domain.SkillSpec{sk("Teleport", "t")})
	var rerr *domain.ResolutionError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, domain.ErrUnknownSkill)
	assert.Empty(t, m.Tasks())
}

func TestManager_UnknownTask(t *testing.T) {
	m := newManager(t)
	assert.ErrorIs(t, m.ExecuteTask(3, false), domain.ErrTaskNotFound)
	assert.ErrorIs(t, m.PrintTask(3), domain.ErrTaskNotFound)
	assert.ErrorIs(t, m.SimulateTask(3), domain.ErrTaskNotFound)
	assert.ErrorIs(t, m.OptimizeTask(context.Background(), 3), domain.ErrTaskNotFound)
	assert.NoError(t, m.PreemptTask(context.Background(), 3), "preempting an unknown task is a no-op")

	_, err := m.Progress(3)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestManager_PauseFreezesProgress(t *testing.T) {
	m := newManager(t)
	id, err := m.AddTask([]domain.SkillSpec{sk("Hang", "h")})
	require.NoError(t, err)
	m.Pause(id)
	require.NoError(t, m.PrintTask(manager.AllTasks))

	time.Sleep(30 * time.Millisecond)
	_, err = m.Progress(id)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound, "a paused task is never traversed")

	m.TickOnce(id)
	require.Eventually(t, func() bool {
		_, err := m.Progress(id)
		return err == nil
	}, waitFor, poll)
	first, err := m.Progress(id)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	again, err := m.Progress(id)
	require.NoError(t, err)
	assert.Equal(t, first.Time, again.Time)
}

func TestManager_PrintTaskHasNoEffects(t *testing.T) {
	wm := memory.NewWorldModel()
	m := newManager(t, manager.WithWorldModel(wm))
	id, err := m.AddTask([]domain.SkillSpec{setSkill("s", "door", "open"), sk("Move", "m")})
	require.NoError(t, err)

	require.NoError(t, m.PrintTask(id))
	require.Eventually(t, func() bool {
		_, err := m.Progress(id)
		return err == nil
	}, waitFor, poll)

	ev, err := m.Progress(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"task_0", "s", "m"}, ev.Snapshot.Labels())
	for _, p := range ev.Snapshot {
		assert.Equal(t, domain.StateIdle, p.State)
	}

	_, err = wm.Get(context.Background(), "door")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
	require.NoError(t, m.ClearTasks(context.Background()))
	assert.Empty(t, m.Tasks())
}

func TestManager_ExecuteWritesWorldModel(t *testing.T) {
	tests := []struct {
		name     string
		simulate bool
		stored   bool
	}{
		{name: "real", simulate: false, stored: true},
		{name: "simulated", simulate: true, stored: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wm := memory.NewWorldModel()
			m := newManager(t, manager.WithWorldModel(wm))
			id, err := m.AddTask([]domain.SkillSpec{setSkill("s", "door", "open")})
			require.NoError(t, err)

			require.NoError(t, m.ExecuteTask(id, tt.simulate))
			waitGone(t, m, id)

			got, err := wm.Get(context.Background(), "door")
			if tt.stored {
				require.NoError(t, err)
				assert.Equal(t, "open", got)
			} else {
				assert.ErrorIs(t, err, domain.ErrKeyNotFound)
			}
		})
	}
}

func TestManager_SimulateTask(t *testing.T) {
	wm := memory.NewWorldModel()
	m := newManager(t, manager.WithWorldModel(wm))
	id, err := m.AddTask([]domain.SkillSpec{setSkill("s", "door", "open"), sk("Noop", "n")})
	require.NoError(t, err)

	require.NoError(t, m.SimulateTask(id))
	waitGone(t, m, id)

	_, err = wm.Get(context.Background(), "door")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	sim := m.Simulator()
	require.NotNil(t, sim)
	effects := sim.Effects()
	require.Len(t, effects, 1)
	assert.Equal(t, "door", effects[0].Key)
	assert.Equal(t, "open", effects[0].Value)
	require.NotNil(t, sim.ExecutionRoot())
}

func TestManager_OptimizeTask(t *testing.T) {
	m := newManager(t)
	id, err := m.AddTask([]domain.SkillSpec{{
		Type:     "Fallback",
		Label:    "alt",
		Children: []domain.SkillSpec{sk("Grasp", "g"), sk("Move", "m")},
	}})
	require.NoError(t, err)

	require.NoError(t, m.OptimizeTask(context.Background(), id))
	err = m.Scheduler().WithTask(id, func(tree *domain.TaskTree) error {
		alt := tree.Lookup("alt")
		require.NotNil(t, alt)
		require.Len(t, alt.Children, 2)
		assert.Equal(t, "m", alt.Children[0].Label, "cheapest alternative first")
		assert.Equal(t, "task_0", tree.Root.Label)
		return nil
	})
	require.NoError(t, err)

	before, after := m.Optimizer().Stats()
	assert.Less(t, after, before)
}

func TestManager_OptimizeTaskMissingBinding(t *testing.T) {
	m := newManager(t)
	move := sk("Move", "m")
	move.Params = domain.Params{"target": "$ghost.pose"}
	id, err := m.AddTask([]domain.SkillSpec{move})
	require.NoError(t, err)

	err = m.OptimizeTask(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrOptimization)
	assert.ErrorIs(t, err, domain.ErrMissingBinding)

	root := m.Optimizer().ExecutionRoot()
	require.NotNil(t, root, "last valid root stays available")
	assert.Equal(t, "$ghost.pose", root.Find("m").Params["target"])
	assert.True(t, m.Scheduler().Has(id))
}

func TestManager_ExecuteOptimal(t *testing.T) {
	m := newManager(t)
	id, err := m.AddTask([]domain.SkillSpec{sk("Noop", "a"), sk("Noop", "b")})
	require.NoError(t, err)

	require.NoError(t, m.ExecuteOptimal(context.Background(), id))
	waitGone(t, m, id)

	ev, err := m.Progress(id)
	require.NoError(t, err)
	assert.True(t, ev.Done())
}

func TestManager_PreemptAll(t *testing.T) {
	m := newManager(t)
	for range 3 {
		_, err := m.AddTask([]domain.SkillSpec{sk("Move", ""), sk("Grasp", "")})
		require.NoError(t, err)
	}
	m.Pause(manager.AllTasks)
	require.NoError(t, m.ExecuteTask(manager.AllTasks, false))

	require.NoError(t, m.PreemptTask(context.Background(), manager.AllTasks))
	assert.Empty(t, m.Tasks())
}

func TestManager_SetDebugAddsParams(t *testing.T) {
	m := newManager(t)
	m.SetDebug(true)
	assert.True(t, m.Debug())

	id, err := m.AddTask([]domain.SkillSpec{sk("Move", "m")})
	require.NoError(t, err)
	require.NoError(t, m.ExecuteTask(id, false))
	waitGone(t, m, id)

	ev, err := m.Progress(id)
	require.NoError(t, err)
	require.Len(t, ev.Snapshot, 2)
	assert.Equal(t, "home", ev.Snapshot[1].Params["target"])

	m.SetDebug(false)
	assert.False(t, m.Debug())
}

func TestManager_Skills(t *testing.T) {
	m := newManager(t, manager.WithAdvertised("Move", "Grasp"))

	skills := m.Skills()
	require.Len(t, skills, 2)
	assert.Equal(t, "Grasp", skills[0].Type)
	assert.Equal(t, "Move", skills[1].Type)
}

func TestManager_ReloadSkills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skills.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	write("skills:\n  - type: Alpha\n    behavior: noop\n")

	defs, err := skill.LoadFile(path)
	require.NoError(t, err)
	lib := skill.NewLibrary()
	require.NoError(t, lib.Define(defs...))

	m, err := manager.New("robot", lib, manager.WithLibraryFiles(path))
	require.NoError(t, err)
	require.NoError(t, m.Register(context.Background()))

	write("skills:\n  - type: Alpha\n    behavior: noop\n  - type: Beta\n    behavior: wait\n")
	require.NoError(t, m.ReloadSkills(context.Background()))

	types := make([]string, 0, 2)
	for _, s := range m.Skills() {
		types = append(types, s.Type)
	}
	assert.Equal(t, []string{"Alpha", "Beta"}, types)

	stored, err := m.WorldModel().Get(context.Background(), manager.SkillsKey("robot"))
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestManager_ReloadSkillsWithoutFiles(t *testing.T) {
	m := newManager(t)
	assert.Error(t, m.ReloadSkills(context.Background()))
}

func TestManager_RegisterAndShutdown(t *testing.T) {
	ctx := context.Background()
	wm := memory.NewWorldModel()
	lib := testutils.NewLibrary(t)

	a, err := manager.New("robot_a", lib, manager.WithWorldModel(wm), manager.WithAdvertised("Move"))
	require.NoError(t, err)
	b, err := manager.New("robot_b", lib, manager.WithWorldModel(wm))
	require.NoError(t, err)

	require.NoError(t, a.Register(ctx))
	require.NoError(t, b.Register(ctx))
	require.NoError(t, a.Register(ctx), "registering twice keeps one entry")

	agents, err := a.Agents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"robot_a", "robot_b"}, agents)

	stored, err := wm.Get(ctx, manager.SkillsKey("robot_a"))
	require.NoError(t, err)
	list, ok := stored.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "Move", list[0].(map[string]any)["type"])

	require.NoError(t, a.Shutdown(ctx))
	agents, err = b.Agents(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"robot_b"}, agents)
	_, err = wm.Get(ctx, manager.SkillsKey("robot_a"))
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)

	require.NoError(t, b.Shutdown(ctx))
}

func TestManager_ShutdownClosesSubscriptions(t *testing.T) {
	m, err := manager.New("robot", testutils.NewLibrary(t))
	require.NoError(t, err)
	events, cancel := m.Subscribe(1)

	require.NoError(t, m.Shutdown(context.Background()))
	_, open := <-events
	assert.False(t, open)
	cancel()
}
