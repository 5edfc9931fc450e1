package skill_test

import (
	"context"
	"testing"
	"time"

	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/skill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// poll ticks b until it leaves the running state.
func poll(t *testing.T, b domain.Behavior, sc *domain.SkillContext) domain.RunState {
	t.Helper()
	var st domain.RunState
	require.Eventually(t, func() bool {
		var err error
		st, err = b.Execute(context.Background(), sc)
		assert.NoError(t, err)
		sc.Node.Ticks++
		return st != domain.StateRunning
	}, 5*time.Second, 5*time.Millisecond)
	return st
}

func newContext(params domain.Params) *domain.SkillContext {
	n := &domain.Node{Label: "p", Params: params}
	return &domain.SkillContext{Node: n, Params: params}
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	t.Run("json output becomes params", func(t *testing.T) {
		p := &skill.Process{Command: "sh", Args: []string{"-c", `echo "{\"pose\": \"$SKIROS_PARAM_TARGET\"}"`}}
		sc := newContext(domain.Params{"target": "table"})
		require.NoError(t, p.OnStart(ctx, sc))
		assert.Equal(t, domain.StateSuccess, poll(t, p, sc))
		assert.Equal(t, "table", sc.Node.Params["pose"])
		p.OnEnd(ctx, sc)
	})

	t.Run("plain output", func(t *testing.T) {
		p := &skill.Process{Command: "sh", Args: []string{"-c", "echo $GREETING"}, Env: map[string]string{"GREETING": "hello"}}
		sc := newContext(domain.Params{})
		require.NoError(t, p.OnStart(ctx, sc))
		assert.Equal(t, domain.StateSuccess, poll(t, p, sc))
		assert.Equal(t, "hello", sc.Node.Params["output"])
	})

	t.Run("non-zero exit fails with stderr", func(t *testing.T) {
		p := &skill.Process{Command: "sh", Args: []string{"-c", "echo gripper jammed >&2; exit 3"}}
		sc := newContext(nil)
		require.NoError(t, p.OnStart(ctx, sc))
		assert.Equal(t, domain.StateFailure, poll(t, p, sc))
		assert.Equal(t, "gripper jammed", sc.Node.Progress.Message)
	})

	t.Run("preempt kills", func(t *testing.T) {
		p := &skill.Process{Command: "sleep", Args: []string{"30"}}
		sc := newContext(nil)
		require.NoError(t, p.OnStart(ctx, sc))
		st, err := p.Execute(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, domain.StateRunning, st)

		start := time.Now()
		assert.Equal(t, domain.StatePreempted, p.OnPreempt(ctx, sc))
		assert.Less(t, time.Since(start), 5*time.Second)
		p.OnEnd(ctx, sc)
	})

	t.Run("simulated does not run", func(t *testing.T) {
		p := &skill.Process{Command: "definitely-not-a-program"}
		sc := newContext(nil)
		sc.Simulated = true
		require.NoError(t, p.OnStart(ctx, sc))
		st, err := p.Execute(ctx, sc)
		require.NoError(t, err)
		assert.Equal(t, domain.StateSuccess, st)
	})

	t.Run("missing program", func(t *testing.T) {
		p := &skill.Process{Command: "definitely-not-a-program"}
		assert.Error(t, p.OnStart(ctx, newContext(nil)))
		assert.Error(t, (&skill.Process{}).OnStart(ctx, newContext(nil)))
	})
}

func TestProcess_Definition(t *testing.T) {
	defs, err := skill.Parse([]byte(`
skills:
  - type: Say
    behavior: process
    options:
      command: echo
      args: [hi]
`))
	require.NoError(t, err)
	lib := skill.NewLibrary()
	require.NoError(t, lib.Define(defs...))

	tmpl, err := lib.Resolve("Say")
	require.NoError(t, err)
	b, ok := tmpl.New().(*skill.Process)
	require.True(t, ok)
	assert.Equal(t, "echo", b.Command)
	assert.Equal(t, []string{"hi"}, b.Args)
}
