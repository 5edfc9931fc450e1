package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UTNuclearRobotics/skiros2/internal/testutils"
)

// resetFlags clears the flag values left behind by an earlier Execute.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "skillmgr version "+Version+"\n", out)
}

func TestGraph(t *testing.T) {
	lib := writeFile(t, "skills.yaml", testutils.LibraryYAML)
	taskFile := writeFile(t, "task.yaml", "skills:\n  - type: Fallback\n    children:\n      - type: Fail\n      - type: Move\n")

	out, err := execute(t, "graph", "--library", lib, taskFile)
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD\n")
	assert.Contains(t, out, `{"Fallback"}`)
	assert.Contains(t, out, `["Move"]`)
}

func TestSkills(t *testing.T) {
	lib := writeFile(t, "skills.yaml", testutils.LibraryYAML)

	out, err := execute(t, "skills", "--library", lib)
	require.NoError(t, err)
	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "Grasp")
	assert.Contains(t, out, "Selector")
}

func TestRun(t *testing.T) {
	lib := writeFile(t, "skills.yaml", testutils.LibraryYAML)

	t.Run("Success", func(t *testing.T) {
		taskFile := writeFile(t, "task.yaml", "skills:\n  - type: Noop\n  - type: Move\n")
		out, err := execute(t, "run", "--library", lib, "--tick-rate", "500", taskFile)
		require.NoError(t, err)
		assert.Contains(t, out, "Move [Success]")
		assert.Contains(t, out, "task 0 finished: Success")
	})

	t.Run("Failure", func(t *testing.T) {
		taskFile := writeFile(t, "task.yaml", "skills:\n  - type: Fail\n")
		out, err := execute(t, "run", "--library", lib, "--tick-rate", "500", taskFile)
		require.Error(t, err)
		assert.Contains(t, out, "unreachable")
	})

	t.Run("DryRun", func(t *testing.T) {
		taskFile := writeFile(t, "task.yaml", "skills:\n  - type: Set\n    params: {key: door, value: open}\n")
		out, err := execute(t, "run", "--library", lib, "--tick-rate", "500", "--dry-run", taskFile)
		require.NoError(t, err)
		assert.Contains(t, out, "door = open")
	})

	t.Run("PrintReturns", func(t *testing.T) {
		taskFile := writeFile(t, "task.yaml", "skills:\n  - type: Noop\n  - type: Move\n")
		type result struct {
			out string
			err error
		}
		done := make(chan result, 1)
		go func() {
			out, err := execute(t, "run", "--library", lib, "--tick-rate", "500", "--print", taskFile)
			done <- result{out, err}
		}()

		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.Contains(t, r.out, "Move [Idle]")
			assert.NotContains(t, r.out, "finished")
		case <-time.After(3 * time.Second):
			t.Fatal("run --print did not return")
		}
	})

	t.Run("MissingLibrary", func(t *testing.T) {
		taskFile := writeFile(t, "task.yaml", "skills:\n  - type: Noop\n")
		_, err := execute(t, "run", "--library", filepath.Join(t.TempDir(), "none.yaml"), taskFile)
		assert.Error(t, err)
	})
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	cfgFile := writeFile(t, "skillmgr.yaml", "agent: arm\ntick_rate: 10\n")
	resetFlags(rootCmd)
	require.NoError(t, rootCmd.ParseFlags([]string{"--config", cfgFile, "--tick-rate", "40", "--prefix", "lab"}))
	t.Cleanup(func() { resetFlags(rootCmd) })

	cfg, err := loadConfig(rootCmd)
	require.NoError(t, err)
	assert.Equal(t, "lab:arm", cfg.AgentName())
	assert.Equal(t, 40.0, cfg.TickRate)
}
