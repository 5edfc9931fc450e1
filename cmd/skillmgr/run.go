package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/UTNuclearRobotics/skiros2/internal/presentation/tui"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
	"github.com/UTNuclearRobotics/skiros2/pkg/task"
	"github.com/UTNuclearRobotics/skiros2/pkg/worldmodel"
)

var runCmd = &cobra.Command{
	Use:   "run <task.yaml>",
	Short: "Run a task locally",
	Long: `Builds the skill sequence in the task file and runs it until it finishes.
Interrupting the command preempts the task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		seq, err := task.LoadSequence(args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		printOnly, _ := flags.GetBool("print")
		simulate, _ := flags.GetBool("simulate")
		optimize, _ := flags.GetBool("optimize")
		tickOnce, _ := flags.GetBool("tick-once")
		dryRun, _ := flags.GetBool("dry-run")
		tracked, _ := flags.GetStringSlice("track")
		if printOnly && (simulate || optimize) {
			return errors.New("--print cannot be combined with --simulate or --optimize")
		}

		rt, err := newStack(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = rt.Close(context.Background()) }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		events, cancel := rt.manager.Subscribe(manager.DefaultSubscriberBuffer)
		defer cancel()

		id, err := rt.manager.AddTask(seq)
		if err != nil {
			return err
		}

		switch {
		case printOnly:
			err = rt.manager.PrintTask(id)
		case dryRun:
			err = rt.manager.SimulateTask(id)
		case optimize:
			err = rt.manager.ExecuteOptimal(ctx, id)
		case tickOnce:
			res := rt.manager.Command(ctx, manager.Command{
				Action: manager.ActionTickOnce, ExecutionID: id, Simulate: simulate, Track: tracked,
			})
			if !res.OK {
				err = errors.New(res.Error)
			}
		default:
			err = rt.manager.ExecuteTask(id, simulate, tracked...)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderer := newRenderer(out, cfg.Debug)
		last, err := follow(ctx, rt.manager, id, events, renderer, out, tickOnce || printOnly)
		if err != nil {
			return err
		}
		if printOnly {
			// Printing leaves every node untouched, so the task never ends
			// on its own.
			return rt.manager.PreemptTask(context.Background(), id)
		}
		if sim := rt.manager.Simulator(); dryRun && sim != nil {
			printEffects(out, sim.Effects())
		}
		if root, ok := last.Snapshot.Root(); ok {
			fmt.Fprintf(out, "task %d finished: %s\n", id, renderer.State(root.State))
			if root.State.Terminal() && root.State != domain.StateSuccess {
				return fmt.Errorf("task %d: %s", id, root.State)
			}
		}
		return nil
	},
}

// follow renders the progress of id until it finishes. An interrupt
// preempts the task and keeps following until the preemption is reported.
// With once set, the first event ends the wait.
func follow(ctx context.Context, m *manager.Manager, id int, events <-chan domain.ProgressEvent,
	r *tui.Renderer, out io.Writer, once bool) (domain.ProgressEvent, error) {
	var last domain.ProgressEvent
	interrupted := ctx.Done()
	for {
		select {
		case <-interrupted:
			interrupted = nil
			fmt.Fprintln(out, "interrupted, preempting task")
			if err := m.PreemptTask(context.Background(), id); err != nil {
				return last, err
			}
			if ev, err := m.Progress(id); err == nil {
				return ev, nil
			}
			return last, context.Canceled
		case ev, ok := <-events:
			if !ok {
				return last, errors.New("progress stream closed")
			}
			if ev.TaskID != id {
				continue
			}
			last = ev
			if err := r.Write(out, ev); err != nil {
				return last, err
			}
			if ev.Done() || once {
				return last, nil
			}
		}
	}
}

func printEffects(out io.Writer, effects []worldmodel.Effect) {
	if len(effects) == 0 {
		fmt.Fprintln(out, "simulation left the world model unchanged")
		return
	}
	fmt.Fprintln(out, "simulated world model changes:")
	for _, e := range effects {
		if e.Deleted {
			fmt.Fprintf(out, "  %s deleted\n", e.Key)
			continue
		}
		fmt.Fprintf(out, "  %s = %v\n", e.Key, e.Value)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	f := runCmd.Flags()
	f.BoolP("print", "p", false, "Only print the task tree")
	f.BoolP("simulate", "s", false, "Run the skills in simulation mode")
	f.Bool("dry-run", false, "Run on a throwaway copy of the world model and list the changes")
	f.BoolP("optimize", "o", false, "Reorder the task for the lowest cost before running it")
	f.Bool("tick-once", false, "Tick the task a single time")
	f.StringSlice("track", nil, "Skill parameters to trace, as label or label.key")
}
