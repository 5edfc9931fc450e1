package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/UTNuclearRobotics/skiros2/internal/presentation/tui"
	skhttp "github.com/UTNuclearRobotics/skiros2/pkg/adapters/http"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
	"github.com/UTNuclearRobotics/skiros2/pkg/task"
)

var execCmd = &cobra.Command{
	Use:   "exec <task.yaml>",
	Short: "Run a task on a skill manager server",
	Long: `Sends the skill sequence in the task file to a running skill manager and
follows its progress. Interrupting the command preempts the remote task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		simulate, _ := cmd.Flags().GetBool("simulate")
		debug, _ := cmd.Flags().GetBool("debug")

		seq, err := task.LoadSequence(args[0])
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := skhttp.NewClient(server)
		events, err := client.Watch(ctx)
		if err != nil {
			return err
		}
		start := manager.NewCommand(manager.ActionStart, seq...)
		start.Simulate = simulate
		res, err := client.Command(ctx, start)
		if err != nil {
			return err
		}
		id := res.ExecutionID

		out := cmd.OutOrStdout()
		renderer := newRenderer(out, debug)
		fmt.Fprintf(out, "started task %d on %s\n", id, server)
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(out, "interrupted, preempting task")
				return client.Preempt(context.Background(), id)
			case ev, ok := <-events:
				if !ok {
					// The task may have finished before the monitor saw it.
					final, err := client.Wait(context.Background(), id)
					if err != nil {
						return err
					}
					return report(out, renderer, id, final[id])
				}
				if ev.TaskID != id {
					continue
				}
				if err := renderer.Write(out, ev); err != nil {
					return err
				}
				if ev.Done() {
					return report(out, renderer, id, ev)
				}
			}
		}
	},
}

func report(out io.Writer, r *tui.Renderer, id int, ev domain.ProgressEvent) error {
	root, ok := ev.Snapshot.Root()
	if !ok {
		return fmt.Errorf("task %d: no progress", id)
	}
	fmt.Fprintf(out, "task %d finished: %s\n", id, r.State(root.State))
	if root.State != domain.StateSuccess {
		return fmt.Errorf("task %d: %s", id, root.State)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().String("server", "http://localhost:8080", "URL of the skill manager")
	execCmd.Flags().BoolP("simulate", "s", false, "Run the skills in simulation mode")
}
