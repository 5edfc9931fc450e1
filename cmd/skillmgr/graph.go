package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UTNuclearRobotics/skiros2/internal/presentation/graph"
	"github.com/UTNuclearRobotics/skiros2/pkg/task"
	"github.com/UTNuclearRobotics/skiros2/pkg/visitor"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <task.yaml>",
	Short: "Export the task tree visualization",
	Long:  `Builds the task in the file without running it and outputs a Mermaid diagram (graph TD) of its tree.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		lib, err := loadLibrary(cfg)
		if err != nil {
			return err
		}
		seq, err := task.LoadSequence(args[0])
		if err != nil {
			return err
		}
		tree, err := task.NewBuilder(lib).Build(seq)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(visitor.Describe(tree.Root, false)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
