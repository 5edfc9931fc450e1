package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version of the skill manager.
const Version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of skillmgr",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "skillmgr version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
