package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	skhttp "github.com/UTNuclearRobotics/skiros2/pkg/adapters/http"
	"github.com/UTNuclearRobotics/skiros2/pkg/manager"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List the skills an agent offers",
	Long: `Lists the skills of the configured library, or of a running skill
manager when --server is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if server, _ := cmd.Flags().GetString("server"); server != "" {
			resp, err := skhttp.NewClient(server).Skills(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "agent %s\n", resp.Agent)
			return printSkills(out, resp.Skills)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		lib, err := loadLibrary(cfg)
		if err != nil {
			return err
		}
		if err := lib.Advertise(cfg.Advertised()...); err != nil {
			return err
		}
		templates := lib.Available()
		skills := make([]map[string]any, 0, len(templates))
		for _, t := range templates {
			skills = append(skills, manager.Describe(t))
		}
		return printSkills(out, skills)
	},
}

func printSkills(out io.Writer, skills []map[string]any) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOMPOSITION\tCOST\tDESCRIPTION")
	for _, s := range skills {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\n", s["type"], s["composition"], s["cost"], s["description"])
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(skillsCmd)
	skillsCmd.Flags().String("server", "", "URL of a running skill manager")
}
