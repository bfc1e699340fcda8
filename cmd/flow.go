package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/patabrava/nality-sub002/internal/flow"
	"github.com/patabrava/nality-sub002/internal/model"
)

// flowDump is the YAML shape of the questionnaire graph, used by the web
// front end team and for reviewing wording changes.
type flowDump struct {
	Paths map[model.Path][]model.Step `yaml:"paths"`
}

var flowCmd = &cobra.Command{
	Use:   "flow",
	Short: "Dump the questionnaire graph as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		dump := flowDump{Paths: map[model.Path][]model.Step{}}
		for _, p := range []model.Path{model.PathA, model.PathB, model.PathC} {
			dump.Paths[p] = flow.PathSteps(p)
		}

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(dump); err != nil {
			return eris.Wrap(err, "encode flow dump")
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(flowCmd)
}
