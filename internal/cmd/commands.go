package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/compliance-forge/docuflow/internal/cmd/base"
	"github.com/compliance-forge/docuflow/internal/cmd/commands/audit"
	"github.com/compliance-forge/docuflow/internal/cmd/commands/operator"
	"github.com/compliance-forge/docuflow/internal/cmd/commands/sweep"
	"github.com/compliance-forge/docuflow/internal/version"
)

// Commands is the mapping of all available CLI commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	baseCommand := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"sweep": func() (cli.Command, error) {
			return &sweep.Command{Command: baseCommand}, nil
		},
		"audit": func() (cli.Command, error) {
			return &audit.Command{Command: baseCommand}, nil
		},
		"audit cycles": func() (cli.Command, error) {
			return &audit.CyclesCommand{Command: baseCommand}, nil
		},
		"operator": func() (cli.Command, error) {
			return &operator.Command{Command: baseCommand}, nil
		},
		"operator db-stats": func() (cli.Command, error) {
			return &operator.DBStatsCommand{Command: baseCommand}, nil
		},
		"version": func() (cli.Command, error) {
			return &versionCommand{ui: ui}, nil
		},
	}
}

type versionCommand struct {
	ui cli.Ui
}

func (c *versionCommand) Synopsis() string { return "Print the docuflow version" }

func (c *versionCommand) Help() string { return "Usage: docuflow version" }

func (c *versionCommand) Run(args []string) int {
	c.ui.Output(version.Version)
	return 0
}
