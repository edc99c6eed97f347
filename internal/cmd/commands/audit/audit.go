package audit

import (
	"github.com/mitchellh/cli"

	"github.com/compliance-forge/docuflow/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Run system-health audits"
}

func (c *Command) Help() string {
	return `Usage: docuflow audit <subcommand> [options]

  This command groups the system-health audits.`
}

func (c *Command) Run(args []string) int {
	return cli.RunResultHelp
}
