package audit

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/compliance-forge/docuflow/internal/cmd/base"
	"github.com/compliance-forge/docuflow/internal/config"
	"github.com/compliance-forge/docuflow/internal/db"
	"github.com/compliance-forge/docuflow/internal/graph"
)

type CyclesCommand struct {
	*base.Command

	flagConfig string
}

func (c *CyclesCommand) Synopsis() string {
	return "Scan the dependency graph for cycles"
}

func (c *CyclesCommand) Help() string {
	return `Usage: docuflow audit cycles [options]

  Scans every active dependency edge and reports family-level cycles.
  A healthy system reports none, because cycle-creating edges are
  refused at insertion time; any finding indicates data introduced
  outside the application.` +
		c.Flags().Help()
}

func (c *CyclesCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("cycles", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the docuflow config file",
	)

	return f
}

func (c *CyclesCommand) Run(args []string) int {
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg := config.Default()
	if c.flagConfig != "" {
		var err error
		cfg, err = config.FromFile(c.flagConfig)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error parsing config file: %v", err))
			return 1
		}
	}

	database, err := db.New(cfg.DatabaseConfig(), c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}

	g := graph.New(database, c.Log)
	cycles, err := g.DetectCycles(context.Background())
	if err != nil {
		c.UI.Error(fmt.Sprintf("cycle detection failed: %v", err))
		return 1
	}

	if len(cycles) == 0 {
		c.UI.Info("No dependency cycles found")
		return 0
	}

	c.UI.Error(fmt.Sprintf("Found %d dependency cycle(s):", len(cycles)))
	for i, cycle := range cycles {
		c.UI.Error(fmt.Sprintf("  %d: %s", i+1, strings.Join(cycle, " -> ")))
	}
	return 1
}
