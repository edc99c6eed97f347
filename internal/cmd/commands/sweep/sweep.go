package sweep

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/compliance-forge/docuflow/internal/cmd/base"
	"github.com/compliance-forge/docuflow/internal/config"
	"github.com/compliance-forge/docuflow/internal/db"
	"github.com/compliance-forge/docuflow/internal/services"
	"github.com/compliance-forge/docuflow/pkg/notifications"
)

type Command struct {
	*base.Command

	flagConfig string
	flagAsOf   string
}

func (c *Command) Synopsis() string {
	return "Run one periodic review sweep"
}

func (c *Command) Help() string {
	return `Usage: docuflow sweep [options]

  Scans every effective document whose next review date has arrived and
  opens a review workflow for each. Running the sweep again on the same
  day opens nothing new. Document status is never changed.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("sweep", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the docuflow config file",
	)
	f.StringVar(
		&c.flagAsOf, "as-of", "",
		"Run the sweep as of this date instead of today. Accepts most date formats, e.g. 2026-03-01 or \"Mar 1, 2026\".",
	)

	return f
}

func (c *Command) Run(args []string) int {
	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	asOf := time.Now()
	if c.flagAsOf != "" {
		parsed, err := dateparse.ParseAny(c.flagAsOf)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error parsing -as-of date %q: %v", c.flagAsOf, err))
			return 1
		}
		asOf = parsed
	}

	cfg, err := loadConfig(c.flagConfig)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	database, err := db.New(cfg.DatabaseConfig(), c.Log)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}

	var notifier notifications.Notifier = notifications.Noop{}
	if pubCfg := cfg.PublisherConfig(); pubCfg != nil {
		publisher, err := notifications.NewPublisher(*pubCfg, c.Log)
		if err != nil {
			c.UI.Error(fmt.Sprintf("error creating notification publisher: %v", err))
			return 1
		}
		defer publisher.Close()
		notifier = publisher
	}

	svc := services.New(database, cfg.Registry(), c.Log, services.Options{
		Notifier:       notifier,
		ReviewInterval: cfg.ReviewInterval(),
	})

	result, err := svc.Sweep(context.Background(), asOf)
	if err != nil {
		c.UI.Error(fmt.Sprintf("sweep finished with errors: %v", err))
		if result == nil {
			return 1
		}
	}

	c.UI.Info(fmt.Sprintf("Scanned %d due documents as of %s",
		result.Scanned, asOf.Format("2006-01-02")))
	for _, id := range result.Opened {
		c.UI.Info(fmt.Sprintf("  opened review for %s", id))
	}
	if result.Skipped > 0 {
		c.UI.Info(fmt.Sprintf("Skipped %d documents with an active workflow", result.Skipped))
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}
	return cfg, nil
}
