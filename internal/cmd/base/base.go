// Package base carries the shared state every CLI command embeds: the
// terminal UI and the process logger.
package base

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by all commands.
type Command struct {
	// UI is used for command output.
	UI cli.Ui

	// Log is the process logger.
	Log hclog.Logger
}

// NewCommand returns a base command with the given UI and logger.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{UI: ui, Log: log}
}
