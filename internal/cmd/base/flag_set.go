package base

import (
	"flag"
	"fmt"
	"strings"
)

// FlagSet wraps flag.FlagSet with help rendering suited to subcommand
// Help() output.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet creates a new FlagSet.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help renders the flag block appended to a command's help text.
func (f *FlagSet) Help() string {
	var b strings.Builder
	b.WriteString("\n\nOptions:\n")
	f.VisitAll(func(fl *flag.Flag) {
		b.WriteString(fmt.Sprintf("  -%s\n", fl.Name))
		if fl.DefValue != "" && fl.DefValue != "false" {
			b.WriteString(fmt.Sprintf("      %s (default: %s)\n", fl.Usage, fl.DefValue))
		} else {
			b.WriteString(fmt.Sprintf("      %s\n", fl.Usage))
		}
	})
	return b.String()
}
