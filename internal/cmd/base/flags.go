package base

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
)

// FlagSet wraps a flag.FlagSet to render help text in the CLI's format.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f and silences its default usage output.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.Usage = func() {}
	f.SetOutput(new(bytes.Buffer))
	return &FlagSet{FlagSet: f}
}

// Help returns the options section of a command's help text.
func (f *FlagSet) Help() string {
	var out strings.Builder
	out.WriteString("Options:\n")

	f.VisitAll(func(fl *flag.Flag) {
		fmt.Fprintf(&out, "\n  -%s", fl.Name)
		if name, _ := flag.UnquoteUsage(fl); name != "" {
			fmt.Fprintf(&out, "=<%s>", name)
		}
		_, usage := flag.UnquoteUsage(fl)
		fmt.Fprintf(&out, "\n      %s", usage)
		if fl.DefValue != "" && fl.DefValue != "false" && fl.DefValue != "0" {
			fmt.Fprintf(&out, " (default: %s)", fl.DefValue)
		}
		out.WriteString("\n")
	})

	return strings.TrimRight(out.String(), "\n")
}
