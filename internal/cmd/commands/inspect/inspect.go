// Package inspect implements the command that lists the dependencies of a
// document file without contacting any environment.
package inspect

import (
	"flag"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/base"
	"github.com/DemandBridge/environment-transfer-tool/pkg/document"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

type Command struct {
	*base.Command

	flagFormat string
}

type inspection struct {
	Name         string          `json:"name" yaml:"name"`
	ID           string          `json:"id" yaml:"id"`
	Frames       int             `json:"frames" yaml:"frames"`
	Fonts        int             `json:"fonts" yaml:"fonts"`
	Dependencies []resource.Unit `json:"dependencies" yaml:"dependencies"`
}

func (c *Command) Synopsis() string {
	return "List the resources a document XML file depends on"
}

func (c *Command) Help() string {
	return `Usage: envtransfer inspect [options] <file.xml>

  Parses a document exported from an environment and prints the items that
  must exist on a destination before the document can be transferred, in
  the order they would be transferred.

` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("inspect", flag.ContinueOnError))

	f.StringVar(
		&c.flagFormat, "format", base.FormatText,
		"Output format: text, json or yaml.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if !base.ValidFormat(c.flagFormat) {
		ui.Error(fmt.Sprintf("unsupported format %q", c.flagFormat))
		return 1
	}
	if f.NArg() != 1 {
		ui.Error("expected exactly one document file")
		return 1
	}
	path := f.Arg(0)

	src, err := afero.ReadFile(c.FS, path)
	if err != nil {
		ui.Error(fmt.Sprintf("error reading document: %v", err))
		return 1
	}

	doc, err := document.Parse(string(src))
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing %s: %v", path, err))
		return 1
	}
	logger.Debug("parsed document", "id", doc.ID(), "name", doc.Name())

	result := inspection{
		Name:         doc.Name(),
		ID:           doc.ID(),
		Frames:       len(doc.Frames(document.AnyFrame)),
		Fonts:        len(doc.Fonts()),
		Dependencies: doc.Dependencies().Units(),
	}

	if !strings.EqualFold(c.flagFormat, base.FormatText) {
		out, err := base.Encode(c.flagFormat, result)
		if err != nil {
			ui.Error(fmt.Sprintf("error encoding output: %v", err))
			return 1
		}
		ui.Output(out)
		return 0
	}

	ui.Output(fmt.Sprintf("Document %s (%s): %d frame(s), %d font(s)",
		result.Name, result.ID, result.Frames, result.Fonts))
	if len(result.Dependencies) == 0 {
		ui.Output("No dependencies.")
		return 0
	}
	for _, u := range result.Dependencies {
		ui.Output(fmt.Sprintf("  %-24s %s", u.Kind, u.ID))
	}
	return 0
}
