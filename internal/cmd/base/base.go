// Package base holds what every CLI command shares.
package base

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"
)

// Command is embedded by every command.
type Command struct {
	Log hclog.Logger
	UI  cli.Ui

	// FS is where config files, documents and reports are read and written.
	FS afero.Fs
}

// NewCommand returns a Command working on the OS filesystem.
func NewCommand(log hclog.Logger, ui cli.Ui) *Command {
	return &Command{
		Log: log,
		UI:  ui,
		FS:  afero.NewOsFs(),
	}
}

// SetLogLevel changes the level of the command logger. Unknown levels are
// ignored.
func (c *Command) SetLogLevel(level string) {
	if l := hclog.LevelFromString(level); l != hclog.NoLevel {
		c.Log.SetLevel(l)
	}
}
