package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/base"
	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/commands/history"
	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/commands/inspect"
	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/commands/transfer"
	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/commands/version"
)

// commands returns the envtransfer subcommands. They share one logger, UI
// and filesystem.
func commands(logger hclog.Logger, ui cli.Ui) map[string]cli.CommandFactory {
	b := base.NewCommand(logger, ui)

	return map[string]cli.CommandFactory{
		"transfer": func() (cli.Command, error) {
			return &transfer.Command{Command: b}, nil
		},
		"items": func() (cli.Command, error) {
			return &transfer.ItemsCommand{Command: b}, nil
		},
		"inspect": func() (cli.Command, error) {
			return &inspect.Command{Command: b}, nil
		},
		"history": func() (cli.Command, error) {
			return &history.Command{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
