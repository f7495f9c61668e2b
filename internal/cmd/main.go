package cmd

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/DemandBridge/environment-transfer-tool/internal/version"
)

// Main runs envtransfer with os-style arguments and returns the exit code.
func Main(args []string) int {
	name := filepath.Base(args[0])

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.Info,
		Output: os.Stderr,
	})

	// -v and -version print the same as the version command.
	rest := args[1:]
	if len(rest) == 1 && (rest[0] == "-v" || rest[0] == "-version") {
		rest = []string{"version"}
	}

	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}

	app := &cli.CLI{
		Name:     name,
		Args:     rest,
		Version:  version.GetVersion(),
		Commands: commands(logger, ui),
	}

	code, err := app.Run()
	if err != nil {
		logger.Error("failed to run command", "args", rest, "error", err)
		return 1
	}
	return code
}
