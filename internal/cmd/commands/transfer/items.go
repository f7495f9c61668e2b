package transfer

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/base"
	"github.com/DemandBridge/environment-transfer-tool/pkg/chili"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
	engine "github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// ItemsCommand transfers items given on the command line.
type ItemsCommand struct {
	*base.Command

	flagConfig   string
	flagKind     string
	flagDestPath string
	flagReport   string
}

func (c *ItemsCommand) Synopsis() string {
	return "Transfer individual items by identifier"
}

func (c *ItemsCommand) Help() string {
	return `Usage: envtransfer items -config=<path> -kind=<kind> [options] <id>...

  Copies the given items of one kind from the source to the destination
  environment, ignoring the config file's plan blocks.

  Kinds: ` + kindNames() + `

` + c.Flags().Help()
}

func (c *ItemsCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("items", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the config file.",
	)
	f.StringVar(
		&c.flagKind, "kind", "", "Resource kind of the items, e.g. Documents.",
	)
	f.StringVar(
		&c.flagDestPath, "dest-path", "",
		"Destination folder. Mirrors the source folder when empty.",
	)
	f.StringVar(
		&c.flagReport, "report", "", "Write the transfer report as JSON to this path.",
	)

	return f
}

func (c *ItemsCommand) Run(args []string) int {
	logger, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	kind, err := resource.ParseKind(c.flagKind)
	if err != nil {
		ui.Error(fmt.Sprintf("invalid kind: %v", err))
		return 1
	}

	ids := dedupe(f.Args())
	if len(ids) == 0 {
		ui.Error("at least one item identifier is required")
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}

	opts := cfg.Options(nil)
	if c.flagDestPath != "" {
		opts.DestPath = resource.ExplicitPath(c.flagDestPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := chili.NewSession(cfg.SourceConfig(), logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error configuring source: %v", err))
		return 1
	}

	r, err := newRunner(cfg, src, logger)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	defer r.Close()

	exitCode := 0
	report, ok := r.transfer(ctx, ui, kind, ids, opts)
	if !ok {
		exitCode = 1
	}

	if c.flagReport != "" && report != nil {
		if err := writeReports(c.FS, c.flagReport, []*engine.Report{report}); err != nil {
			ui.Error(err.Error())
			return 1
		}
	}

	return exitCode
}
