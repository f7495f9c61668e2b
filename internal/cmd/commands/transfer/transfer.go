// Package transfer implements the commands that copy resources between
// environments.
package transfer

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/base"
	"github.com/DemandBridge/environment-transfer-tool/internal/config"
	"github.com/DemandBridge/environment-transfer-tool/pkg/chili"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
	engine "github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// Command transfers the items of every plan in the config file.
type Command struct {
	*base.Command

	flagConfig string
	flagDryRun bool
	flagReport string
}

// planItems is the resolved identifier list of one plan block.
type planItems struct {
	plan *config.Plan
	kind resource.Kind
	ids  []string
}

func (c *Command) Synopsis() string {
	return "Transfer the items named by the config file's plans"
}

func (c *Command) Help() string {
	return `Usage: envtransfer transfer -config=<path> [options]

  Lists the items of every plan block on the source environment and copies
  them to the destination environment, one plan at a time in the order they
  are declared. Documents bring their data source, fonts, assets, dynamic
  asset providers and barcode types along.

  The exit code is 1 when any item could not be transferred.

` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("transfer", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the config file.",
	)
	f.BoolVar(
		&c.flagDryRun, "dry-run", false,
		"List the items the plans resolve to without transferring them.",
	)
	f.StringVar(
		&c.flagReport, "report", "", "Write the transfer reports as JSON to this path.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	if err := c.Flags().Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}
	if len(cfg.Plans) == 0 {
		ui.Error("config file has no plan blocks")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := chili.NewSession(cfg.SourceConfig(), logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error configuring source: %v", err))
		return 1
	}

	// Phase 1: resolve every plan before anything is written.
	plans, err := c.resolve(ctx, cfg, src)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}

	total := 0
	for _, p := range plans {
		ui.Output(fmt.Sprintf("%-30s %d item(s)", p.kind, len(p.ids)))
		total += len(p.ids)
	}
	ui.Output(fmt.Sprintf("%-30s %d item(s)", "Total", total))

	if c.flagDryRun {
		ui.Info("Dry run, nothing was transferred.")
		return 0
	}
	if total == 0 {
		ui.Info("No items to transfer.")
		return 0
	}

	// Phase 2: transfer plan by plan.
	r, err := newRunner(cfg, src, logger)
	if err != nil {
		ui.Error(err.Error())
		return 1
	}
	defer r.Close()

	exitCode := 0
	var reports []*engine.Report
	for _, p := range plans {
		if len(p.ids) == 0 {
			continue
		}

		report, ok := r.transfer(ctx, ui, p.kind, p.ids, cfg.Options(p.plan))
		if report != nil {
			reports = append(reports, report)
		}
		if !ok {
			exitCode = 1
		}
		if ctx.Err() != nil {
			ui.Error("interrupted, remaining plans were not transferred")
			break
		}
	}

	if c.flagReport != "" {
		if err := writeReports(c.FS, c.flagReport, reports); err != nil {
			ui.Error(err.Error())
			return 1
		}
		ui.Info(fmt.Sprintf("Report written to %s", c.flagReport))
	}

	return exitCode
}

// resolve lists the identifiers of every plan on the source environment.
func (c *Command) resolve(ctx context.Context, cfg *config.Config, src *chili.Session) ([]planItems, error) {
	var client *chili.Client

	plans := make([]planItems, 0, len(cfg.Plans))
	for i := range cfg.Plans {
		plan := &cfg.Plans[i]
		kind := plan.ResourceKind()
		ids := append([]string(nil), plan.IDs...)

		for _, folder := range plan.Folders {
			if client == nil {
				var err error
				if client, err = src.NewClient(ctx); err != nil {
					return nil, fmt.Errorf("error connecting to source %s: %w", src.Name(), err)
				}
			}

			found, err := client.SearchIDs(ctx, kind, folder, *plan.IncludeSubdirectories)
			if err != nil {
				return nil, fmt.Errorf("error listing %s in folder %q: %w", kind, folder, err)
			}
			c.Log.Debug("listed folder", "kind", kind, "folder", folder, "items", len(found))
			ids = append(ids, found...)
		}

		plans = append(plans, planItems{plan: plan, kind: kind, ids: dedupe(ids)})
	}
	return plans, nil
}
