// Package history implements the command that shows recorded transfer runs.
package history

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"

	"github.com/DemandBridge/environment-transfer-tool/internal/cmd/base"
	"github.com/DemandBridge/environment-transfer-tool/pkg/ledger"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

type Command struct {
	*base.Command

	flagConfig string
	flagRun    string
	flagLimit  int
	flagSince  string
	flagKind   string
	flagFormat string
}

func (c *Command) Synopsis() string {
	return "Show past transfer runs recorded in the ledger"
}

func (c *Command) Help() string {
	return `Usage: envtransfer history -config=<path> [options]

  Lists the most recent transfer runs recorded in the ledger configured by
  the config file's ledger block, or the items of a single run.

` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("history", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the config file.",
	)
	f.StringVar(
		&c.flagRun, "run", "", "Show the items of the run with this ID.",
	)
	f.IntVar(
		&c.flagLimit, "limit", 20, "Maximum number of runs to list. 0 lists all.",
	)
	f.StringVar(
		&c.flagSince, "since", "",
		"Only list runs started after this date (e.g. 2026-10-01, \"2026-10-01 14:00\") or this long ago (e.g. 24h).",
	)
	f.StringVar(
		&c.flagKind, "kind", "", "Only list runs of this resource kind.",
	)
	f.StringVar(
		&c.flagFormat, "format", base.FormatText,
		"Output format: text, json or yaml.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	if err := c.Flags().Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if !base.ValidFormat(c.flagFormat) {
		ui.Error(fmt.Sprintf("unsupported format %q", c.flagFormat))
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error loading config: %v", err))
		return 1
	}

	dbCfg, ok := cfg.DatabaseConfig()
	if !ok {
		ui.Error("config file has no ledger block")
		return 1
	}

	store, err := ledger.Open(dbCfg, logger)
	if err != nil {
		ui.Error(fmt.Sprintf("error opening ledger: %v", err))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("error closing ledger", "error", err)
		}
	}()

	ctx := context.Background()

	if c.flagRun != "" {
		id, err := uuid.Parse(c.flagRun)
		if err != nil {
			ui.Error(fmt.Sprintf("invalid run ID: %v", err))
			return 1
		}
		run, err := store.Run(ctx, id)
		if err != nil {
			ui.Error(fmt.Sprintf("error getting run: %v", err))
			return 1
		}
		return c.output(run, func() { c.printRun(run) })
	}

	filter := ledger.RunFilter{Limit: c.flagLimit}
	if c.flagSince != "" {
		if filter.Since, err = parseSince(c.flagSince, time.Now()); err != nil {
			ui.Error(fmt.Sprintf("invalid since: %v", err))
			return 1
		}
	}
	if c.flagKind != "" {
		if filter.Kind, err = resource.ParseKind(c.flagKind); err != nil {
			ui.Error(fmt.Sprintf("invalid kind: %v", err))
			return 1
		}
	}

	runs, err := store.ListRuns(ctx, filter)
	if err != nil {
		ui.Error(fmt.Sprintf("error listing runs: %v", err))
		return 1
	}
	return c.output(runs, func() { c.printRuns(runs) })
}

// parseSince accepts a duration before now or a date in any common layout,
// read in the local time zone.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	return dateparse.ParseLocal(s)
}

// output encodes v unless text output was asked for, in which case text is
// called.
func (c *Command) output(v interface{}, text func()) int {
	if strings.EqualFold(c.flagFormat, base.FormatText) {
		text()
		return 0
	}

	out, err := base.Encode(c.flagFormat, v)
	if err != nil {
		c.UI.Error(fmt.Sprintf("error encoding output: %v", err))
		return 1
	}
	c.UI.Output(out)
	return 0
}

func (c *Command) printRuns(runs []ledger.Run) {
	if len(runs) == 0 {
		c.UI.Output("No runs recorded.")
		return
	}
	for _, r := range runs {
		c.UI.Output(fmt.Sprintf("%s  %s  %-24s %s -> %s  %s",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Kind,
			r.Source, r.Destination, counts(r)))
	}
}

func (c *Command) printRun(r *ledger.Run) {
	c.UI.Output(fmt.Sprintf("Run %s: %s from %s to %s", r.ID, r.Kind, r.Source, r.Destination))
	c.UI.Output(fmt.Sprintf("Started:  %s", r.StartedAt.Local().Format(time.DateTime)))
	if r.Finished() {
		c.UI.Output(fmt.Sprintf("Finished: %s", r.FinishedAt.Local().Format(time.DateTime)))
	} else {
		c.UI.Output("Finished: never")
	}
	c.UI.Output(fmt.Sprintf("Requested %d item(s), %s", r.Requested, counts(*r)))

	for _, it := range r.Items {
		line := fmt.Sprintf("  %-8s %-24s %s", it.Status, it.Kind, it.ItemID)
		if it.Name != "" {
			line += fmt.Sprintf(" (%s)", it.Name)
		}
		if it.ParentID != "" {
			line += fmt.Sprintf(" for %s/%s", it.ParentKind, it.ParentID)
		}
		if it.Error != "" {
			line += ": " + it.Error
		}
		c.UI.Output(line)
	}
}

func counts(r ledger.Run) string {
	if !r.Finished() {
		return "unfinished"
	}
	return fmt.Sprintf("%d migrated, %d existed, %d skipped, %d failed",
		r.Migrated, r.Existing, r.Skipped, r.Failed)
}
