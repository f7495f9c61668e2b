package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/DemandBridge/environment-transfer-tool/internal/config"
	"github.com/DemandBridge/environment-transfer-tool/pkg/chili"
	"github.com/DemandBridge/environment-transfer-tool/pkg/ledger"
	"github.com/DemandBridge/environment-transfer-tool/pkg/notify"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
	engine "github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// runner owns the environments, engine, ledger and notifier of one command
// run.
type runner struct {
	src      *chili.Session
	dst      *chili.Session
	engine   *engine.Engine
	store    *ledger.Store
	notifier *notify.Notifier
	logger   hclog.Logger
}

func newRunner(cfg *config.Config, src *chili.Session, logger hclog.Logger) (*runner, error) {
	dst, err := chili.NewSession(cfg.DestinationConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("error configuring destination: %w", err)
	}

	r := &runner{
		src:      src,
		dst:      dst,
		notifier: notify.New(cfg.Notify, logger),
		logger:   logger,
	}

	engineCfg := cfg.EngineConfig(logger)
	if dbCfg, ok := cfg.DatabaseConfig(); ok {
		store, err := ledger.Open(dbCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("error opening ledger: %w", err)
		}
		r.store = store
		engineCfg.Recorder = store
	}

	e, err := engine.New(engineCfg, src, dst)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.engine = e

	return r, nil
}

func (r *runner) Close() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("error closing ledger", "error", err)
		}
	}
}

// transfer runs one batch and prints its summary. The returned bool is false
// when the batch aborted or any item failed.
func (r *runner) transfer(ctx context.Context, ui cli.Ui, kind resource.Kind, ids []string, opts engine.Options) (*engine.Report, bool) {
	ui.Info(fmt.Sprintf("Transferring %d %s from %s to %s (destination path: %s)",
		len(ids), kind, r.src.Name(), r.dst.Name(), opts.DestPath))

	report, err := r.engine.Transfer(ctx, kind, ids, opts)
	if report != nil {
		printSummary(ui, report)
		r.notify(ctx, report, err)
	}
	if err != nil {
		ui.Error(fmt.Sprintf("%s transfer aborted: %v", kind, err))
		return report, false
	}
	return report, len(report.Failed()) == 0
}

// notify reports a finished batch to the configured backends. It still runs
// when ctx was cancelled.
func (r *runner) notify(ctx context.Context, report *engine.Report, runErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := r.notifier.Notify(ctx, notify.FromReport(report, runErr)); err != nil {
		r.logger.Warn("error sending run notification", "error", err)
	}
}

func printSummary(ui cli.Ui, report *engine.Report) {
	counts := report.Counts()
	ui.Output(fmt.Sprintf("%s: %d migrated, %d already existed, %d skipped, %d failed",
		report.Run.Kind,
		counts[engine.StatusMigrated],
		counts[engine.StatusExists],
		counts[engine.StatusSkipped],
		counts[engine.StatusFailed]))

	for _, o := range report.Failed() {
		line := fmt.Sprintf("  failed %s", o.Unit)
		if o.Parent != nil {
			line += fmt.Sprintf(" (needed by %s)", o.Parent)
		}
		if o.Message != "" {
			line += ": " + o.Message
		}
		ui.Error(line)
	}
}

func writeReports(fs afero.Fs, path string, reports []*engine.Report) error {
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return nil
}

// dedupe drops empty and repeated identifiers, keeping the first occurrence.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func kindNames() string {
	names := make([]string, 0, len(resource.Kinds))
	for _, k := range resource.Kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
