package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// Engine replicates items from a source to a destination environment.
type Engine struct {
	cfg    Config
	src    Environment
	dst    Environment
	logger hclog.Logger
}

// New creates an Engine.
func New(cfg Config, src, dst Environment) (*Engine, error) {
	if src == nil || dst == nil {
		return nil, errors.New("source and destination environments are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Engine{
		cfg:    cfg,
		src:    src,
		dst:    dst,
		logger: logger.Named("transfer"),
	}, nil
}

// Transfer replicates the items of one kind, in order. Dependencies of
// documents are transferred first and appear in the report too.
//
// The returned error is non-nil only when the batch could not run at all:
// the source could not be reached, preview generation could not be disabled,
// or ctx was cancelled. Per-item failures are in the report; see Report.Err.
func (e *Engine) Transfer(ctx context.Context, kind resource.Kind, ids []string, opts Options) (*Report, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}

	report := &Report{
		Run: RunInfo{
			ID:          uuid.New(),
			Kind:        kind,
			Source:      e.src.Name(),
			Destination: e.dst.Name(),
			Items:       len(ids),
			StartedAt:   time.Now(),
		},
	}
	if len(ids) == 0 {
		return report, nil
	}

	logger := e.logger.With("run", report.Run.ID.String())
	logger.Info("starting transfer",
		"kind", kind,
		"items", len(ids),
		"source", e.src.Name(),
		"dest", e.dst.Name(),
		"dest_path", opts.DestPath.String())

	src, err := e.src.Connect(ctx)
	if err != nil {
		return report, fmt.Errorf("error connecting to source %s: %w", e.src.Name(), err)
	}

	if opts.DisablePreviews {
		if err := e.disablePreviews(ctx); err != nil {
			logger.Error("skipping complete transfer", "error", err)
			return report, err
		}
	}

	if e.cfg.Recorder != nil {
		if err := e.cfg.Recorder.Begin(ctx, report.Run); err != nil {
			logger.Warn("failed to record run start", "error", err)
		}
	}

	b := &batch{
		engine:    e,
		src:       src,
		opts:      opts,
		report:    report,
		logger:    logger,
		attempted: make(map[resource.Unit]bool),
	}
	b.run(ctx, kind, ids, nil)

	counts := report.Counts()
	logger.Info("transfer finished",
		"kind", kind,
		"migrated", counts[StatusMigrated],
		"exists", counts[StatusExists],
		"skipped", counts[StatusSkipped],
		"failed", counts[StatusFailed])

	if e.cfg.Recorder != nil {
		if err := e.cfg.Recorder.Finish(ctx, report.Run, report); err != nil {
			logger.Warn("failed to record run end", "error", err)
		}
	}

	return report, ctx.Err()
}

func (e *Engine) disablePreviews(ctx context.Context) error {
	dst, err := e.dst.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPreviewToggle, err)
	}
	if err := dst.SetPreviewGeneration(ctx, false); err != nil {
		return fmt.Errorf("%w: %v", ErrPreviewToggle, err)
	}
	return nil
}

// batch is the state shared by a top-level Transfer call and the dependency
// transfers it starts.
type batch struct {
	engine *Engine
	src    API
	opts   Options
	report *Report
	logger hclog.Logger

	// attempted holds every unit already handled in this batch, so shared or
	// repeated dependencies are transferred once.
	attempted map[resource.Unit]bool
}

func (b *batch) run(ctx context.Context, kind resource.Kind, ids []string, parent *resource.Unit) {
	b.logger.Info("transferring items", "kind", kind, "count", len(ids))

	for i, id := range ids {
		if ctx.Err() != nil {
			return
		}

		unit := resource.Unit{Kind: kind, ID: id}
		if b.attempted[unit] {
			b.logger.Debug("item already handled in this batch", "kind", kind, "id", id)
			continue
		}
		b.attempted[unit] = true

		b.logger.Info("transferring item", "kind", kind, "id", id, "index", i)
		b.item(ctx, unit, parent)

		if err := wait(ctx, b.engine.cfg.ItemInterval); err != nil {
			return
		}
	}
}

// item transfers one unit and records its outcome.
func (b *batch) item(ctx context.Context, unit resource.Unit, parent *resource.Unit) {
	started := time.Now()
	out := Outcome{Unit: unit, Parent: parent}
	defer func() {
		out.Duration = time.Since(started)
		b.record(ctx, out)
	}()

	dst, err := b.engine.dst.Connect(ctx)
	if err != nil {
		out.fail(StatusFailed, fmt.Errorf("error connecting to destination: %w", err))
		return
	}

	def, err := b.src.GetDefinition(ctx, unit.Kind, unit.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			out.fail(StatusSkipped, fmt.Errorf("not found on source %s: %w", b.engine.src.Name(), err))
		} else {
			out.fail(StatusFailed, fmt.Errorf("error getting definition: %w", err))
		}
		return
	}
	out.Name = def.Name

	folder, fileName, err := resource.Derive(def, b.opts.DestPath)
	if err != nil {
		out.fail(StatusFailed, err)
		return
	}

	b.logger.Debug("reserving identifier on destination", "kind", unit.Kind, "id", unit.ID)
	reserved, err := dst.ReserveID(ctx, unit.Kind, unit.ID)
	if err != nil {
		out.fail(StatusFailed, fmt.Errorf("error reserving identifier: %w", err))
		return
	}
	if !reserved {
		out.fail(StatusExists, ErrAlreadyExists)
		return
	}

	item := &itemTransfer{
		batch:    b,
		dst:      dst,
		unit:     unit,
		def:      def,
		folder:   folder,
		fileName: fileName,
		out:      &out,
	}

	switch unit.Kind.Class() {
	case resource.ClassBinary:
		item.binary(ctx)
	case resource.ClassDocument:
		item.document(ctx)
	default:
		item.definition(ctx)
	}
}

func (b *batch) record(ctx context.Context, out Outcome) {
	logger := b.logger.With("kind", out.Unit.Kind, "id", out.Unit.ID, "name", out.Name)
	switch out.Status {
	case StatusMigrated:
		logger.Info("item transferred", "attempts", out.Attempts)
	case StatusExists:
		logger.Warn("item already exists on destination, skipping")
	case StatusSkipped:
		logger.Warn("item skipped", "error", out.Err)
	default:
		logger.Error("item failed", "attempts", out.Attempts, "error", out.Err)
	}

	b.report.Outcomes = append(b.report.Outcomes, out)

	if rec := b.engine.cfg.Recorder; rec != nil {
		if err := rec.Record(ctx, b.report.Run, out); err != nil {
			logger.Warn("failed to record outcome", "error", err)
		}
	}
}

// wait pauses for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
