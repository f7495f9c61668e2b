// Package ledger persists transfer runs and item outcomes so that past
// migrations can be reviewed and audited.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/DemandBridge/environment-transfer-tool/pkg/database"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
	"github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// ErrRunNotFound is returned when a run does not exist.
var ErrRunNotFound = errors.New("run not found")

// Store records transfer runs.
type Store struct {
	db     *gorm.DB
	logger hclog.Logger
}

var _ transfer.Recorder = (*Store)(nil)

// Open connects to the database and migrates the ledger tables.
func Open(cfg database.Config, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("ledger")

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return nil, err
	}
	return New(db, logger)
}

// New creates a Store on an open database and migrates the ledger tables.
func New(db *gorm.DB, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if err := db.AutoMigrate(ModelsToAutoMigrate()...); err != nil {
		return nil, fmt.Errorf("error migrating ledger tables: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if stats, err := database.GetPoolStats(s.db); err == nil {
		s.logger.Debug("closing ledger",
			"open_conns", stats.OpenConnections,
			"wait_count", stats.WaitCount,
			"wait_duration", stats.WaitDuration,
		)
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Begin records the start of a run.
func (s *Store) Begin(ctx context.Context, info transfer.RunInfo) error {
	run := &Run{
		ID:          info.ID,
		Kind:        string(info.Kind),
		Source:      info.Source,
		Destination: info.Destination,
		Requested:   info.Items,
		StartedAt:   info.StartedAt,
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("error creating run %s: %w", info.ID, err)
	}
	return nil
}

// Record stores the outcome of one item.
func (s *Store) Record(ctx context.Context, info transfer.RunInfo, out transfer.Outcome) error {
	item := &Item{
		RunID:      info.ID,
		Kind:       string(out.Unit.Kind),
		ItemID:     out.Unit.ID,
		Name:       out.Name,
		Status:     string(out.Status),
		Attempts:   out.Attempts,
		Error:      out.Message,
		DurationMS: out.Duration.Milliseconds(),
	}
	if out.Parent != nil {
		item.ParentKind = string(out.Parent.Kind)
		item.ParentID = out.Parent.ID
	}

	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("error recording %s: %w", out.Unit, err)
	}
	return nil
}

// Finish records the end of a run and its totals.
func (s *Store) Finish(ctx context.Context, info transfer.RunInfo, report *transfer.Report) error {
	counts := report.Counts()
	now := time.Now()

	result := s.db.WithContext(ctx).Model(&Run{ID: info.ID}).Updates(map[string]interface{}{
		"finished_at": now,
		"migrated":    counts[transfer.StatusMigrated],
		"existing":    counts[transfer.StatusExists],
		"skipped":     counts[transfer.StatusSkipped],
		"failed":      counts[transfer.StatusFailed],
	})
	if result.Error != nil {
		return fmt.Errorf("error finishing run %s: %w", info.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("error finishing run %s: %w", info.ID, ErrRunNotFound)
	}
	return nil
}

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	// Limit caps the number of runs. A limit <= 0 returns all.
	Limit int

	// Since keeps runs started at or after this time.
	Since time.Time

	Kind resource.Kind
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var runs []Run
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if !filter.Since.IsZero() {
		q = q.Where("started_at >= ?", filter.Since)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", string(filter.Kind))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	return runs, nil
}

// Run returns a run with its items.
func (s *Store) Run(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error getting run %s: %w", id, err)
	}
	return &run, nil
}

// Items returns the item outcomes of a run in the order they were recorded.
func (s *Store) Items(ctx context.Context, runID uuid.UUID) ([]Item, error) {
	var items []Item
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("error listing items of run %s: %w", runID, err)
	}
	return items, nil
}

// Succeeded reports whether any run put the unit on a destination.
func (s *Store) Succeeded(ctx context.Context, unit resource.Unit) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Item{}).
		Where("kind = ? AND item_id = ? AND status IN ?", string(unit.Kind), unit.ID,
			[]string{string(transfer.StatusMigrated), string(transfer.StatusExists)}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("error looking up %s: %w", unit, err)
	}
	return count > 0, nil
}
