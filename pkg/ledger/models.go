package ledger

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run is one top-level transfer of a list of items of one kind.
type Run struct {
	// ID is the run identifier shared with the transfer report.
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" yaml:"id"`

	CreatedAt time.Time `json:"-" yaml:"-"`
	UpdatedAt time.Time `json:"-" yaml:"-"`

	Kind        string `gorm:"type:varchar(64);index;not null" json:"kind" yaml:"kind"`
	Source      string `gorm:"type:varchar(255);not null" json:"source" yaml:"source"`
	Destination string `gorm:"type:varchar(255);not null" json:"destination" yaml:"destination"`

	// Requested is the number of items asked for, without dependencies.
	Requested int `json:"requested" yaml:"requested"`

	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	Migrated int `json:"migrated" yaml:"migrated"`
	Existing int `json:"existing" yaml:"existing"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Failed   int `json:"failed" yaml:"failed"`

	Items []Item `gorm:"foreignKey:RunID;constraint:OnDelete:CASCADE" json:"items,omitempty" yaml:"items,omitempty"`
}

// BeforeCreate hook to generate UUID if not set.
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for GORM.
func (Run) TableName() string {
	return "transfer_runs"
}

// Finished reports whether the run ran to its end.
func (r Run) Finished() bool {
	return r.FinishedAt != nil
}

// Item is the outcome of one item within a run.
type Item struct {
	ID        uint      `gorm:"primaryKey" json:"-" yaml:"-"`
	CreatedAt time.Time `json:"recorded_at" yaml:"recorded_at"`

	RunID uuid.UUID `gorm:"type:uuid;index;not null" json:"run_id" yaml:"run_id"`

	Kind   string `gorm:"type:varchar(64);not null;index:idx_transfer_items_unit" json:"kind" yaml:"kind"`
	ItemID string `gorm:"type:varchar(255);not null;index:idx_transfer_items_unit" json:"item_id" yaml:"item_id"`
	Name   string `gorm:"type:varchar(512)" json:"name,omitempty" yaml:"name,omitempty"`

	Status   string `gorm:"type:varchar(32);not null;index" json:"status" yaml:"status"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Error    string `gorm:"type:text" json:"error,omitempty" yaml:"error,omitempty"`

	// ParentKind and ParentID name the document that pulled this item in as
	// a dependency.
	ParentKind string `gorm:"type:varchar(64)" json:"parent_kind,omitempty" yaml:"parent_kind,omitempty"`
	ParentID   string `gorm:"type:varchar(255)" json:"parent_id,omitempty" yaml:"parent_id,omitempty"`

	DurationMS int64 `json:"duration_ms" yaml:"duration_ms"`
}

// TableName specifies the table name for GORM.
func (Item) TableName() string {
	return "transfer_items"
}

// ModelsToAutoMigrate lists the ledger models.
func ModelsToAutoMigrate() []interface{} {
	return []interface{}{
		&Run{},
		&Item{},
	}
}
