package transfer

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// Status is the result of transferring one item.
type Status string

const (
	// StatusMigrated means the item was written and verified.
	StatusMigrated Status = "migrated"
	// StatusExists means the destination already had the identifier.
	StatusExists Status = "exists"
	// StatusSkipped means the item could not be found on the source.
	StatusSkipped Status = "skipped"
	// StatusFailed means the item is not on the destination.
	StatusFailed Status = "failed"
)

// RunInfo describes one top-level Transfer call.
type RunInfo struct {
	ID          uuid.UUID
	Kind        resource.Kind
	Source      string
	Destination string
	Items       int
	StartedAt   time.Time
}

// Outcome is what happened to one item.
type Outcome struct {
	Unit     resource.Unit  `json:"unit"`
	Name     string         `json:"name,omitempty"`
	Status   Status         `json:"status"`
	Attempts int            `json:"attempts"`
	Parent   *resource.Unit `json:"parent,omitempty"`
	Message  string         `json:"message,omitempty"`
	Duration time.Duration  `json:"duration"`

	Err error `json:"-"`
}

// Available reports whether the item is on the destination after the run.
func (o Outcome) Available() bool {
	return o.Status == StatusMigrated || o.Status == StatusExists
}

func (o *Outcome) fail(status Status, err error) {
	o.Status = status
	o.Err = err
	if err != nil {
		o.Message = err.Error()
	}
}

// Report collects the outcomes of a Transfer call, dependencies included, in
// the order the items finished.
type Report struct {
	Run      RunInfo   `json:"run"`
	Outcomes []Outcome `json:"outcomes"`
}

// Lookup returns the outcome of a unit.
func (r *Report) Lookup(unit resource.Unit) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Unit == unit {
			return o, true
		}
	}
	return Outcome{}, false
}

// Counts returns the number of outcomes per status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, o := range r.Outcomes {
		counts[o.Status]++
	}
	return counts
}

// Failed returns the outcomes of items that did not make it.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err combines the errors of all failed items, or returns nil.
func (r *Report) Err() error {
	var result *multierror.Error
	for _, o := range r.Failed() {
		result = multierror.Append(result, &ItemError{Unit: o.Unit, Err: o.Err})
	}
	return result.ErrorOrNil()
}

// ItemError ties an error to the item it happened to.
type ItemError struct {
	Unit resource.Unit
	Err  error
}

func (e *ItemError) Error() string {
	if e.Err == nil {
		return e.Unit.String() + ": failed"
	}
	return e.Unit.String() + ": " + e.Err.Error()
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
