// Package transfer replicates content items from one publishing environment
// to another while keeping their identifiers.
//
// The Engine walks a list of item identifiers of one resource kind. Binary
// resources (assets, fonts) are uploaded and verified by file size, settings
// resources are copied as XML, and documents first have their dependencies
// transferred (data source, fonts, assets, dynamic asset providers, barcode
// types) before being written through a placeholder, saved, reprocessed on the
// server and verified.
//
// Items are processed strictly one after another. Nothing a single item does
// aborts the batch; only failing to disable preview generation on the
// destination does.
package transfer

import (
	"context"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// Payload is the content of a newly added item: XML for settings resources
// and documents, file data for binary resources.
type Payload struct {
	XML      string
	FileData []byte
}

// API is the remote resource API of one environment, bound to one session.
type API interface {
	// GetDefinition returns an item's definition, or an error wrapping
	// ErrNotFound.
	GetDefinition(ctx context.Context, kind resource.Kind, id string) (resource.Definition, error)

	// ReserveID makes id the identifier of the next item of kind added in
	// this session. It returns false when an item with that identifier
	// already exists.
	ReserveID(ctx context.Context, kind resource.Kind, id string) (bool, error)

	// Download returns the raw file of a binary item.
	Download(ctx context.Context, kind resource.Kind, id string) ([]byte, error)

	// GetXML returns the XML of a document or settings item.
	GetXML(ctx context.Context, kind resource.Kind, id string) (string, error)

	AddItem(ctx context.Context, kind resource.Kind, name, folder string, payload Payload) error
	ReplaceFile(ctx context.Context, kind resource.Kind, id string, data []byte) error
	SaveXML(ctx context.Context, kind resource.Kind, id, xml string) error

	// ProcessServerSide re-derives a document's rendered state from its saved
	// XML.
	ProcessServerSide(ctx context.Context, id string) error

	DeleteItem(ctx context.Context, kind resource.Kind, id string) error

	// SetPreviewGeneration toggles automatic preview generation for the
	// whole environment.
	SetPreviewGeneration(ctx context.Context, enabled bool) error
}

// Environment hands out sessions for one environment.
type Environment interface {
	// Name identifies the environment in logs and reports.
	Name() string

	// Connect acquires a new session. Sessions are never reused between
	// items, since a stale one can silently corrupt identifier reservations.
	Connect(ctx context.Context) (API, error)
}

// Recorder receives the outcome of every item, e.g. to persist it.
type Recorder interface {
	Begin(ctx context.Context, run RunInfo) error
	Record(ctx context.Context, run RunInfo, outcome Outcome) error
	Finish(ctx context.Context, run RunInfo, report *Report) error
}
