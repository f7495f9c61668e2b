package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/DemandBridge/environment-transfer-tool/pkg/document"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// itemTransfer is one item past reservation, with the destination session
// that holds its reserved identifier.
type itemTransfer struct {
	*batch

	dst      API
	unit     resource.Unit
	def      resource.Definition
	folder   string
	fileName string
	out      *Outcome
}

// retry runs op up to attempts times, waiting per policy in between.
func (t *itemTransfer) retry(ctx context.Context, attempts int, policy RetryPolicy, op backoff.Operation) error {
	b := backoff.WithContext(
		backoff.WithMaxRetries(policy.NewBackOff(), uint64(attempts-1)),
		ctx,
	)

	return backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		t.logger.Warn("attempt failed, trying again",
			"kind", t.unit.Kind,
			"id", t.unit.ID,
			"attempt", t.out.Attempts,
			"next_in", next,
			"error", err)
	})
}

// binary uploads an asset or font and checks that the destination reports
// the same file size as the source. The first successful upload adds the
// item; later attempts replace its file.
func (t *itemTransfer) binary(ctx context.Context) {
	created := false

	err := t.retry(ctx, t.engine.cfg.BinaryAttempts, t.engine.cfg.BinaryRetry, func() error {
		t.out.Attempts++

		t.logger.Debug("downloading file", "kind", t.unit.Kind, "id", t.unit.ID, "name", t.def.Name)
		data, err := t.src.Download(ctx, t.unit.Kind, t.unit.ID)
		if err != nil {
			return fmt.Errorf("error downloading from source: %w", err)
		}

		if !created {
			err = t.dst.AddItem(ctx, t.unit.Kind, t.fileName, t.folder, Payload{FileData: data})
			if err == nil {
				created = true
			}
		} else {
			err = t.dst.ReplaceFile(ctx, t.unit.Kind, t.unit.ID, data)
		}
		if err != nil {
			return fmt.Errorf("error uploading to destination: %w", err)
		}

		got, err := t.dst.GetDefinition(ctx, t.unit.Kind, t.unit.ID)
		if err != nil {
			return fmt.Errorf("error reading destination definition after upload: %w", err)
		}

		if !t.def.HasFileSize() || got.FileSize != t.def.FileSize {
			return &VerificationError{
				Unit:     t.unit,
				Attempts: t.out.Attempts,
				Reason:   fmt.Sprintf("destination file size %q, source %q", got.FileSize, t.def.FileSize),
			}
		}
		return nil
	})
	if err != nil {
		if created {
			t.cleanup(ctx)
		}
		t.out.fail(StatusFailed, err)
		return
	}

	t.out.Status = StatusMigrated
}

// document transfers the document's dependencies, then writes the document
// through a placeholder, saves the real XML, reprocesses it on the server and
// reads it back until it has frames.
func (t *itemTransfer) document(ctx context.Context) {
	raw, err := t.src.GetXML(ctx, t.unit.Kind, t.unit.ID)
	if err != nil {
		t.out.fail(StatusFailed, fmt.Errorf("error downloading document XML: %w", err))
		return
	}

	doc, err := document.Parse(raw)
	if err != nil {
		t.out.fail(StatusFailed, err)
		return
	}

	deps := doc.Dependencies()
	parent := t.unit
	for _, group := range deps.Groups() {
		t.logger.Info("transferring document dependencies",
			"document", t.unit.ID,
			"kind", group.Kind,
			"count", len(group.IDs))
		t.run(ctx, group.Kind, group.IDs, &parent)
	}
	if ctx.Err() != nil {
		t.out.fail(StatusFailed, ctx.Err())
		return
	}

	if t.opts.ReattachDataSource && deps.DataSource != "" {
		t.reattachDataSource(ctx, doc, deps.DataSource)
	}

	xml, err := doc.Serialize()
	if err != nil {
		t.out.fail(StatusFailed, fmt.Errorf("error serializing document: %w", err))
		return
	}

	// Adding a full document makes the server rewrite its XML (whitespace is
	// lost), so an empty one is added and then saved over.
	err = t.dst.AddItem(ctx, t.unit.Kind, t.def.Name, t.folder, Payload{XML: document.Placeholder})
	if err != nil {
		t.out.fail(StatusFailed, fmt.Errorf("error creating placeholder document: %w", err))
		return
	}

	err = t.retry(ctx, t.engine.cfg.DocumentAttempts, t.engine.cfg.DocumentRetry, func() error {
		t.out.Attempts++

		if err := t.dst.SaveXML(ctx, t.unit.Kind, t.unit.ID, xml); err != nil {
			return fmt.Errorf("error saving document XML: %w", err)
		}

		// Saved XML does not render until the server reprocesses it.
		if err := t.dst.ProcessServerSide(ctx, t.unit.ID); err != nil {
			t.logger.Warn("server side processing failed", "id", t.unit.ID, "error", err)
		}

		if err := wait(ctx, t.engine.cfg.VerifyDelay); err != nil {
			return backoff.Permanent(err)
		}

		got, err := t.dst.GetXML(ctx, t.unit.Kind, t.unit.ID)
		if err != nil {
			return fmt.Errorf("error reading document back: %w", err)
		}

		check, err := document.Parse(got)
		if err != nil {
			return err
		}

		// Only detects an empty document, not a wrong one.
		if len(check.Frames(document.AnyFrame)) == 0 {
			return &VerificationError{
				Unit:     t.unit,
				Attempts: t.out.Attempts,
				Reason:   "document has no frames after save",
			}
		}
		return nil
	})
	if err != nil {
		t.cleanup(ctx)
		t.out.fail(StatusFailed, err)
		return
	}

	t.out.Status = StatusMigrated
}

func (t *itemTransfer) reattachDataSource(ctx context.Context, doc *document.Document, id string) {
	unit := resource.Unit{Kind: resource.DataSources, ID: id}
	if o, ok := t.report.Lookup(unit); !ok || !o.Available() {
		t.logger.Warn("data source not on destination, keeping embedded copy", "document", t.unit.ID, "data_source", id)
		return
	}

	xml, err := t.dst.GetXML(ctx, resource.DataSources, id)
	if err != nil {
		t.logger.Warn("failed to read destination data source", "data_source", id, "error", err)
		return
	}

	if err := doc.ReplaceDataSourceXML(xml); err != nil {
		t.logger.Warn("failed to reattach data source", "data_source", id, "error", err)
	}
}

// definition copies a settings resource's XML in a single call.
func (t *itemTransfer) definition(ctx context.Context) {
	t.out.Attempts = 1

	xml, err := t.src.GetXML(ctx, t.unit.Kind, t.unit.ID)
	if err != nil {
		t.out.fail(StatusFailed, fmt.Errorf("error downloading XML: %w", err))
		return
	}

	if err := t.dst.AddItem(ctx, t.unit.Kind, t.def.Name, t.folder, Payload{XML: xml}); err != nil {
		t.out.fail(StatusFailed, fmt.Errorf("error adding item to destination: %w", err))
		return
	}

	t.out.Status = StatusMigrated
}

// cleanup deletes a partially written item so no corrupt copy is left behind.
func (t *itemTransfer) cleanup(ctx context.Context) {
	t.logger.Info("deleting incomplete item from destination", "kind", t.unit.Kind, "id", t.unit.ID)

	// ctx may already be done; the delete still has to go out.
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if err := t.dst.DeleteItem(delCtx, t.unit.Kind, t.unit.ID); err != nil {
		t.logger.Error("failed to delete incomplete item", "kind", t.unit.Kind, "id", t.unit.ID, "error", err)
	}
}
