package notify

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

// AuditBackend writes messages to the log.
type AuditBackend struct {
	logger hclog.Logger
}

// NewAuditBackend creates a new audit backend.
func NewAuditBackend(logger hclog.Logger) *AuditBackend {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &AuditBackend{logger: logger.Named("audit")}
}

// Name returns the backend identifier.
func (b *AuditBackend) Name() string {
	return "audit"
}

// Handle logs the message.
func (b *AuditBackend) Handle(ctx context.Context, msg *Message) error {
	b.logger.Info(msg.Subject,
		"run", msg.RunID,
		"priority", int(msg.Priority),
		"tags", msg.Tags,
		"body", msg.Body)
	return nil
}
