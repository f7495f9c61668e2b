package notify

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

// Config holds backend configuration from HCL.
type Config struct {
	Audit *AuditConfig `hcl:"audit,block"`
	Ntfy  *NtfyConfig  `hcl:"ntfy,block"`

	// Retries is the number of extra deliveries after a retryable failure.
	Retries *int `hcl:"retries,optional"`
}

// AuditConfig configures the audit backend.
type AuditConfig struct {
	Enabled bool `hcl:"enabled,optional"`
}

// NtfyConfig configures the ntfy backend.
type NtfyConfig struct {
	Enabled bool `hcl:"enabled,optional"`

	ServerURL string `hcl:"server_url,optional"`
	Topic     string `hcl:"topic"`
}

// Validate checks the notify block.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Ntfy),
		validation.Field(&c.Retries, validation.Min(0)),
	)
}

// Validate checks the ntfy block.
func (c NtfyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ServerURL, is.URL),
		validation.Field(&c.Topic, validation.When(c.Enabled, validation.Required)),
	)
}

// Notifier delivers messages to every configured backend.
type Notifier struct {
	backends   []Backend
	retries    uint64
	retryDelay time.Duration
	logger     hclog.Logger
}

// New creates a Notifier from configuration. A nil config yields a Notifier
// without backends.
func New(cfg *Config, logger hclog.Logger) *Notifier {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	n := &Notifier{
		retries:    2,
		retryDelay: time.Second,
		logger:     logger.Named("notify"),
	}
	if cfg == nil {
		return n
	}

	if cfg.Retries != nil {
		n.retries = uint64(*cfg.Retries)
	}

	if cfg.Audit != nil && cfg.Audit.Enabled {
		n.Add(NewAuditBackend(logger))
	}

	if cfg.Ntfy != nil && cfg.Ntfy.Enabled {
		n.Add(NewNtfyBackend(NtfyBackendConfig{
			ServerURL: cfg.Ntfy.ServerURL,
			Topic:     cfg.Ntfy.Topic,
		}))
		n.logger.Debug("initialized ntfy backend", "server", cfg.Ntfy.ServerURL, "topic", cfg.Ntfy.Topic)
	}

	return n
}

// Add registers a backend.
func (n *Notifier) Add(b Backend) {
	n.backends = append(n.backends, b)
}

// Backends returns the names of the registered backends.
func (n *Notifier) Backends() []string {
	names := make([]string, 0, len(n.backends))
	for _, b := range n.backends {
		names = append(names, b.Name())
	}
	return names
}

// Notify hands msg to every backend. Retryable failures are retried; the
// errors of backends that still failed are combined.
func (n *Notifier) Notify(ctx context.Context, msg *Message) error {
	var result *multierror.Error

	for _, b := range n.backends {
		op := func() error {
			err := b.Handle(ctx, msg)
			var berr *BackendError
			if err != nil && (!errors.As(err, &berr) || !berr.Retryable) {
				return backoff.Permanent(err)
			}
			return err
		}

		policy := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(n.retryDelay), n.retries), ctx)

		notify := func(err error, d time.Duration) {
			n.logger.Warn("notification failed, retrying", "backend", b.Name(), "error", err, "delay", d)
		}

		if err := backoff.RetryNotify(op, policy, notify); err != nil {
			n.logger.Error("notification failed", "backend", b.Name(), "error", err)
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}
