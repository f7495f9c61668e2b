package transfer

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

// RetryPolicy is the delay between attempts of one item. How many attempts
// are made is fixed per resource class; the policy only decides how long to
// wait between them.
type RetryPolicy struct {
	// InitialDelay is the wait before the second attempt. Zero disables waiting.
	InitialDelay time.Duration

	// MaxDelay caps the wait. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier grows the wait after every attempt. Values <= 1 keep it
	// constant.
	Multiplier float64
}

// ConstantRetry waits the same delay between every attempt.
func ConstantRetry(delay time.Duration) RetryPolicy {
	return RetryPolicy{InitialDelay: delay, Multiplier: 1}
}

// NewBackOff builds the backoff strategy for one item.
func (p RetryPolicy) NewBackOff() backoff.BackOff {
	if p.InitialDelay <= 0 {
		return &backoff.ZeroBackOff{}
	}
	if p.Multiplier <= 1 {
		return backoff.NewConstantBackOff(p.InitialDelay)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	if p.MaxDelay > 0 {
		b.MaxInterval = p.MaxDelay
	}
	b.Reset()
	return b
}

// Config configures an Engine.
type Config struct {
	Logger hclog.Logger

	// BinaryAttempts bounds upload attempts for assets and fonts.
	BinaryAttempts int

	// DocumentAttempts bounds save/reprocess/verify attempts for documents.
	DocumentAttempts int

	BinaryRetry   RetryPolicy
	DocumentRetry RetryPolicy

	// VerifyDelay is the pause between reprocessing a document and reading it
	// back.
	VerifyDelay time.Duration

	// ItemInterval is the pause after every item, dependencies included.
	// Zero disables it.
	ItemInterval time.Duration

	// Recorder, when set, receives every item outcome.
	Recorder Recorder
}

// DefaultConfig returns the engine configuration used against production
// environments.
func DefaultConfig() Config {
	return Config{
		BinaryAttempts:   6,
		DocumentAttempts: 20,
		BinaryRetry:      ConstantRetry(200 * time.Millisecond),
		DocumentRetry:    ConstantRetry(0),
		VerifyDelay:      500 * time.Millisecond,
		ItemInterval:     500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BinaryAttempts < 1 {
		return fmt.Errorf("binary attempts must be at least 1, got: %d", c.BinaryAttempts)
	}
	if c.DocumentAttempts < 1 {
		return fmt.Errorf("document attempts must be at least 1, got: %d", c.DocumentAttempts)
	}
	if c.VerifyDelay < 0 || c.ItemInterval < 0 {
		return fmt.Errorf("delays must be non-negative")
	}
	return nil
}

// Options apply to one Transfer call and to the dependency transfers it
// starts.
type Options struct {
	// DisablePreviews turns off automatic preview generation on the
	// destination before the batch starts.
	DisablePreviews bool

	DestPath resource.DestinationPath

	// ReattachDataSource substitutes the destination's copy of a document's
	// data source into the document before it is uploaded.
	ReattachDataSource bool
}

// DefaultOptions disables previews and mirrors source folders.
func DefaultOptions() Options {
	return Options{
		DisablePreviews: true,
		DestPath:        resource.IdenticalPath(),
	}
}
