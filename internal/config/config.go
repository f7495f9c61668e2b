// Package config loads the HCL configuration of the transfer tool.
//
// Example:
//
//	log_level = "info"
//
//	source {
//	  base_url = "https://cp-abc-123.chili-publish.online"
//	  username = "admin"
//	  password = env("SOURCE_PASSWORD")
//	}
//
//	destination {
//	  base_url = "https://cp-xyz-789.chili-publish.online"
//	  username = "admin"
//	  password = env("DEST_PASSWORD")
//	}
//
//	transfer {
//	  disable_previews = true
//	  item_delay       = "500ms"
//	}
//
//	plan "Fonts" {
//	  folders = ["03-47030100"]
//	}
//
//	plan "Documents" {
//	  folders = ["items/03-47030100"]
//	  ids     = ["a1b2c3"]
//	}
//
//	ledger {
//	  driver = "sqlite"
//	  dsn    = "transfers.db"
//	}
//
//	notify {
//	  ntfy {
//	    enabled = true
//	    topic   = "environment-transfers"
//	  }
//	}
package config

import (
	"fmt"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"

	"github.com/DemandBridge/environment-transfer-tool/pkg/chili"
	"github.com/DemandBridge/environment-transfer-tool/pkg/database"
	"github.com/DemandBridge/environment-transfer-tool/pkg/notify"
	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
	"github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// Config is the root of the configuration file.
type Config struct {
	LogLevel string `hcl:"log_level,optional"`

	Source      *chili.Config `hcl:"source,block"`
	Destination *chili.Config `hcl:"destination,block"`

	HTTP     *HTTP     `hcl:"http,block"`
	Transfer *Transfer `hcl:"transfer,block"`
	Plans    []Plan    `hcl:"plan,block"`
	Ledger   *Ledger   `hcl:"ledger,block"`

	Notify *notify.Config `hcl:"notify,block"`
}

// HTTP configures the connections to both environments.
type HTTP struct {
	Timeout    string `hcl:"timeout,optional"`
	MaxRetries *int   `hcl:"max_retries,optional"`
	RetryDelay string `hcl:"retry_delay,optional"`

	// RequestsPerSecond caps the request rate against each environment.
	RequestsPerSecond *float64 `hcl:"requests_per_second,optional"`
}

// Transfer configures the transfer engine.
type Transfer struct {
	DisablePreviews    *bool `hcl:"disable_previews,optional"`
	ReattachDataSource bool  `hcl:"reattach_data_source,optional"`

	// DestPath places every item in one destination folder. Empty mirrors
	// the source folders.
	DestPath string `hcl:"dest_path,optional"`

	ItemDelay   string `hcl:"item_delay,optional"`
	VerifyDelay string `hcl:"verify_delay,optional"`

	BinaryAttempts   int `hcl:"binary_attempts,optional"`
	DocumentAttempts int `hcl:"document_attempts,optional"`

	RetryDelay         string  `hcl:"retry_delay,optional"`
	DocumentRetryDelay string  `hcl:"document_retry_delay,optional"`
	MaxRetryDelay      string  `hcl:"max_retry_delay,optional"`
	RetryMultiplier    float64 `hcl:"retry_multiplier,optional"`
}

// Plan is one batch of the transfer command: the items of one kind found in
// folders of the source plus explicit identifiers.
type Plan struct {
	Kind    string   `hcl:"kind,label"`
	Folders []string `hcl:"folders,optional"`
	IDs     []string `hcl:"ids,optional"`

	IncludeSubdirectories *bool   `hcl:"include_subdirectories,optional"`
	DestPath              *string `hcl:"dest_path,optional"`
}

// Ledger configures where transfer runs are recorded.
type Ledger struct {
	Driver string `hcl:"driver,optional"`
	DSN    string `hcl:"dsn,optional"`
}

// Load reads and validates a configuration file.
func Load(fs afero.Fs, filename string) (*Config, error) {
	src, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return Parse(filename, src)
}

// Parse decodes and validates configuration source. The filename's extension
// selects native HCL (.hcl) or JSON (.json) syntax.
func Parse(filename string, src []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, src, evalContext(), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{
		Functions: map[string]function.Function{
			"env": envFunc,
		},
	}
}

// envFunc returns the value of an environment variable, or "" when unset.
var envFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "name", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		return cty.StringVal(os.Getenv(args[0].AsString())), nil
	},
})

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP == nil {
		c.HTTP = &HTTP{}
	}
	if c.Transfer == nil {
		c.Transfer = &Transfer{}
	}

	defaults := transfer.DefaultConfig()
	t := c.Transfer
	if t.DisablePreviews == nil {
		v := true
		t.DisablePreviews = &v
	}
	if t.BinaryAttempts == 0 {
		t.BinaryAttempts = defaults.BinaryAttempts
	}
	if t.DocumentAttempts == 0 {
		t.DocumentAttempts = defaults.DocumentAttempts
	}
	if t.ItemDelay == "" {
		t.ItemDelay = defaults.ItemInterval.String()
	}
	if t.VerifyDelay == "" {
		t.VerifyDelay = defaults.VerifyDelay.String()
	}
	if t.RetryDelay == "" {
		t.RetryDelay = defaults.BinaryRetry.InitialDelay.String()
	}
	if t.DocumentRetryDelay == "" {
		t.DocumentRetryDelay = defaults.DocumentRetry.InitialDelay.String()
	}

	for i := range c.Plans {
		if c.Plans[i].IncludeSubdirectories == nil {
			v := true
			c.Plans[i].IncludeSubdirectories = &v
		}
	}

	if c.Ledger != nil && c.Ledger.Driver == "" {
		c.Ledger.Driver = database.DriverSQLite
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.LogLevel, validation.By(isLogLevel)),
		validation.Field(&c.Source, validation.Required),
		validation.Field(&c.Destination, validation.Required),
		validation.Field(&c.HTTP),
		validation.Field(&c.Transfer),
		validation.Field(&c.Plans),
		validation.Field(&c.Ledger),
		validation.Field(&c.Notify),
	)
}

// Validate checks the HTTP block.
func (h HTTP) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Timeout, validation.By(isDuration)),
		validation.Field(&h.RetryDelay, validation.By(isDuration)),
		validation.Field(&h.MaxRetries, validation.Min(0)),
		validation.Field(&h.RequestsPerSecond, validation.Min(0.0)),
	)
}

// Validate checks the transfer block.
func (t Transfer) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.ItemDelay, validation.By(isDuration)),
		validation.Field(&t.VerifyDelay, validation.By(isDuration)),
		validation.Field(&t.RetryDelay, validation.By(isDuration)),
		validation.Field(&t.DocumentRetryDelay, validation.By(isDuration)),
		validation.Field(&t.MaxRetryDelay, validation.By(isDuration)),
		validation.Field(&t.BinaryAttempts, validation.Min(1)),
		validation.Field(&t.DocumentAttempts, validation.Min(1)),
		validation.Field(&t.RetryMultiplier, validation.Min(0.0)),
	)
}

// Validate checks a plan block.
func (p Plan) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Kind, validation.Required, validation.By(isKind)),
		validation.Field(&p.Folders, validation.When(len(p.IDs) == 0, validation.Required.Error("folders or ids are required"))),
	)
}

// Validate checks the ledger block.
func (l Ledger) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Driver, validation.In(database.DriverSQLite, database.DriverPostgres)),
		validation.Field(&l.DSN, validation.When(l.Driver == database.DriverPostgres, validation.Required)),
	)
}

func isDuration(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration such as \"500ms\" or \"2s\"")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func isKind(value interface{}) error {
	s, _ := value.(string)
	_, err := resource.ParseKind(s)
	return err
}

func isLogLevel(value interface{}) error {
	s, _ := value.(string)
	if hclog.LevelFromString(s) == hclog.NoLevel {
		return fmt.Errorf("unknown log level %q", s)
	}
	return nil
}

// duration parses a validated duration string, treating "" as zero.
func duration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}

// SourceConfig returns the source connection settings with the http block
// applied.
func (c *Config) SourceConfig() *chili.Config {
	return c.connection(c.Source)
}

// DestinationConfig returns the destination connection settings with the
// http block applied.
func (c *Config) DestinationConfig() *chili.Config {
	return c.connection(c.Destination)
}

func (c *Config) connection(env *chili.Config) *chili.Config {
	out := chili.DefaultConfig()
	out.BaseURL = env.BaseURL
	out.Environment = env.Environment
	out.Username = env.Username
	out.Password = env.Password
	if env.TLSVerify != nil {
		out.TLSVerify = env.TLSVerify
	}

	if d := duration(c.HTTP.Timeout); d > 0 {
		out.Timeout = d
	}
	if c.HTTP.MaxRetries != nil {
		out.MaxRetries = *c.HTTP.MaxRetries
	}
	if d := duration(c.HTTP.RetryDelay); d > 0 {
		out.RetryDelay = d
	}
	if c.HTTP.RequestsPerSecond != nil {
		out.RequestsPerSecond = *c.HTTP.RequestsPerSecond
	}
	return out
}

// EngineConfig returns the transfer engine settings.
func (c *Config) EngineConfig(logger hclog.Logger) transfer.Config {
	t := c.Transfer
	return transfer.Config{
		Logger:           logger,
		BinaryAttempts:   t.BinaryAttempts,
		DocumentAttempts: t.DocumentAttempts,
		BinaryRetry: transfer.RetryPolicy{
			InitialDelay: duration(t.RetryDelay),
			MaxDelay:     duration(t.MaxRetryDelay),
			Multiplier:   t.RetryMultiplier,
		},
		DocumentRetry: transfer.RetryPolicy{
			InitialDelay: duration(t.DocumentRetryDelay),
			MaxDelay:     duration(t.MaxRetryDelay),
			Multiplier:   t.RetryMultiplier,
		},
		VerifyDelay:  duration(t.VerifyDelay),
		ItemInterval: duration(t.ItemDelay),
	}
}

// Options returns the transfer options for a plan, or for an ad-hoc transfer
// when plan is nil.
func (c *Config) Options(plan *Plan) transfer.Options {
	opts := transfer.Options{
		DisablePreviews:    *c.Transfer.DisablePreviews,
		DestPath:           destinationPath(c.Transfer.DestPath),
		ReattachDataSource: c.Transfer.ReattachDataSource,
	}
	if plan != nil && plan.DestPath != nil {
		opts.DestPath = destinationPath(*plan.DestPath)
	}
	return opts
}

func destinationPath(p string) resource.DestinationPath {
	if p == "" {
		return resource.IdenticalPath()
	}
	return resource.ExplicitPath(p)
}

// DatabaseConfig returns the ledger database settings, or false when no
// ledger is configured.
func (c *Config) DatabaseConfig() (database.Config, bool) {
	if c.Ledger == nil {
		return database.Config{}, false
	}
	return database.Config{Driver: c.Ledger.Driver, DSN: c.Ledger.DSN}, true
}

// ResourceKind returns the parsed kind of a validated plan.
func (p Plan) ResourceKind() resource.Kind {
	k, _ := resource.ParseKind(p.Kind)
	return k
}
