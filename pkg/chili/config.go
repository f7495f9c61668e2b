package chili

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/time/rate"
)

// Config contains the connection settings of one environment.
//
// Example configuration (HCL):
//
//	source {
//	  base_url = "https://cp-abc-123.chili-publish.online"
//	  username = "admin"
//	  password = "secret"
//	}
type Config struct {
	// BaseURL is the environment's server URL. Only scheme and host are used.
	BaseURL string `hcl:"base_url" json:"baseUrl"`

	// Environment is the environment name sent when generating API keys.
	// Derived from the first label of the host when empty.
	Environment string `hcl:"environment,optional" json:"environment,omitempty"`

	Username string `hcl:"username" json:"username"`
	Password string `hcl:"password" json:"-"`

	// TLSVerify controls TLS certificate verification.
	TLSVerify *bool `hcl:"tls_verify,optional" json:"tlsVerify,omitempty"`

	// Timeout for one HTTP request.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries is how often a failed read request is repeated. Writes are
	// never repeated here; the transfer engine owns their retries.
	MaxRetries int `json:"maxRetries,omitempty"`

	// RetryDelay between repeated read requests.
	RetryDelay time.Duration `json:"retryDelay,omitempty"`

	// RequestsPerSecond caps the request rate against this environment.
	// Zero means unlimited.
	RequestsPerSecond float64 `json:"requestsPerSecond,omitempty"`
}

// DefaultConfig returns a Config with defaults for everything but the
// credentials.
func DefaultConfig() *Config {
	tlsVerify := true
	return &Config{
		TLSVerify:  &tlsVerify,
		Timeout:    60 * time.Second,
		MaxRetries: 2,
		RetryDelay: 1 * time.Second,
	}
}

// applyDefaults fills unset fields from DefaultConfig.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.TLSVerify == nil {
		c.TLSVerify = defaults.TLSVerify
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaults.RetryDelay
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxRetries, validation.Min(0)),
		validation.Field(&c.RetryDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
	)
	if err != nil {
		return err
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https scheme, got: %s", u.Scheme)
	}

	return nil
}

// Endpoint returns the scheme and host of BaseURL and the environment name.
func (c *Config) Endpoint() (base, env string, err error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("base_url has no host: %q", c.BaseURL)
	}

	base = u.Scheme + "://" + u.Host
	env = c.Environment
	if env == "" {
		env = strings.SplitN(u.Hostname(), ".", 2)[0]
	}
	return base, env, nil
}

// NewLimiter returns the request rate limiter shared by all clients of this
// environment.
func (c *Config) NewLimiter() *rate.Limiter {
	if c.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(c.RequestsPerSecond), 1)
}

// NewHTTPClient creates a configured HTTP client for this environment.
func (c *Config) NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	if c.TLSVerify != nil && !*c.TLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
}
