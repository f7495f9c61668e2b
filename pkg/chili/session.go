// Package chili talks to the REST API of a CHILI publisher environment.
//
// A Session holds the credentials of one environment and hands out Clients,
// each bound to a freshly generated API key. Identifier reservations on the
// server are tied to the key that made them, so the transfer engine takes a
// new Client for every item.
package chili

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"

	"github.com/DemandBridge/environment-transfer-tool/pkg/transfer"
)

// Session connects to one environment.
type Session struct {
	cfg        *Config
	base       string
	env        string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     hclog.Logger
}

var _ transfer.Environment = (*Session)(nil)

// NewSession creates a Session. No request is made until Connect.
func NewSession(cfg *Config, logger hclog.Logger) (*Session, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment config: %w", err)
	}

	base, env, err := cfg.Endpoint()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Session{
		cfg:        cfg,
		base:       base,
		env:        env,
		httpClient: cfg.NewHTTPClient(),
		limiter:    cfg.NewLimiter(),
		logger:     logger.Named("chili").With("env", env),
	}, nil
}

// Name returns the environment name.
func (s *Session) Name() string {
	return s.env
}

// BaseURL returns the scheme and host of the environment.
func (s *Session) BaseURL() string {
	return s.base
}

// Connect generates a new API key and returns a client using it.
func (s *Session) Connect(ctx context.Context) (transfer.API, error) {
	return s.NewClient(ctx)
}

// NewClient generates a new API key and returns a client using it.
func (s *Session) NewClient(ctx context.Context) (*Client, error) {
	c := &Client{
		base:       s.base,
		httpClient: s.httpClient,
		limiter:    s.limiter,
		cfg:        s.cfg,
		logger:     s.logger,
	}

	query := url.Values{"environmentNameOrURL": {s.env}}
	body := apiKeyRequest{UserName: s.cfg.Username, Password: s.cfg.Password}

	var resp apiKeyResponse
	if err := c.doJSON(ctx, "generate api key", http.MethodPost, "/system/apikey", query, body, &resp); err != nil {
		return nil, err
	}
	if !resp.Succeeded || resp.Key == "" {
		msg := resp.ErrorMsg
		if msg == "" {
			msg = "key generation did not succeed"
		}
		return nil, fmt.Errorf("error making key for %s: %s", s.base, msg)
	}

	s.logger.Trace("generated api key")
	c.key = resp.Key
	return c, nil
}
