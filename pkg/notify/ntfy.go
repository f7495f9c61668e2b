package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NtfyBackend sends push notifications via ntfy.
type NtfyBackend struct {
	serverURL string
	topic     string
	client    *http.Client
}

// NtfyBackendConfig holds configuration for the ntfy backend.
type NtfyBackendConfig struct {
	// ServerURL is the ntfy server URL (e.g., "https://ntfy.sh").
	ServerURL string

	// Topic is the ntfy topic to send notifications to.
	Topic string

	// Timeout for HTTP requests (optional, defaults to 10s).
	Timeout time.Duration
}

// NewNtfyBackend creates a new ntfy backend.
func NewNtfyBackend(cfg NtfyBackendConfig) *NtfyBackend {
	if cfg.ServerURL == "" {
		cfg.ServerURL = "https://ntfy.sh"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &NtfyBackend{
		serverURL: strings.TrimRight(cfg.ServerURL, "/"),
		topic:     cfg.Topic,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name returns the backend identifier.
func (b *NtfyBackend) Name() string {
	return "ntfy"
}

// Handle posts the message body to the topic.
func (b *NtfyBackend) Handle(ctx context.Context, msg *Message) error {
	url := fmt.Sprintf("%s/%s", b.serverURL, b.topic)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg.Body))
	if err != nil {
		return NewBackendError(b.Name(), "send", false, fmt.Errorf("failed to create ntfy request: %w", err))
	}

	if msg.Subject != "" {
		req.Header.Set("Title", msg.Subject)
	}
	req.Header.Set("Markdown", "yes")

	// ntfy priorities run from 1 (min) over 3 (default) to 5 (max).
	priority := "3"
	switch {
	case msg.Priority > PriorityNormal:
		priority = "5"
	case msg.Priority < PriorityNormal:
		priority = "2"
	}
	req.Header.Set("Priority", priority)

	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return NewBackendError(b.Name(), "send", true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewBackendError(b.Name(), "send", isRetryableHTTPStatus(resp.StatusCode),
			fmt.Errorf("ntfy request failed with status %d", resp.StatusCode))
	}

	return nil
}
