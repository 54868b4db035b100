package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/disktools/diskwatch/internal/config"
)

// ntfyNotifier publishes to an ntfy topic over plain HTTP.
type ntfyNotifier struct {
	url      string
	topic    string
	username string
	password string
	client   *http.Client
}

func newNtfy(cfg *config.Settings) (Notifier, error) {
	if cfg.NtfyURL == "" && cfg.NtfyTopic == "" {
		return nil, nil
	}
	if cfg.NtfyURL == "" || cfg.NtfyTopic == "" {
		return nil, fmt.Errorf("ntfy: %w: both NTFY_URL and NTFY_TOPIC are required", ErrMisconfigured)
	}
	return &ntfyNotifier{
		url:      strings.TrimRight(cfg.NtfyURL, "/"),
		topic:    cfg.NtfyTopic,
		username: cfg.NtfyUsername,
		password: cfg.NtfyPassword,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (n *ntfyNotifier) Name() string { return "ntfy" }

func (n *ntfyNotifier) Send(ctx context.Context, msg Message) error {
	url := n.url + "/" + n.topic
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("ntfy: failed to create request: %w", err)
	}
	req.Header.Set("X-Title", msg.Title)
	if msg.Critical {
		req.Header.Set("X-Priority", "urgent")
		req.Header.Set("X-Tags", "rotating_light")
	}
	if n.username != "" {
		req.SetBasicAuth(n.username, n.password)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy: unexpected status %d: %s", resp.StatusCode, detail)
	}
	return nil
}
