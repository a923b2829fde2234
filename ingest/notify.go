package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier posts run status messages to a Discord webhook. An empty
// webhook URL disables it; Send then does nothing and returns nil.
type Notifier struct {
	http       *resty.Client
	webhookURL string
}

// NewNotifier builds a notifier for the given webhook URL, which may
// be empty.
func NewNotifier(webhookURL string) *Notifier {
	return &Notifier{
		http:       resty.New().SetTimeout(30 * time.Second),
		webhookURL: webhookURL,
	}
}

// Send posts a message to the webhook.
func (n *Notifier) Send(ctx context.Context, content string) error {
	if n.webhookURL == "" {
		return nil
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"content": content}).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("ingest: send notification: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("ingest: notification webhook returned status %d", resp.StatusCode())
	}
	return nil
}
