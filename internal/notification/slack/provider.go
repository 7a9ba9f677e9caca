package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type Provider interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channel string, message string) error {
	return nil
}

// WebhookProvider posts to an incoming-webhook URL.
type WebhookProvider struct {
	webhookURL string
	client     *http.Client
}

func NewWebhook(webhookURL string) *WebhookProvider {
	return &WebhookProvider{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *WebhookProvider) PostMessage(ctx context.Context, channel string, message string) error {
	body, err := json.Marshal(map[string]string{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
