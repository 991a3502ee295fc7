package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookSender posts messages to a Slack incoming webhook. Each tenant
// configures its own webhook URL, passed per call.
type WebhookSender interface {
	SendWebhook(ctx context.Context, webhookURL, text string) error
}

type sender struct {
	client *http.Client
}

func NewSender() WebhookSender {
	return &sender{client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *sender) SendWebhook(ctx context.Context, webhookURL, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned %d", resp.StatusCode)
	}
	return nil
}
