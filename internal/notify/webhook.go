package notify

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier posts alerts as JSON to a configured webhook URL
// (Discord/Slack-style incoming webhook).
type WebhookNotifier struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// NewNotifier returns a webhook notifier, or a Noop when no URL is
// configured so callers never need a nil check.
func NewNotifier(webhookURL string, logger *zap.Logger) Notifier {
	if webhookURL == "" {
		logger.Info("No webhook configured, escalation alerts disabled")
		return Noop{}
	}
	return &WebhookNotifier{
		client: resty.New(),
		url:    webhookURL,
		logger: logger,
	}
}

// Alert posts the message. Failures are returned so the caller can log
// them, but escalation failure is never fatal to the scheduler.
func (n *WebhookNotifier) Alert(ctx context.Context, subject, message string) error {
	payload := map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", subject, message),
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook post failed with status %s", resp.Status())
	}

	n.logger.Info("Escalation alert delivered", zap.String("subject", subject))
	return nil
}
