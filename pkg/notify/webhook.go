package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pion/logging"
)

// DefaultWebhookTimeout bounds a single webhook delivery.
const DefaultWebhookTimeout = 10 * time.Second

// WebhookConfig configures a WebhookNotifier.
type WebhookConfig struct {
	// URL receives a JSON POST per alert. Required.
	URL string

	// Headers are added to every request, e.g. an authorization token.
	Headers map[string]string

	// Timeout bounds each request. Default: DefaultWebhookTimeout.
	Timeout time.Duration

	// RetryCount is the number of retries after a failed request.
	RetryCount int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// WebhookNotifier posts alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	http *resty.Client
	url  string
	log  logging.LeveledLogger
}

// NewWebhookNotifier creates a WebhookNotifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, ErrURLRequired
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultWebhookTimeout
	}

	r := resty.New()
	r.SetTimeout(config.Timeout)
	r.SetRetryCount(config.RetryCount)
	r.SetHeader("Content-Type", "application/json")
	r.SetHeader("Accept", "application/json")
	r.SetHeaders(config.Headers)

	n := &WebhookNotifier{http: r, url: config.URL}
	if config.LoggerFactory != nil {
		n.log = config.LoggerFactory.NewLogger("notify-webhook")
	}
	return n, nil
}

// Notify implements Notifier.
func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(alert).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	if resp.IsError() {
		if n.log != nil {
			n.log.Warnf("webhook %s answered %s", n.url, resp.Status())
		}
		return fmt.Errorf("%w: status %d", ErrDeliveryFailed, resp.StatusCode())
	}
	return nil
}

// Verify WebhookNotifier implements Notifier.
var _ Notifier = (*WebhookNotifier)(nil)
