package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-autotrade/internal/logger"
	"github.com/rxtech-lab/argo-autotrade/pkg/errors"
	"go.uber.org/zap"
)

const discordTimeout = 10 * time.Second

// DiscordSink posts urgent messages to a Discord webhook.
type DiscordSink struct {
	client     *resty.Client
	webhookURL string
	log        *logger.Logger
	now        func() time.Time
}

// DiscordOption customizes a DiscordSink.
type DiscordOption func(*DiscordSink)

// WithClock overrides the timestamp source used for the message prefix.
func WithClock(now func() time.Time) DiscordOption {
	return func(d *DiscordSink) {
		d.now = now
	}
}

// WithHTTPClient replaces the underlying resty client.
func WithHTTPClient(client *resty.Client) DiscordOption {
	return func(d *DiscordSink) {
		d.client = client
	}
}

func NewDiscordSink(webhookURL string, log *logger.Logger, opts ...DiscordOption) *DiscordSink {
	d := &DiscordSink{
		client:     resty.New().SetTimeout(discordTimeout),
		webhookURL: webhookURL,
		log:        log.Named("discord"),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

type discordPayload struct {
	Content string `json:"content"`
}

// Notify posts urgent messages only. Failures are logged and dropped.
func (d *DiscordSink) Notify(ctx context.Context, text string, urgent bool) {
	if !urgent || d.webhookURL == "" {
		return
	}

	if err := d.Post(ctx, text); err != nil && d.log != nil {
		d.log.Warn("Failed to deliver discord notification", zap.Error(err))
	}
}

// Post sends a single message with a "[YYYY-MM-DD HH:MM:SS]" prefix.
func (d *DiscordSink) Post(ctx context.Context, text string) error {
	payload := discordPayload{
		Content: fmt.Sprintf("[%s] %s", d.now().Format(time.DateTime), text),
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(d.webhookURL)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNotificationFailed, "discord webhook request failed", err)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeNotificationFailed, "discord returned status: %d", resp.StatusCode())
	}

	return nil
}
