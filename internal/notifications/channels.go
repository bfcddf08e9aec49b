package notifications

import (
	"context"

	"sjfulfillment/internal/common/config"
	"sjfulfillment/internal/common/logger"
	"sjfulfillment/internal/models"
)

// EmailSender and SMSSender mirror the AWS client send methods, so tests can
// substitute mocks.
type EmailSender interface {
	SendEmail(ctx context.Context, from, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) error
}

// ChannelSender fans a direct notification out to email/SMS channels.
// Delivery here is best-effort; the notification row is already persisted.
type ChannelSender struct {
	cfg    config.NotificationConfig
	email  EmailSender
	sms    SMSSender
	logger logger.Logger
}

func NewChannelSender(cfg config.NotificationConfig, email EmailSender, sms SMSSender, log logger.Logger) *ChannelSender {
	return &ChannelSender{
		cfg:    cfg,
		email:  email,
		sms:    sms,
		logger: log.WithFields(map[string]interface{}{"component": "channel-sender"}),
	}
}

// Send attempts each enabled channel for which contact details exist.
// Failures are logged and swallowed.
func (c *ChannelSender) Send(ctx context.Context, email, phone string, n *models.Notification) {
	if c.cfg.EmailEnabled && c.email != nil && email != "" {
		if err := c.email.SendEmail(ctx, c.cfg.FromEmail, email, n.Title, n.Message); err != nil {
			c.logger.Error("email send failed", map[string]interface{}{
				"notificationId": n.ID,
				"error":          err.Error(),
			})
		}
	}

	if c.cfg.SMSEnabled && c.sms != nil && phone != "" {
		if err := c.sms.SendSMS(ctx, phone, n.Message); err != nil {
			c.logger.Error("SMS send failed", map[string]interface{}{
				"notificationId": n.ID,
				"error":          err.Error(),
			})
		}
	}
}
