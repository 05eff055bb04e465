// Package notifier delivers contract notifications and remembers which
// (contract, type, day) slots were already delivered.
package notifier

import (
	"context"
	"fmt"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"go.uber.org/zap"
)

// Channel names accepted in configuration
const (
	ChannelLog     = "log"
	ChannelWebhook = "webhook"
)

// Notifier delivers one notification
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
}

// New returns the notifier for the configured channel
func New(cfg *config.NotificationsConfig, logger *zap.Logger) (Notifier, error) {
	switch cfg.Channel {
	case "", ChannelLog:
		return NewLogNotifier(logger), nil
	case ChannelWebhook:
		return NewWebhookNotifier(cfg.WebhookURL, cfg.WebhookSecret, cfg.WebhookTimeoutDuration(), logger)
	default:
		return nil, domain.NewConfigurationError("notifications.channel", fmt.Sprintf("unknown channel %q", cfg.Channel))
	}
}

// LogNotifier writes notifications to the application log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	l.logger.Info("contract notification",
		zap.String("type", string(n.Type)),
		zap.String("contract_id", n.ContractID.String()),
		zap.String("company_id", string(n.CompanyID)),
		zap.Any("payload", n.Payload),
	)
	return nil
}
