package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/internal/model"
	"mailpilot/pkg/logger"
)

// EventPublisher publishes onto the message bus. *mq.Publisher satisfies
// this.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Notifier is the fire-and-forget notification sink: alerts, notifications,
// follow-up tasks and signal links go out as MQ events. A publish failure is
// logged and dropped; it never fails the workflow that raised it.
type Notifier struct {
	publisher EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewNotifier(publisher EventPublisher, log *zap.Logger) *Notifier {
	return &Notifier{publisher: publisher, logger: log, now: time.Now}
}

func (n *Notifier) RaiseAlert(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult) {
	n.publish(ctx, contract.RoutingKeyAlertTriggered, contract.AlertPayload{
		UserID:    userID,
		MessageID: email.ID,
		Priority:  string(result.Priority),
		Subject:   email.Subject,
		Summary:   result.Summary,
		CreatedAt: n.now(),
	})
}

func (n *Notifier) NotifyImportant(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult) {
	n.publish(ctx, contract.RoutingKeyNotificationCreated, contract.AlertPayload{
		UserID:    userID,
		MessageID: email.ID,
		Priority:  string(result.Priority),
		Subject:   email.Subject,
		Summary:   result.Summary,
		CreatedAt: n.now(),
	})
}

func (n *Notifier) CreateTask(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult) {
	title := "Respond to: " + email.Subject
	if email.Subject == "" {
		title = "Respond to email from " + email.From
	}
	n.publish(ctx, contract.RoutingKeyTaskCreated, contract.TaskPayload{
		UserID:                userID,
		MessageID:             email.ID,
		Title:                 title,
		SuggestedAction:       result.SuggestedAction,
		EstimatedResponseTime: result.EstimatedResponseTime,
		CreatedAt:             n.now(),
	})
}

func (n *Notifier) LinkSignal(ctx context.Context, userID, messageID, symbol string) {
	n.publish(ctx, contract.RoutingKeySignalLinked, contract.SignalPayload{
		UserID:    userID,
		MessageID: messageID,
		Symbol:    symbol,
		CreatedAt: n.now(),
	})
}

func (n *Notifier) publish(ctx context.Context, routingKey string, payload any) {
	if err := n.publisher.PublishWithContext(ctx, routingKey, payload); err != nil {
		logger.WithTrace(ctx, n.logger).Warn("Dropping notification event",
			zap.String("routing_key", routingKey),
			zap.Error(err),
		)
	}
}
