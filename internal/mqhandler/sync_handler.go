package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/pkg/logger"
)

// SyncRunner runs one sync epoch to its terminal state.
type SyncRunner interface {
	Run(ctx context.Context, req contract.SyncRequestedPayload) error
}

// DLQPublisher parks poison messages. *mq.Publisher satisfies this.
type DLQPublisher interface {
	PublishToDLQ(routingKey string, payload []byte, originalError string) error
}

// Deduper drops broker redeliveries of an already-seen id.
// *util.Deduper satisfies this.
type Deduper interface {
	AcquireOnce(ctx context.Context, handler, id string) bool
}

// SyncHandler consumes sync.start and sync.continue messages. Corrupt
// payloads go straight to the DLQ instead of looping forever; everything
// else is acked, since the coordinator owns retrying and terminal states.
type SyncHandler struct {
	runner  SyncRunner
	deduper Deduper
	dlq     DLQPublisher
	logger  *zap.Logger
}

func NewSyncHandler(runner SyncRunner, deduper Deduper, dlq DLQPublisher, log *zap.Logger) *SyncHandler {
	return &SyncHandler{
		runner:  runner,
		deduper: deduper,
		dlq:     dlq,
		logger:  log,
	}
}

// Handle processes one sync request. Bound to both sync routing keys.
func (h *SyncHandler) Handle(routingKey string) func(ctx context.Context, raw json.RawMessage) error {
	return func(ctx context.Context, raw json.RawMessage) error {
		log := logger.WithTrace(ctx, h.logger)

		var p contract.SyncRequestedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			log.Error("Failed to unmarshal sync payload, sending to DLQ",
				zap.String("routing_key", routingKey),
				zap.Error(err),
			)
			if dlqErr := h.dlq.PublishToDLQ(routingKey, raw, err.Error()); dlqErr != nil {
				log.Error("Failed to publish to DLQ", zap.Error(dlqErr))
			}
			return nil // ack: redelivery cannot fix a corrupt payload
		}

		// Broker redeliveries of the same instance are dropped; the epoch
		// lease still guards concurrent instances for the same mailbox.
		if p.InstanceID != "" && !h.deduper.AcquireOnce(ctx, "sync", p.InstanceID) {
			log.Info("Skipped duplicated sync request",
				zap.String("instance_id", p.InstanceID),
				zap.String("mailbox_id", p.MailboxID),
			)
			return nil
		}

		log.Info("Processing sync request",
			zap.String("routing_key", routingKey),
			zap.String("instance_id", p.InstanceID),
			zap.String("mailbox_id", p.MailboxID),
			zap.Int("epoch", p.Epoch),
		)

		// The coordinator owns all retrying; an error here is a terminal
		// Failed epoch, already audited. Redelivery would be deduped anyway,
		// so ack and leave recovery to the operator replay endpoint.
		if err := h.runner.Run(ctx, p); err != nil {
			log.Error("Sync epoch failed terminally",
				zap.String("instance_id", p.InstanceID),
				zap.Error(err),
			)
		}
		return nil
	}
}
