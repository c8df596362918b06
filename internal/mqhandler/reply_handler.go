package mqhandler

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/internal/model"
	"mailpilot/internal/retry"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/util"
)

// Suggester produces reply suggestions for a thread.
type Suggester interface {
	Suggest(ctx context.Context, userID, threadID string) ([]model.ReplySuggestion, error)
}

// AttemptCounter bounds redeliveries of one request.
// *util.RetryCounter satisfies this.
type AttemptCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

const maxReplyDeliveries = 5

// ReplyHandler consumes reply.requested messages. Transient failures are
// nacked for redelivery; a request that keeps failing is parked on the DLQ
// after maxReplyDeliveries attempts.
type ReplyHandler struct {
	suggester Suggester
	attempts  AttemptCounter
	dlq       DLQPublisher
	logger    *zap.Logger
}

func NewReplyHandler(suggester Suggester, attempts AttemptCounter, dlq DLQPublisher, log *zap.Logger) *ReplyHandler {
	return &ReplyHandler{
		suggester: suggester,
		attempts:  attempts,
		dlq:       dlq,
		logger:    log,
	}
}

func (h *ReplyHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	log := logger.WithTrace(ctx, h.logger)

	var p contract.ReplyRequestedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error("Failed to unmarshal reply payload, sending to DLQ", zap.Error(err))
		if dlqErr := h.dlq.PublishToDLQ(contract.RoutingKeyReplyRequested, raw, err.Error()); dlqErr != nil {
			log.Error("Failed to publish to DLQ", zap.Error(dlqErr))
		}
		return nil
	}

	log.Info("Processing reply request",
		zap.String("request_id", p.RequestID),
		zap.String("thread_id", p.ThreadID),
		zap.String("user_id", p.UserID),
	)

	suggestions, err := h.suggester.Suggest(ctx, p.UserID, p.ThreadID)
	if err == nil {
		if resetErr := h.attempts.Reset(ctx, util.FormatRetryKey("reply", p.RequestID)); resetErr != nil {
			log.Warn("Failed to reset reply attempt counter", zap.Error(resetErr))
		}
		log.Info("Reply request completed",
			zap.String("request_id", p.RequestID),
			zap.Int("suggestions", len(suggestions)),
		)
		return nil
	}

	if !retry.IsRetryable(err) {
		// Empty thread, bad request and the like: redelivery cannot help.
		log.Error("Reply request failed terminally",
			zap.String("request_id", p.RequestID),
			zap.Error(err),
		)
		return nil
	}

	count, cntErr := h.attempts.IncrementAndGet(ctx, util.FormatRetryKey("reply", p.RequestID))
	if cntErr != nil {
		log.Warn("Failed to track reply attempt count", zap.Error(cntErr))
		return err
	}
	if count >= maxReplyDeliveries {
		log.Error("Reply request exceeded redelivery budget, sending to DLQ",
			zap.String("request_id", p.RequestID),
			zap.Int64("attempts", count),
			zap.Error(err),
		)
		if dlqErr := h.dlq.PublishToDLQ(contract.RoutingKeyReplyRequested, raw, err.Error()); dlqErr != nil {
			log.Error("Failed to publish to DLQ", zap.Error(dlqErr))
			return err // keep redelivering rather than lose the request
		}
		if resetErr := h.attempts.Reset(ctx, util.FormatRetryKey("reply", p.RequestID)); resetErr != nil {
			log.Warn("Failed to reset reply attempt counter", zap.Error(resetErr))
		}
		return nil
	}
	return err
}
