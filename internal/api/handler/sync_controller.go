package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
)

// EventPublisher publishes workflow requests onto the message bus.
// *mq.Publisher satisfies this.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// SyncController starts sync epochs.
type SyncController struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func NewSyncController(publisher EventPublisher, logger *zap.Logger) *SyncController {
	return &SyncController{publisher: publisher, logger: logger}
}

type startSyncRequest struct {
	MailboxID string `json:"mailbox_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	Grant     string `json:"grant" binding:"required"`
	Cursor    string `json:"cursor"`
	Ongoing   bool   `json:"ongoing"`
}

// StartSync enqueues a sync.start message and returns the instance id the
// caller can poll on the worker's status port.
func (h *SyncController) StartSync(c *gin.Context) {
	var req startSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	payload := contract.SyncRequestedPayload{
		InstanceID:  uuid.NewString(),
		MailboxID:   req.MailboxID,
		UserID:      req.UserID,
		Grant:       req.Grant,
		Cursor:      req.Cursor,
		Epoch:       1,
		Ongoing:     req.Ongoing,
		RequestedAt: time.Now(),
	}

	if err := h.publisher.PublishWithContext(c.Request.Context(), contract.RoutingKeySyncStart, payload); err != nil {
		h.logger.Error("Failed to publish sync request", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue sync"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"instance_id": payload.InstanceID})
}
