package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
)

// ReplyController enqueues smart-reply requests.
type ReplyController struct {
	publisher EventPublisher
	logger    *zap.Logger
}

func NewReplyController(publisher EventPublisher, logger *zap.Logger) *ReplyController {
	return &ReplyController{publisher: publisher, logger: logger}
}

type suggestReplyRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	ThreadID string `json:"thread_id" binding:"required"`
}

func (h *ReplyController) SuggestReply(c *gin.Context) {
	var req suggestReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	payload := contract.ReplyRequestedPayload{
		RequestID:   uuid.NewString(),
		UserID:      req.UserID,
		ThreadID:    req.ThreadID,
		RequestedAt: time.Now(),
	}

	if err := h.publisher.PublishWithContext(c.Request.Context(), contract.RoutingKeyReplyRequested, payload); err != nil {
		h.logger.Error("Failed to publish reply request", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to enqueue reply request"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"request_id": payload.RequestID})
}
