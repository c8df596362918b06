package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpilot/internal/continuation"
	"mailpilot/internal/model"
)

const defaultListLimit = 50

// DeadLetterLister reads recently dead-lettered messages.
// *repository.DeadLetterRepository satisfies this.
type DeadLetterLister interface {
	ListRecent(ctx context.Context, limit int) ([]model.DeadLetter, error)
}

// ContinuationAdmin inspects and replays scheduled continuations.
// *continuation.Repository satisfies this.
type ContinuationAdmin interface {
	GetFailed(ctx context.Context, limit int) ([]*continuation.Continuation, error)
	Replay(ctx context.Context, id int64) error
}

// AdminController serves the operator recovery surface: dead letters and
// failed continuations.
type AdminController struct {
	deadLetters   DeadLetterLister
	continuations ContinuationAdmin
	logger        *zap.Logger
}

func NewAdminController(deadLetters DeadLetterLister, continuations ContinuationAdmin, logger *zap.Logger) *AdminController {
	return &AdminController{deadLetters: deadLetters, continuations: continuations, logger: logger}
}

func (h *AdminController) ListDeadLetters(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	letters, err := h.deadLetters.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list dead letters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list dead letters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dead_letters": letters})
}

func (h *AdminController) ListFailedContinuations(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	rows, err := h.continuations.GetFailed(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list failed continuations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list continuations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"continuations": rows})
}

// ReplayContinuation resets a failed continuation back to pending so the
// dispatcher picks it up on its next tick.
func (h *AdminController) ReplayContinuation(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid continuation id"})
		return
	}

	if err := h.continuations.Replay(c.Request.Context(), id); err != nil {
		h.logger.Error("Failed to replay continuation", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replay continuation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "replayed", "id": id})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}
