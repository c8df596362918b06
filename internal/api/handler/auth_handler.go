package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailpilot/pkg/config"
	"mailpilot/pkg/util"
)

// AuthHandler issues operator JWTs. There is no self-service registration:
// the operator token is provisioned as a bcrypt hash in config.
type AuthHandler struct {
	cfg    config.AuthConfig
	logger *zap.Logger
}

func NewAuthHandler(cfg config.AuthConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, logger: logger}
}

type loginRequest struct {
	Operator string `json:"operator" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := util.CheckPassword(h.cfg.OperatorTokenHash, req.Token); err != nil {
		h.logger.Warn("Rejected operator login", zap.String("operator", req.Operator))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := util.GenerateJWT(req.Operator, h.cfg.JWTSecret)
	if err != nil {
		h.logger.Error("Failed to sign token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
