package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailpilot/internal/api/handler"
)

// Handlers bundles the controllers the operator API mounts.
type Handlers struct {
	Auth  *handler.AuthHandler
	Sync  *handler.SyncController
	Reply *handler.ReplyController
	Admin *handler.AdminController
}

// NewRouter wires the operator API: health probes, metrics, login and the
// JWT-protected routes.
func NewRouter(h Handlers, jwtSecret string, db *pgxpool.Pool) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", readyHandler(db))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/login", h.Auth.Login)

	protected := r.Group("/")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.POST("/sync/start", h.Sync.StartSync)
		protected.POST("/replies/suggest", h.Reply.SuggestReply)
		protected.GET("/deadletters", h.Admin.ListDeadLetters)
		protected.GET("/continuations/failed", h.Admin.ListFailedContinuations)
		protected.POST("/continuations/:id/replay", h.Admin.ReplayContinuation)
	}

	return r
}

// NewWorkerRouter wires the worker's internal port: health probes, metrics
// and the live status register. Live status is served here because the
// register is in-process state of the running coordinators.
func NewWorkerRouter(status *handler.StatusController, db *pgxpool.Pool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", readyHandler(db))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", status.ListInstances)
	r.GET("/status/:id", status.GetStatus)

	return r
}

func readyHandler(db *pgxpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
