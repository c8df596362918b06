package main

import (
	"go.uber.org/zap"

	"mailpilot/internal/api/handler"
	"mailpilot/internal/api/httpserver"
	"mailpilot/internal/continuation"
	"mailpilot/internal/repository"
	"mailpilot/pkg/config"
	"mailpilot/pkg/db"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/mq"
)

func main() {
	cfg, err := config.Load(config.GetConfigEnv(), "config")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init RabbitMQ Publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	// Init Repositories
	deadLetterRepo := repository.NewDeadLetterRepository(dbConn)
	continuationRepo := continuation.NewRepository(dbConn)

	// Init Handlers
	handlers := httpserver.Handlers{
		Auth:  handler.NewAuthHandler(cfg.Auth, log),
		Sync:  handler.NewSyncController(publisher, log),
		Reply: handler.NewReplyController(publisher, log),
		Admin: handler.NewAdminController(deadLetterRepo, continuationRepo, log),
	}

	// Router
	router := httpserver.NewRouter(handlers, cfg.Auth.JWTSecret, dbConn)

	// Start API server
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatal("server start failed", zap.Error(err))
	}
}
