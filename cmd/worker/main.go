package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/internal/ai"
	"mailpilot/internal/api/handler"
	"mailpilot/internal/api/httpserver"
	"mailpilot/internal/continuation"
	"mailpilot/internal/mailbox"
	"mailpilot/internal/mailsync"
	"mailpilot/internal/model"
	"mailpilot/internal/mqhandler"
	"mailpilot/internal/notify"
	"mailpilot/internal/reply"
	"mailpilot/internal/repository"
	"mailpilot/internal/retry"
	"mailpilot/internal/status"
	"mailpilot/internal/triage"
	"mailpilot/pkg/config"
	"mailpilot/pkg/db"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/mq"
	redisclient "mailpilot/pkg/redis"
	"mailpilot/pkg/util"
)

// threadLoader resolves the stored mailbox grant for a user before fetching
// a thread from the provider.
type threadLoader struct {
	client   *mailbox.Client
	profiles *repository.ProfileRepository
}

func (l *threadLoader) LoadThread(ctx context.Context, userID, threadID string) ([]model.EmailMessage, error) {
	profile, err := l.profiles.Get(ctx, userID)
	if err != nil {
		return nil, retry.Fatal(err)
	}
	return l.client.FetchThread(ctx, profile.Grant, threadID)
}

func main() {
	cfg, err := config.Load(config.GetConfigEnv(), "config")
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting worker service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	rdb := redisclient.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduperWithLogger(rdb, time.Hour, log)
	attempts := util.NewRetryCounter(rdb, 24*time.Hour)
	lease := util.NewLease(rdb, cfg.Sync.LeaseTTL)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	log.Info("DB ready")

	// repositories
	triageRepo := repository.NewTriageRepository(dbConn)
	suggestionRepo := repository.NewSuggestionRepository(dbConn)
	auditRepo := repository.NewAuditRepository(dbConn)
	watchlistRepo := repository.NewWatchlistRepository(dbConn)
	checkpointRepo := repository.NewCheckpointRepository(dbConn)
	deadLetterRepo := repository.NewDeadLetterRepository(dbConn)
	profileRepo := repository.NewProfileRepository(dbConn)
	continuationRepo := continuation.NewRepository(dbConn)

	// publisher (notifications, continuations, DLQ)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Publisher init failed", zap.Error(err))
	}
	defer publisher.Close()

	// upstream clients
	aiClient := ai.NewClient(cfg.AI)
	mailboxClient := mailbox.NewClient(cfg.Mailbox)
	notifier := notify.NewNotifier(publisher, log)

	policy := retry.Policy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		MaxDelay:   cfg.Retry.MaxDelay,
	}
	invoker := retry.NewInvoker(log)

	// coordinators
	triageCoordinator := triage.NewCoordinator(aiClient, triageRepo, notifier, invoker, triage.Config{
		BatchSize:      cfg.Sync.BatchSize,
		BatchDelay:     cfg.Sync.BatchDelay,
		ClassifyPolicy: policy,
		StorePolicy:    policy,
	}, log)

	register := status.NewRegister()
	syncCoordinator := mailsync.NewCoordinator(
		mailboxClient, triageCoordinator, triageRepo, watchlistRepo,
		checkpointRepo, deadLetterRepo, auditRepo, continuationRepo,
		lease, attempts, register, invoker,
		mailsync.Config{
			PageSize:        cfg.Sync.PageSize,
			ContinueAfter:   cfg.Sync.Interval,
			PoisonThreshold: cfg.Sync.PoisonThreshold,
			FetchPolicy:     policy,
			StorePolicy:     policy,
		}, log)

	replyCoordinator := reply.NewCoordinator(
		&threadLoader{client: mailboxClient, profiles: profileRepo},
		profileRepo, aiClient, suggestionRepo, auditRepo, invoker,
		reply.Config{
			LoadPolicy:     policy,
			GeneratePolicy: policy,
			StorePolicy:    policy,
		}, log)

	// handlers
	syncHandler := mqhandler.NewSyncHandler(syncCoordinator, deduper, publisher, log)
	replyHandler := mqhandler.NewReplyHandler(replyCoordinator, attempts, publisher, log)

	// -------------------------
	// Sync Start Consumer
	// -------------------------
	log.Info("Init consumer: sync.start.q")
	consumerStart, err := mq.NewConsumer(cfg.MQ.URL, "sync.start.q", contract.RoutingKeySyncStart, log)
	if err != nil {
		log.Fatal("Sync-start consumer init failed", zap.Error(err))
	}
	consumerStart.SetHandler(syncHandler.Handle(contract.RoutingKeySyncStart))
	go func() {
		if err := consumerStart.StartConsuming(); err != nil {
			log.Fatal("Sync-start consumer crashed", zap.Error(err))
		}
	}()
	defer consumerStart.Close()

	// -------------------------
	// Sync Continue Consumer
	// -------------------------
	log.Info("Init consumer: sync.continue.q")
	consumerContinue, err := mq.NewConsumer(cfg.MQ.URL, "sync.continue.q", contract.RoutingKeySyncContinue, log)
	if err != nil {
		log.Fatal("Sync-continue consumer init failed", zap.Error(err))
	}
	consumerContinue.SetHandler(syncHandler.Handle(contract.RoutingKeySyncContinue))
	go func() {
		if err := consumerContinue.StartConsuming(); err != nil {
			log.Fatal("Sync-continue consumer crashed", zap.Error(err))
		}
	}()
	defer consumerContinue.Close()

	// -------------------------
	// Reply Requested Consumer
	// -------------------------
	log.Info("Init consumer: reply.requested.q")
	consumerReply, err := mq.NewConsumer(cfg.MQ.URL, "reply.requested.q", contract.RoutingKeyReplyRequested, log)
	if err != nil {
		log.Fatal("Reply consumer init failed", zap.Error(err))
	}
	consumerReply.SetHandler(replyHandler.Handle)
	go func() {
		if err := consumerReply.StartConsuming(); err != nil {
			log.Fatal("Reply consumer crashed", zap.Error(err))
		}
	}()
	defer consumerReply.Close()

	// continuation dispatcher
	dispatcher := continuation.NewDispatcher(continuationRepo, publisher, log)
	go dispatcher.Start(ctx)

	// internal port: health, metrics, live status
	statusController := handler.NewStatusController(register)
	router := httpserver.NewWorkerRouter(statusController, dbConn)
	go func() {
		if err := router.Run(cfg.Server.WorkerPort); err != nil {
			log.Fatal("Worker HTTP server crashed", zap.Error(err))
		}
	}()

	log.Info("Worker running")
	<-ctx.Done()
	log.Info("Shutting down worker")
}
