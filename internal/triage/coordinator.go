package triage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailpilot/internal/batch"
	"mailpilot/internal/model"
	"mailpilot/internal/retry"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/metrics"
)

// Classifier is the AI classification collaborator. It is only ever called
// through the retrying invoker.
type Classifier interface {
	Classify(ctx context.Context, subject, body, from string) (model.Classification, error)
}

// ResultStore persists triage results as idempotent upserts keyed by
// message id.
type ResultStore interface {
	UpsertResult(ctx context.Context, userID string, result model.TriageResult) error
}

// Notifier is the fire-and-forget notification sink. Implementations log
// their own failures; nothing here may fail the pipeline.
type Notifier interface {
	RaiseAlert(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult)
	NotifyImportant(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult)
	CreateTask(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult)
	LinkSignal(ctx context.Context, userID, messageID, symbol string)
}

// Config tunes batch-mode execution.
type Config struct {
	BatchSize      int
	BatchDelay     time.Duration
	ClassifyPolicy retry.Policy
	StorePolicy    retry.Policy
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      5,
		BatchDelay:     500 * time.Millisecond,
		ClassifyPolicy: retry.DefaultPolicy(),
		StorePolicy:    retry.DefaultPolicy(),
	}
}

// Coordinator runs the per-email triage pipeline: AI classification with a
// degrade-not-fail default, local heuristics, persistence and side effects.
type Coordinator struct {
	classifier Classifier
	store      ResultStore
	notifier   Notifier
	invoker    *retry.Invoker
	cfg        Config
	logger     *zap.Logger

	now func() time.Time
}

func NewCoordinator(
	classifier Classifier,
	store ResultStore,
	notifier Notifier,
	invoker *retry.Invoker,
	cfg Config,
	log *zap.Logger,
) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 500 * time.Millisecond
	}
	return &Coordinator{
		classifier: classifier,
		store:      store,
		notifier:   notifier,
		invoker:    invoker,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// Process triages one email. A TriageResult is always produced: AI failures
// after exhausted retries degrade to a conservative default instead of
// failing the pipeline. The returned error is non-nil only when the result
// could not be persisted.
func (c *Coordinator) Process(ctx context.Context, userID string, email model.EmailMessage, watchlist []string) (model.TriageResult, error) {
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("message_id", email.ID),
		zap.String("user_id", userID),
	)

	log.Debug("Triage pipeline started", zap.String("phase", "analyzing"))

	classification, degraded := c.classify(ctx, email, log)

	log.Debug("Running local extraction", zap.String("phase", "extracting"))
	entities := ExtractEntities(email.Subject, email.Body)
	sentiment, sentimentConfidence := ScoreSentiment(email.Subject, email.Body)

	log.Debug("Running local classification", zap.String("phase", "classifying"))
	category := ClassifyCategory(email.Subject, email.Body)
	priority, priorityConfidence := DetectUrgency(email.Subject, email.Body, classification.Priority)

	candidates := ExtractTickerCandidates(email.Subject, email.Body, classification.Tickers)
	tickers := CrossReferenceTickers(candidates, watchlist)

	result := model.TriageResult{
		MessageID:             email.ID,
		ThreadID:              email.ThreadID,
		Priority:              priority,
		PriorityConfidence:    priorityConfidence,
		Category:              category,
		Summary:               classification.Summary,
		SuggestedAction:       classification.SuggestedAction,
		Tickers:               tickers,
		Sentiment:             sentiment,
		SentimentConfidence:   sentimentConfidence,
		Entities:              entities,
		RequiresResponse:      classification.RequiresResponse,
		EstimatedResponseTime: classification.EstimatedResponseTime,
		Degraded:              degraded,
		TriagedAt:             c.now(),
	}

	metrics.TriageResultCount.WithLabelValues(string(result.Priority), fmt.Sprintf("%t", degraded)).Inc()

	if err := c.invoker.Invoke(ctx, "store-triage-result", c.cfg.StorePolicy, func(ctx context.Context) error {
		return c.store.UpsertResult(ctx, userID, result)
	}); err != nil {
		log.Error("Failed to persist triage result", zap.Error(err))
		return result, fmt.Errorf("failed to persist triage result for %s: %w", email.ID, err)
	}

	c.applySideEffects(ctx, userID, email, result, log)

	log.Debug("Triage pipeline completed",
		zap.String("phase", "completed"),
		zap.String("priority", string(result.Priority)),
		zap.String("category", string(result.Category)),
		zap.Bool("degraded", degraded),
	)
	return result, nil
}

// classify calls the AI service through the invoker. Exhausted retries
// degrade to a conservative default: blocking ingestion is worse than an
// imprecise classification.
func (c *Coordinator) classify(ctx context.Context, email model.EmailMessage, log *zap.Logger) (model.Classification, bool) {
	classification, err := retry.Invoke(ctx, c.invoker, "ai-classify", c.cfg.ClassifyPolicy, func(ctx context.Context) (model.Classification, error) {
		return c.classifier.Classify(ctx, email.Subject, email.Body, email.From)
	})
	if err == nil {
		return classification, false
	}

	log.Warn("AI classification failed, substituting default result", zap.Error(err))
	return defaultClassification(email), true
}

// defaultClassification is the conservative fallback when the classifier is
// unavailable.
func defaultClassification(email model.EmailMessage) model.Classification {
	summary := email.Subject
	if summary == "" {
		summary = "(no subject)"
	}
	return model.Classification{
		Priority:              string(model.PriorityNormal),
		Category:              string(model.CategoryGeneral),
		Summary:               summary,
		SuggestedAction:       "review manually",
		RequiresResponse:      false,
		EstimatedResponseTime: "",
	}
}

// applySideEffects raises alerts/notifications/tasks and links confirmed
// signals. All fire-and-forget.
func (c *Coordinator) applySideEffects(ctx context.Context, userID string, email model.EmailMessage, result model.TriageResult, log *zap.Logger) {
	switch result.Priority {
	case model.PriorityUrgent:
		c.notifier.RaiseAlert(ctx, userID, email, result)
	case model.PriorityImportant:
		c.notifier.NotifyImportant(ctx, userID, email, result)
	}

	if result.RequiresResponse || result.Priority == model.PriorityUrgent {
		c.notifier.CreateTask(ctx, userID, email, result)
	}

	for _, symbol := range result.ConfirmedSignals() {
		c.notifier.LinkSignal(ctx, userID, email.ID, symbol)
		log.Info("Linked trading signal",
			zap.String("symbol", symbol),
		)
	}
}

// ProcessBatch triages a page of emails in concurrency-limited sub-batches
// with a fixed inter-batch delay, emitting one heartbeat per sub-batch
// boundary. Per-item failures land in their result slot; siblings proceed.
func (c *Coordinator) ProcessBatch(
	ctx context.Context,
	userID string,
	emails []model.EmailMessage,
	watchlist []string,
	heartbeat func(ctx context.Context, detail string),
) ([]batch.Result[model.TriageResult], error) {
	opts := batch.Options{
		ChunkSize:       c.cfg.BatchSize,
		InterChunkDelay: c.cfg.BatchDelay,
		Heartbeat:       heartbeat,
		Logger:          c.logger,
	}
	return batch.Process(ctx, emails, opts, func(ctx context.Context, email model.EmailMessage) (model.TriageResult, error) {
		return c.Process(ctx, userID, email, watchlist)
	})
}
