package mailsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
	"mailpilot/internal/batch"
	"mailpilot/internal/model"
	"mailpilot/internal/retry"
	"mailpilot/internal/status"
	"mailpilot/pkg/logger"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/util"
)

// MailboxProvider pages through a mailbox. An empty NextCursor signals
// end-of-mailbox.
type MailboxProvider interface {
	FetchPage(ctx context.Context, grant, cursor string, limit int) (model.MailboxPage, error)
}

// Triager runs the triage batch for one page of fresh messages.
type Triager interface {
	ProcessBatch(ctx context.Context, userID string, emails []model.EmailMessage, watchlist []string, heartbeat func(ctx context.Context, detail string)) ([]batch.Result[model.TriageResult], error)
}

// MessageStore probes which message ids already have stored triage results.
type MessageStore interface {
	ExistingMessageIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

// WatchlistStore looks up the user's ticker watch-list.
type WatchlistStore interface {
	Lookup(ctx context.Context, userID string) ([]string, error)
}

// CheckpointStore persists the per-mailbox resume state.
type CheckpointStore interface {
	Upsert(ctx context.Context, cp model.SyncCheckpoint) error
}

// DeadLetterStore records poison messages and filters them out of re-triage.
type DeadLetterStore interface {
	Insert(ctx context.Context, dl model.DeadLetter) error
	Poisoned(ctx context.Context, mailboxID string, ids []string) (map[string]bool, error)
}

// AuditLog appends to the append-only audit trail.
type AuditLog interface {
	Append(ctx context.Context, record model.AuditRecord) error
}

// Scheduler enqueues the next epoch of an ongoing sync.
type Scheduler interface {
	Schedule(ctx context.Context, payload contract.SyncRequestedPayload, runAt time.Time) error
}

// EpochLease guards at-most-one active epoch per mailbox identity.
// *util.Lease satisfies this.
type EpochLease interface {
	Acquire(ctx context.Context, name, identity, holder string) (bool, error)
	Refresh(ctx context.Context, name, identity string) error
	Release(ctx context.Context, name, identity, holder string) error
}

// AttemptCounter tracks cross-epoch per-message failure counts.
// *util.RetryCounter satisfies this.
type AttemptCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

const (
	leaseName         = "sync"
	triageAttemptName = "triage"
)

// Config tunes one sync coordinator.
type Config struct {
	PageSize        int
	ContinueAfter   time.Duration
	PoisonThreshold int64
	FetchPolicy     retry.Policy
	StorePolicy     retry.Policy
}

func DefaultConfig() Config {
	return Config{
		PageSize:        50,
		ContinueAfter:   5 * time.Minute,
		PoisonThreshold: 3,
		FetchPolicy:     retry.DefaultPolicy(),
		StorePolicy:     retry.DefaultPolicy(),
	}
}

// Coordinator drives one mailbox sync epoch: page fetch, dedupe, triage
// batches, checkpointing and continuation scheduling. State machine is
// Syncing -> Processing -> {Completed, Failed}.
type Coordinator struct {
	mailbox     MailboxProvider
	triager     Triager
	store       MessageStore
	watchlists  WatchlistStore
	checkpoints CheckpointStore
	deadletters DeadLetterStore
	audit       AuditLog
	scheduler   Scheduler
	lease       EpochLease
	attempts    AttemptCounter
	register    *status.Register
	invoker     *retry.Invoker
	cfg         Config
	logger      *zap.Logger

	now   func() time.Time
	newID func() string
}

func NewCoordinator(
	mailbox MailboxProvider,
	triager Triager,
	store MessageStore,
	watchlists WatchlistStore,
	checkpoints CheckpointStore,
	deadletters DeadLetterStore,
	audit AuditLog,
	scheduler Scheduler,
	lease EpochLease,
	attempts AttemptCounter,
	register *status.Register,
	invoker *retry.Invoker,
	cfg Config,
	log *zap.Logger,
) *Coordinator {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.ContinueAfter <= 0 {
		cfg.ContinueAfter = 5 * time.Minute
	}
	if cfg.PoisonThreshold <= 0 {
		cfg.PoisonThreshold = 3
	}
	return &Coordinator{
		mailbox:     mailbox,
		triager:     triager,
		store:       store,
		watchlists:  watchlists,
		checkpoints: checkpoints,
		deadletters: deadletters,
		audit:       audit,
		scheduler:   scheduler,
		lease:       lease,
		attempts:    attempts,
		register:    register,
		invoker:     invoker,
		cfg:         cfg,
		logger:      log,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Run executes one sync epoch to its terminal state. A request that loses
// the epoch lease race is dropped without error; everything else runs until
// Completed or Failed.
func (c *Coordinator) Run(ctx context.Context, req contract.SyncRequestedPayload) error {
	if req.InstanceID == "" {
		req.InstanceID = c.newID()
	}
	log := logger.WithTrace(ctx, c.logger).With(
		zap.String("instance_id", req.InstanceID),
		zap.String("mailbox_id", req.MailboxID),
		zap.Int("epoch", req.Epoch),
	)

	acquired, err := c.lease.Acquire(ctx, leaseName, req.MailboxID, req.InstanceID)
	if err != nil {
		// Lease store outage: proceed rather than stall ingestion.
		log.Warn("Epoch lease check unavailable, proceeding", zap.Error(err))
	} else if !acquired {
		log.Warn("Another epoch already active for this mailbox, dropping request")
		return nil
	}
	defer func() {
		if err := c.lease.Release(context.WithoutCancel(ctx), leaseName, req.MailboxID, req.InstanceID); err != nil {
			log.Warn("Failed to release epoch lease", zap.Error(err))
		}
	}()

	track := newTracker(req.InstanceID, req.MailboxID, req.Epoch, req.Cursor, c.now)
	// Registered before the first page fetch so pollers see the epoch from
	// the start. The snapshot outlives the run for operators.
	c.register.Register(req.InstanceID, func() any { return track.Snapshot() })

	watchlist := c.loadWatchlist(ctx, req.UserID, log)

	if err := c.runPages(ctx, req, track, watchlist, log); err != nil {
		track.SetPhase(model.PhaseFailed)
		c.appendAudit(ctx, req, "sync.failed", err.Error(), log)
		log.Error("Sync epoch failed", zap.Error(err))
		return err
	}

	track.SetPhase(model.PhaseCompleted)
	snap := track.Snapshot()
	c.appendAudit(ctx, req, "sync.completed",
		fmt.Sprintf("fetched=%d processed=%d triaged=%d errors=%d",
			snap.EmailsFetched, snap.EmailsProcessed, snap.EmailsTriaged, len(snap.Errors)),
		log)

	if req.Ongoing {
		c.scheduleContinuation(ctx, req, snap.Cursor, log)
	}

	log.Info("Sync epoch completed",
		zap.Int("emails_fetched", snap.EmailsFetched),
		zap.Int("emails_processed", snap.EmailsProcessed),
		zap.Int("item_errors", len(snap.Errors)),
	)
	return nil
}

// runPages drives the page loop until end-of-mailbox. Returned errors are
// terminal: fetch or store retry exhaustion.
func (c *Coordinator) runPages(ctx context.Context, req contract.SyncRequestedPayload, track *tracker, watchlist []string, log *zap.Logger) error {
	cursor := req.Cursor
	for {
		page, err := retry.Invoke(ctx, c.invoker, "fetch-page", c.cfg.FetchPolicy, func(ctx context.Context) (model.MailboxPage, error) {
			return c.mailbox.FetchPage(ctx, req.Grant, cursor, c.cfg.PageSize)
		})
		if err != nil {
			return fmt.Errorf("page fetch failed at cursor %q: %w", cursor, err)
		}

		if len(page.Items) > 0 {
			if track.Phase() == model.PhaseSyncing {
				track.SetPhase(model.PhaseProcessing)
			}
			track.AddFetched(len(page.Items))
			metrics.EmailsFetchedCount.Add(float64(len(page.Items)))

			if err := c.processPage(ctx, req, track, page.Items, watchlist, log); err != nil {
				return err
			}
		}

		// The cursor advances only after this page's results are durably
		// stored; a restart replays at most one page.
		track.SetCursor(page.NextCursor)
		if err := c.invoker.Invoke(ctx, "store-checkpoint", c.cfg.StorePolicy, func(ctx context.Context) error {
			return c.checkpoints.Upsert(ctx, track.Checkpoint())
		}); err != nil {
			return fmt.Errorf("checkpoint store failed: %w", err)
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// processPage dedupes one page against the store and the dead-letter table,
// then triages the fresh remainder in batches.
func (c *Coordinator) processPage(ctx context.Context, req contract.SyncRequestedPayload, track *tracker, items []model.EmailMessage, watchlist []string, log *zap.Logger) error {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	existing, err := retry.Invoke(ctx, c.invoker, "probe-existing", c.cfg.StorePolicy, func(ctx context.Context) (map[string]bool, error) {
		return c.store.ExistingMessageIDs(ctx, ids)
	})
	if err != nil {
		return fmt.Errorf("existence probe failed: %w", err)
	}

	poisoned, err := c.deadletters.Poisoned(ctx, req.MailboxID, ids)
	if err != nil {
		// Conservative: without the filter poison items get re-attempted,
		// which the idempotent upserts make safe.
		log.Warn("Dead-letter filter unavailable, re-attempting all items", zap.Error(err))
		poisoned = nil
	}

	fresh := make([]model.EmailMessage, 0, len(items))
	for _, item := range items {
		if existing[item.ID] || poisoned[item.ID] {
			// Already stored or pulled from the retry loop: counts as
			// processed, no re-triage.
			track.AddProcessed(1)
			metrics.IncrementEmailProcessed("skipped")
			continue
		}
		fresh = append(fresh, item)
	}
	if len(fresh) == 0 {
		return nil
	}

	heartbeat := func(ctx context.Context, detail string) {
		metrics.HeartbeatCount.WithLabelValues("sync").Inc()
		track.Touch()
		if err := c.lease.Refresh(ctx, leaseName, req.MailboxID); err != nil {
			log.Warn("Failed to refresh epoch lease", zap.Error(err))
		}
		log.Debug("Heartbeat", zap.String("detail", detail))
	}

	results, err := c.triager.ProcessBatch(ctx, req.UserID, fresh, watchlist, heartbeat)
	if err != nil {
		return fmt.Errorf("triage batch aborted: %w", err)
	}

	for i, res := range results {
		msg := fresh[i]
		if res.Err != nil {
			track.RecordError(msg.ID, "triage", res.Err.Error())
			metrics.IncrementEmailProcessed("failed")
			c.handlePoison(ctx, req, msg, res.Err, log)
			continue
		}

		track.AddProcessed(1)
		track.AddTriaged(1)
		metrics.IncrementEmailProcessed("success")
		if res.Value.Priority == model.PriorityUrgent {
			track.AddAlerts(1)
		}
		track.AddSignals(len(res.Value.ConfirmedSignals()))

		if err := c.attempts.Reset(ctx, util.FormatRetryKey(triageAttemptName, msg.ID)); err != nil {
			log.Warn("Failed to reset attempt counter", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	return nil
}

// handlePoison bumps the cross-epoch failure counter and pulls the item out
// of the retry loop once it crosses the threshold.
func (c *Coordinator) handlePoison(ctx context.Context, req contract.SyncRequestedPayload, msg model.EmailMessage, itemErr error, log *zap.Logger) {
	count, err := c.attempts.IncrementAndGet(ctx, util.FormatRetryKey(triageAttemptName, msg.ID))
	if err != nil {
		log.Warn("Failed to track attempt count", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	if count < c.cfg.PoisonThreshold {
		return
	}

	dl := model.DeadLetter{
		MessageID: msg.ID,
		MailboxID: req.MailboxID,
		UserID:    req.UserID,
		Stage:     "triage",
		Reason:    itemErr.Error(),
		Attempts:  count,
		CreatedAt: c.now(),
	}
	if err := c.deadletters.Insert(ctx, dl); err != nil {
		log.Error("Failed to dead-letter poison message", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}
	metrics.DeadLetterCount.Inc()
	c.appendAudit(ctx, req, "sync.dead_lettered",
		fmt.Sprintf("message=%s attempts=%d reason=%s", msg.ID, count, itemErr.Error()), log)

	if err := c.attempts.Reset(ctx, util.FormatRetryKey(triageAttemptName, msg.ID)); err != nil {
		log.Warn("Failed to reset attempt counter", zap.String("message_id", msg.ID), zap.Error(err))
	}
	log.Warn("Message dead-lettered after repeated failures",
		zap.String("message_id", msg.ID),
		zap.Int64("attempts", count),
	)
}

// loadWatchlist degrades to an empty list when the lookup keeps failing:
// losing ticker confirmation for one epoch beats failing the sync.
func (c *Coordinator) loadWatchlist(ctx context.Context, userID string, log *zap.Logger) []string {
	watchlist, err := retry.Invoke(ctx, c.invoker, "load-watchlist", c.cfg.StorePolicy, func(ctx context.Context) ([]string, error) {
		return c.watchlists.Lookup(ctx, userID)
	})
	if err != nil {
		log.Warn("Watch-list lookup failed, ticker signals disabled for this epoch", zap.Error(err))
		return nil
	}
	return watchlist
}

// scheduleContinuation enqueues the next epoch of an ongoing sync with the
// same mailbox identity and the final cursor.
func (c *Coordinator) scheduleContinuation(ctx context.Context, req contract.SyncRequestedPayload, cursor string, log *zap.Logger) {
	next := contract.SyncRequestedPayload{
		InstanceID:  c.newID(),
		MailboxID:   req.MailboxID,
		UserID:      req.UserID,
		Grant:       req.Grant,
		Cursor:      cursor,
		Epoch:       req.Epoch + 1,
		Ongoing:     true,
		RequestedAt: c.now(),
	}
	runAt := c.now().Add(c.cfg.ContinueAfter)

	if err := c.invoker.Invoke(ctx, "schedule-continuation", c.cfg.StorePolicy, func(ctx context.Context) error {
		return c.scheduler.Schedule(ctx, next, runAt)
	}); err != nil {
		// The epoch itself completed; a missed continuation is re-creatable
		// by the operator replay endpoint.
		log.Error("Failed to schedule continuation epoch", zap.Error(err))
		c.appendAudit(ctx, req, "sync.continuation_failed", err.Error(), log)
		return
	}
	metrics.ContinuationScheduledCount.Inc()
	log.Info("Continuation epoch scheduled",
		zap.String("next_instance_id", next.InstanceID),
		zap.Time("run_at", runAt),
	)
}

func (c *Coordinator) appendAudit(ctx context.Context, req contract.SyncRequestedPayload, action, detail string, log *zap.Logger) {
	record := model.AuditRecord{
		ID:         c.newID(),
		UserID:     req.UserID,
		InstanceID: req.InstanceID,
		Action:     action,
		Detail:     detail,
		CreatedAt:  c.now(),
	}
	if err := c.audit.Append(ctx, record); err != nil {
		log.Warn("Failed to append audit record", zap.Error(err))
	}
}
