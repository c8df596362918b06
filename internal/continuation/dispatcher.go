package continuation

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	contract "mailpilot/contracts/mq"
)

// store is the slice of Repository the dispatcher needs.
type store interface {
	GetDue(ctx context.Context, limit int) ([]*Continuation, error)
	MarkAsSent(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64, maxRetries int) error
}

// EventPublisher publishes a continuation onto the message bus.
// *mq.Publisher satisfies this.
type EventPublisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// Dispatcher polls for due continuations and publishes sync.continue
// messages. Publish failures are retried with a growing delay; a row that
// keeps failing is parked for operator replay.
type Dispatcher struct {
	repo       store
	publisher  EventPublisher
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
}

func NewDispatcher(repo store, publisher EventPublisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		publisher:  publisher,
		logger:     logger,
		maxRetries: 5,
		interval:   5 * time.Second,
		batchSize:  100,
	}
}

func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	d.maxRetries = maxRetries
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	d.interval = interval
	return d
}

func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	d.batchSize = batchSize
	return d
}

// Start runs the dispatch loop until the context is cancelled. Run it in a
// goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("Starting continuation dispatcher",
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
		zap.Int("max_retries", d.maxRetries),
	)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Continuation dispatcher stopped")
			return
		case <-ticker.C:
			d.dispatchDue(ctx)
		}
	}
}

func (d *Dispatcher) dispatchDue(ctx context.Context) {
	due, err := d.repo.GetDue(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to query due continuations", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	d.logger.Debug("Dispatching due continuations", zap.Int("count", len(due)))

	for _, c := range due {
		if err := d.publish(ctx, c); err != nil {
			d.logger.Error("Failed to publish continuation",
				zap.Int64("continuation_id", c.ID),
				zap.String("mailbox_id", c.MailboxID),
				zap.Error(err),
			)
			if err := d.repo.MarkAsFailed(ctx, c.ID, d.maxRetries); err != nil {
				d.logger.Error("Failed to mark continuation as failed",
					zap.Int64("continuation_id", c.ID),
					zap.Error(err),
				)
			}
			continue
		}

		if err := d.repo.MarkAsSent(ctx, c.ID); err != nil {
			d.logger.Error("Failed to mark continuation as sent",
				zap.Int64("continuation_id", c.ID),
				zap.Error(err),
			)
		}
	}
}

func (d *Dispatcher) publish(ctx context.Context, c *Continuation) error {
	var payload contract.SyncRequestedPayload
	if err := json.Unmarshal(c.Payload, &payload); err != nil {
		return err
	}
	return d.publisher.PublishWithContext(ctx, contract.RoutingKeySyncContinue, payload)
}
