package continuation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	contract "mailpilot/contracts/mq"
)

// Continuation is one scheduled sync epoch waiting for its run time.
type Continuation struct {
	ID         int64
	MailboxID  string
	Payload    json.RawMessage
	NextRunAt  time.Time
	Status     string
	RetryCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Repository stores scheduled continuations. One row per pending epoch; the
// dispatcher picks up due rows and publishes them.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Schedule inserts a continuation row due at runAt.
func (r *Repository) Schedule(ctx context.Context, payload contract.SyncRequestedPayload, runAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal continuation payload: %w", err)
	}

	query := `
		INSERT INTO sync_continuations (mailbox_id, payload, next_run_at, status)
		VALUES ($1, $2, $3, 'pending')
	`
	_, err = r.db.Exec(ctx, query, payload.MailboxID, body, runAt)
	if err != nil {
		return fmt.Errorf("failed to insert continuation: %w", err)
	}
	return nil
}

// GetDue returns pending continuations whose run time has passed.
func (r *Repository) GetDue(ctx context.Context, limit int) ([]*Continuation, error) {
	query := `
		SELECT id, mailbox_id, payload, next_run_at, status, retry_count, created_at, updated_at
		FROM sync_continuations
		WHERE status = 'pending' AND next_run_at <= NOW()
		ORDER BY next_run_at ASC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due continuations: %w", err)
	}
	defer rows.Close()

	var out []*Continuation
	for rows.Next() {
		var c Continuation
		if err := rows.Scan(&c.ID, &c.MailboxID, &c.Payload, &c.NextRunAt, &c.Status, &c.RetryCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan continuation: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// MarkAsSent marks a continuation as dispatched.
func (r *Repository) MarkAsSent(ctx context.Context, id int64) error {
	query := `
		UPDATE sync_continuations
		SET status = 'sent', updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// MarkAsFailed bumps the retry count and pushes the run time back, or
// parks the row as failed once maxRetries is reached.
func (r *Repository) MarkAsFailed(ctx context.Context, id int64, maxRetries int) error {
	var retryCount int
	err := r.db.QueryRow(ctx, `SELECT retry_count FROM sync_continuations WHERE id = $1`, id).Scan(&retryCount)
	if err != nil {
		return fmt.Errorf("failed to get retry count: %w", err)
	}

	retryCount++

	var status string
	var nextRunAt *time.Time
	if retryCount >= maxRetries {
		status = "failed"
	} else {
		status = "pending"
		next := time.Now().Add(time.Duration(retryCount) * 5 * time.Second)
		nextRunAt = &next
	}

	query := `
		UPDATE sync_continuations
		SET status = $1, retry_count = $2, next_run_at = COALESCE($3, next_run_at), updated_at = NOW()
		WHERE id = $4
	`
	_, err = r.db.Exec(ctx, query, status, retryCount, nextRunAt, id)
	return err
}

// Replay resets a failed continuation so the dispatcher picks it up again.
func (r *Repository) Replay(ctx context.Context, id int64) error {
	query := `
		UPDATE sync_continuations
		SET status = 'pending', retry_count = 0, next_run_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// GetFailed lists parked continuations for the operator API.
func (r *Repository) GetFailed(ctx context.Context, limit int) ([]*Continuation, error) {
	query := `
		SELECT id, mailbox_id, payload, next_run_at, status, retry_count, created_at, updated_at
		FROM sync_continuations
		WHERE status = 'failed'
		ORDER BY updated_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed continuations: %w", err)
	}
	defer rows.Close()

	var out []*Continuation
	for rows.Next() {
		var c Continuation
		if err := rows.Scan(&c.ID, &c.MailboxID, &c.Payload, &c.NextRunAt, &c.Status, &c.RetryCount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan continuation: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
