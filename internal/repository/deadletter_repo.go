package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailpilot/internal/model"
)

// DeadLetterRepository records poison messages pulled out of the retry loop.
type DeadLetterRepository struct {
	db *pgxpool.Pool
}

func NewDeadLetterRepository(db *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

func (r *DeadLetterRepository) Insert(ctx context.Context, dl model.DeadLetter) error {
	query := `
		INSERT INTO dead_letters (
			message_id, mailbox_id, user_id, stage, reason, attempts, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (message_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		dl.MessageID, dl.MailboxID, dl.UserID, dl.Stage,
		dl.Reason, dl.Attempts, dl.CreatedAt,
	)
	return err
}

// Poisoned reports which of the given message ids are dead-lettered for a
// mailbox, so the sync loop can keep them out of re-triage.
func (r *DeadLetterRepository) Poisoned(ctx context.Context, mailboxID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query := `
		SELECT message_id
		FROM dead_letters
		WHERE mailbox_id = $1 AND message_id = ANY($2)
	`
	rows, err := r.db.Query(ctx, query, mailboxID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	poisoned := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		poisoned[id] = true
	}
	return poisoned, rows.Err()
}

// ListRecent returns the newest dead letters for the operator API.
func (r *DeadLetterRepository) ListRecent(ctx context.Context, limit int) ([]model.DeadLetter, error) {
	query := `
		SELECT message_id, mailbox_id, user_id, stage, reason, attempts, created_at
		FROM dead_letters
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DeadLetter
	for rows.Next() {
		var dl model.DeadLetter
		if err := rows.Scan(&dl.MessageID, &dl.MailboxID, &dl.UserID, &dl.Stage, &dl.Reason, &dl.Attempts, &dl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, rows.Err()
}
