package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailpilot/internal/model"
)

// CheckpointRepository stores the per-mailbox resume state, one row per
// mailbox. A restart resumes from the last checkpoint instead of from
// scratch.
type CheckpointRepository struct {
	db *pgxpool.Pool
}

func NewCheckpointRepository(db *pgxpool.Pool) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

func (r *CheckpointRepository) Upsert(ctx context.Context, cp model.SyncCheckpoint) error {
	query := `
		INSERT INTO sync_checkpoints (
			mailbox_id, instance_id, epoch, cursor, phase,
			emails_fetched, emails_processed, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (mailbox_id) DO UPDATE SET
			instance_id = EXCLUDED.instance_id,
			epoch = EXCLUDED.epoch,
			cursor = EXCLUDED.cursor,
			phase = EXCLUDED.phase,
			emails_fetched = EXCLUDED.emails_fetched,
			emails_processed = EXCLUDED.emails_processed,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.Exec(ctx, query,
		cp.MailboxID, cp.InstanceID, cp.Epoch, cp.Cursor, string(cp.Phase),
		cp.EmailsFetched, cp.EmailsProcessed, cp.UpdatedAt,
	)
	return err
}

// Load returns the checkpoint for a mailbox, and whether one exists.
func (r *CheckpointRepository) Load(ctx context.Context, mailboxID string) (model.SyncCheckpoint, bool, error) {
	query := `
		SELECT mailbox_id, instance_id, epoch, cursor, phase,
		       emails_fetched, emails_processed, updated_at
		FROM sync_checkpoints
		WHERE mailbox_id = $1
	`
	var cp model.SyncCheckpoint
	var phase string
	err := r.db.QueryRow(ctx, query, mailboxID).Scan(
		&cp.MailboxID, &cp.InstanceID, &cp.Epoch, &cp.Cursor, &phase,
		&cp.EmailsFetched, &cp.EmailsProcessed, &cp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SyncCheckpoint{}, false, nil
	}
	if err != nil {
		return model.SyncCheckpoint{}, false, err
	}
	cp.Phase = model.SyncPhase(phase)
	return cp, true, nil
}
