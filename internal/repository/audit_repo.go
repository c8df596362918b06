package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailpilot/internal/model"
)

// AuditRepository is the append-only audit trail. Rows are never updated or
// deleted.
type AuditRepository struct {
	db *pgxpool.Pool
}

func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, record model.AuditRecord) error {
	query := `
		INSERT INTO audit_log (id, user_id, instance_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		record.ID, record.UserID, record.InstanceID,
		record.Action, record.Detail, record.CreatedAt,
	)
	return err
}

// ListByInstance returns the audit trail of one workflow instance, oldest
// first.
func (r *AuditRepository) ListByInstance(ctx context.Context, instanceID string) ([]model.AuditRecord, error) {
	query := `
		SELECT id, user_id, instance_id, action, detail, created_at
		FROM audit_log
		WHERE instance_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.Query(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.InstanceID, &rec.Action, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
