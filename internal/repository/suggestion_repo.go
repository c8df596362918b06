package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mailpilot/internal/model"
)

type SuggestionRepository struct {
	db *pgxpool.Pool
}

func NewSuggestionRepository(db *pgxpool.Pool) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// UpsertSuggestions stores a set of validated reply suggestions keyed by id.
func (r *SuggestionRepository) UpsertSuggestions(ctx context.Context, userID string, suggestions []model.ReplySuggestion) error {
	query := `
		INSERT INTO reply_suggestions (
			id, user_id, thread_id, tone, content, confidence, synthesized, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			tone = EXCLUDED.tone,
			content = EXCLUDED.content,
			confidence = EXCLUDED.confidence,
			synthesized = EXCLUDED.synthesized
	`
	for _, s := range suggestions {
		_, err := r.db.Exec(ctx, query,
			s.ID, userID, s.ThreadID, string(s.Tone), s.Content,
			s.Confidence, s.Synthesized, s.CreatedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByThread returns suggestions for one thread, newest first.
func (r *SuggestionRepository) ListByThread(ctx context.Context, userID, threadID string) ([]model.ReplySuggestion, error) {
	query := `
		SELECT id, thread_id, tone, content, confidence, synthesized, created_at
		FROM reply_suggestions
		WHERE user_id = $1 AND thread_id = $2
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReplySuggestion
	for rows.Next() {
		var s model.ReplySuggestion
		var tone string
		if err := rows.Scan(&s.ID, &s.ThreadID, &tone, &s.Content, &s.Confidence, &s.Synthesized, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Tone = model.Tone(tone)
		out = append(out, s)
	}
	return out, rows.Err()
}
