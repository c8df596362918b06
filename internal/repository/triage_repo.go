package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailpilot/internal/model"
)

type TriageRepository struct {
	db *pgxpool.Pool
}

func NewTriageRepository(db *pgxpool.Pool) *TriageRepository {
	return &TriageRepository{db: db}
}

// UpsertResult stores one triage result keyed by message id. Re-storing the
// same message id overwrites in place, so retried and duplicated writes are
// safe.
func (r *TriageRepository) UpsertResult(ctx context.Context, userID string, result model.TriageResult) error {
	tickersJSON, err := json.Marshal(result.Tickers)
	if err != nil {
		return fmt.Errorf("failed to marshal tickers: %w", err)
	}
	entitiesJSON, err := json.Marshal(result.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	query := `
		INSERT INTO triage_results (
			message_id, user_id, thread_id, priority, priority_confidence,
			category, summary, suggested_action, tickers, sentiment,
			sentiment_confidence, entities, requires_response,
			estimated_response_time, degraded, triaged_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (message_id) DO UPDATE SET
			priority = EXCLUDED.priority,
			priority_confidence = EXCLUDED.priority_confidence,
			category = EXCLUDED.category,
			summary = EXCLUDED.summary,
			suggested_action = EXCLUDED.suggested_action,
			tickers = EXCLUDED.tickers,
			sentiment = EXCLUDED.sentiment,
			sentiment_confidence = EXCLUDED.sentiment_confidence,
			entities = EXCLUDED.entities,
			requires_response = EXCLUDED.requires_response,
			estimated_response_time = EXCLUDED.estimated_response_time,
			degraded = EXCLUDED.degraded,
			triaged_at = EXCLUDED.triaged_at
	`
	_, err = r.db.Exec(ctx, query,
		result.MessageID, userID, result.ThreadID,
		string(result.Priority), result.PriorityConfidence,
		string(result.Category), result.Summary, result.SuggestedAction,
		tickersJSON, string(result.Sentiment), result.SentimentConfidence,
		entitiesJSON, result.RequiresResponse, result.EstimatedResponseTime,
		result.Degraded, result.TriagedAt,
	)
	return err
}

// ExistingMessageIDs reports which of the given message ids already have a
// stored triage result.
func (r *TriageRepository) ExistingMessageIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}

	query := `
		SELECT message_id
		FROM triage_results
		WHERE message_id = ANY($1)
	`
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

// GetByMessageID returns one stored result, and whether it exists.
func (r *TriageRepository) GetByMessageID(ctx context.Context, messageID string) (*model.TriageResult, bool, error) {
	query := `
		SELECT message_id, thread_id, priority, priority_confidence, category,
		       summary, suggested_action, tickers, sentiment,
		       sentiment_confidence, entities, requires_response,
		       estimated_response_time, degraded, triaged_at
		FROM triage_results
		WHERE message_id = $1
	`
	var (
		result       model.TriageResult
		priority     string
		category     string
		sentiment    string
		tickersJSON  []byte
		entitiesJSON []byte
	)
	err := r.db.QueryRow(ctx, query, messageID).Scan(
		&result.MessageID, &result.ThreadID, &priority,
		&result.PriorityConfidence, &category, &result.Summary,
		&result.SuggestedAction, &tickersJSON, &sentiment,
		&result.SentimentConfidence, &entitiesJSON, &result.RequiresResponse,
		&result.EstimatedResponseTime, &result.Degraded, &result.TriagedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	result.Priority = model.Priority(priority)
	result.Category = model.Category(category)
	result.Sentiment = model.Sentiment(sentiment)
	if err := json.Unmarshal(tickersJSON, &result.Tickers); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal tickers: %w", err)
	}
	if err := json.Unmarshal(entitiesJSON, &result.Entities); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal entities: %w", err)
	}
	return &result, true, nil
}
