package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserProfile holds the mailbox grant and the writing-style settings used by
// reply generation.
type UserProfile struct {
	UserID    string
	MailboxID string
	Grant     string
	Style     string
	Signature string
}

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (UserProfile, error) {
	query := `
		SELECT user_id, mailbox_id, grant_token, style, signature
		FROM user_profiles
		WHERE user_id = $1
	`
	var p UserProfile
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.MailboxID, &p.Grant, &p.Style, &p.Signature,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserProfile{}, fmt.Errorf("no profile for user %s", userID)
	}
	if err != nil {
		return UserProfile{}, err
	}
	return p, nil
}

// LoadStyle returns the user's writing-style description.
func (r *ProfileRepository) LoadStyle(ctx context.Context, userID string) (string, error) {
	var style string
	err := r.db.QueryRow(ctx, `SELECT style FROM user_profiles WHERE user_id = $1`, userID).Scan(&style)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return style, err
}

// LoadSignature returns the user's signature block.
func (r *ProfileRepository) LoadSignature(ctx context.Context, userID string) (string, error) {
	var signature string
	err := r.db.QueryRow(ctx, `SELECT signature FROM user_profiles WHERE user_id = $1`, userID).Scan(&signature)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return signature, err
}
