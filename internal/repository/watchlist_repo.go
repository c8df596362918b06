package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type WatchlistRepository struct {
	db *pgxpool.Pool
}

func NewWatchlistRepository(db *pgxpool.Pool) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Lookup returns the user's watched ticker symbols.
func (r *WatchlistRepository) Lookup(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT symbol
		FROM watchlist
		WHERE user_id = $1
		ORDER BY symbol ASC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Add puts a symbol on the user's watch-list.
func (r *WatchlistRepository) Add(ctx context.Context, userID, symbol string) error {
	query := `
		INSERT INTO watchlist (user_id, symbol)
		VALUES ($1, $2)
		ON CONFLICT (user_id, symbol) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID, symbol)
	return err
}

// Remove takes a symbol off the user's watch-list.
func (r *WatchlistRepository) Remove(ctx context.Context, userID, symbol string) error {
	query := `
		DELETE FROM watchlist
		WHERE user_id = $1 AND symbol = $2
	`
	_, err := r.db.Exec(ctx, query, userID, symbol)
	return err
}
