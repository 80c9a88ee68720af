package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voidvault/voidvault-server/internal/model"
)

// borrowPlaceholder picks the first available slot at or after startIndex,
// wrapping around, and marks it borrowed. SKIP LOCKED makes the scan
// non-blocking: a slot held by a concurrent in-flight borrower is passed
// over instead of waited on, so registrations never serialize on one row.
func borrowPlaceholder(ctx context.Context, tx pgx.Tx, startIndex int) (string, error) {
	const query = `
        SELECT idx, value FROM placeholders
        WHERE ready
        ORDER BY (idx < $1), idx
        LIMIT 1
        FOR UPDATE SKIP LOCKED
    `
	var idx int
	var value string
	err := tx.QueryRow(ctx, query, startIndex).Scan(&idx, &value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrPoolExhausted
		}
		return "", fmt.Errorf("failed to pick placeholder: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE placeholders SET ready = FALSE WHERE idx = $1`, idx,
	); err != nil {
		return "", fmt.Errorf("failed to borrow placeholder: %w", err)
	}
	return value, nil
}

func (r *AuthRepository) SeedPlaceholders(ctx context.Context, values []string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM placeholders`); err != nil {
		return fmt.Errorf("failed to clear placeholder pool: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO placeholders (idx, value, ready)
         SELECT ordinality, v, TRUE FROM UNNEST($1::text[]) WITH ORDINALITY AS t(v, ordinality)`,
		values,
	); err != nil {
		return fmt.Errorf("failed to seed placeholder pool: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit placeholder seed: %w", err)
	}
	return nil
}

func (r *AuthRepository) ClearPlaceholders(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM placeholders`); err != nil {
		return fmt.Errorf("failed to clear placeholder pool: %w", err)
	}
	return nil
}

func (r *AuthRepository) AvailablePlaceholders(ctx context.Context) (int, error) {
	var free int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM placeholders WHERE ready`).Scan(&free)
	if err != nil {
		return 0, fmt.Errorf("failed to count placeholders: %w", err)
	}
	return free, nil
}
