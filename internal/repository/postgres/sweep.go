package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voidvault/voidvault-server/internal/model"
)

// SweepExpired reclaims everything an abandoned challenge left behind.
// Expired nonces are deleted; for register nonces the in-flight
// credential is removed and its borrowed placeholder returned to the
// pool. One transaction per sweep.
func (r *AuthRepository) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`DELETE FROM nonces WHERE expires_at < $1 RETURNING uid, intent`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired nonces: %w", err)
	}

	type expired struct {
		uid    string
		intent model.Intent
	}
	var reaped []expired
	for rows.Next() {
		var e expired
		var intent string
		if err := rows.Scan(&e.uid, &intent); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired nonce: %w", err)
		}
		e.intent = model.Intent(intent)
		reaped = append(reaped, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to read expired nonces: %w", err)
	}

	for _, e := range reaped {
		if e.intent != model.IntentRegister {
			// Expiry of a login-class nonce has no side effects; the
			// credential belongs to a real account.
			continue
		}
		var placeholder string
		err := tx.QueryRow(ctx,
			`DELETE FROM credentials WHERE uid = $1 RETURNING verifier`, e.uid,
		).Scan(&placeholder)
		if errors.Is(err, pgx.ErrNoRows) {
			// Credential already finalized or reclaimed; nothing to release.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to reclaim credential: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE placeholders SET ready = TRUE WHERE value = $1`, placeholder,
		); err != nil {
			return 0, fmt.Errorf("failed to release placeholder: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit sweep: %w", err)
	}
	return len(reaped), nil
}
