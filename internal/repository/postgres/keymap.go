package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/voidvault/voidvault-server/internal/model"
)

// FinalizeCredential commits a proven registration: the borrowed
// placeholder goes back to the pool, the real verifier replaces it, and
// the verifier-to-fingerprint mapping is inserted. All or nothing; a
// partial commit would strand a slot or leave a token-less credential.
func (r *AuthRepository) FinalizeCredential(ctx context.Context, uid, verifier, fingerprint string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var placeholder string
	err = tx.QueryRow(ctx,
		`SELECT verifier FROM credentials WHERE uid = $1 FOR UPDATE`, uid,
	).Scan(&placeholder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to lock credential: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE placeholders SET ready = TRUE WHERE value = $1`, placeholder,
	); err != nil {
		return fmt.Errorf("failed to release placeholder: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE credentials SET verifier = $1 WHERE uid = $2`, verifier, uid,
	); err != nil {
		return fmt.Errorf("failed to store verifier: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO key_mappings (verifier, fingerprint) VALUES ($1, $2)`, verifier, fingerprint,
	); err != nil {
		return fmt.Errorf("failed to create key mapping: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit finalize: %w", err)
	}
	return nil
}

// RotateVerifier swaps in a new verifier for the credential whose key
// mapping points at fingerprint, moving the mapping along, in one
// transaction.
func (r *AuthRepository) RotateVerifier(ctx context.Context, fingerprint, verifier string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx,
		`SELECT verifier FROM key_mappings WHERE fingerprint = $1 FOR UPDATE`, fingerprint,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to lock key mapping: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE key_mappings SET verifier = $1 WHERE verifier = $2`, verifier, current,
	); err != nil {
		return fmt.Errorf("failed to move key mapping: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE credentials SET verifier = $1 WHERE verifier = $2`, verifier, current,
	); err != nil {
		return fmt.Errorf("failed to rotate verifier: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit verifier rotation: %w", err)
	}
	return nil
}

func (r *AuthRepository) RotateFingerprint(ctx context.Context, oldFingerprint, newFingerprint string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE key_mappings SET fingerprint = $1 WHERE fingerprint = $2`,
		newFingerprint, oldFingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate fingerprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *AuthRepository) GetKeyMapping(ctx context.Context, verifier string) (model.KeyMapping, error) {
	const query = `
        SELECT verifier, fingerprint FROM key_mappings WHERE verifier = $1
    `
	var mapping model.KeyMapping
	err := r.db.QueryRow(ctx, query, verifier).Scan(&mapping.Verifier, &mapping.Fingerprint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.KeyMapping{}, model.ErrNotFound
		}
		return model.KeyMapping{}, fmt.Errorf("failed to get key mapping: %w", err)
	}
	return mapping, nil
}
