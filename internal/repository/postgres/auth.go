package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voidvault/voidvault-server/internal/model"
)

var _ model.AuthStore = (*AuthRepository)(nil)

// AuthRepository persists credentials, nonces, the placeholder pool and
// key mappings. Every multi-statement operation runs in a single
// transaction; concurrency control is transaction isolation plus row
// locks, never in-process state.
type AuthRepository struct {
	db *Connection
}

func NewAuthRepository(db *Connection) *AuthRepository {
	return &AuthRepository{db: db}
}

func (r *AuthRepository) GetCredential(ctx context.Context, uid string) (model.Credential, error) {
	const query = `
        SELECT uid, salt, verifier, created_at
        FROM credentials WHERE uid = $1
    `
	var cred model.Credential
	err := r.db.QueryRow(ctx, query, uid).Scan(
		&cred.UID, &cred.Salt, &cred.Verifier, &cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Credential{}, model.ErrNotFound
		}
		return model.Credential{}, fmt.Errorf("failed to get credential: %w", err)
	}
	return cred, nil
}

// CreateFreshCredential borrows a placeholder and records the new
// credential and its register nonce in one transaction, so a failure at
// any step leaves no ghost slot behind.
func (r *AuthRepository) CreateFreshCredential(ctx context.Context, cred model.Credential, nonce model.Nonce, startIndex int) (model.Credential, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return model.Credential{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	placeholder, err := borrowPlaceholder(ctx, tx, startIndex)
	if err != nil {
		return model.Credential{}, err
	}
	cred.Verifier = placeholder

	if _, err := tx.Exec(ctx,
		`INSERT INTO credentials (uid, salt, verifier, created_at) VALUES ($1, $2, $3, $4)`,
		cred.UID, cred.Salt, cred.Verifier, cred.CreatedAt,
	); err != nil {
		return model.Credential{}, fmt.Errorf("failed to create credential: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO nonces (nonce, uid, intent, expires_at) VALUES ($1, $2, $3, $4)`,
		nonce.Value, nonce.UID, string(nonce.Intent), nonce.ExpiresAt,
	); err != nil {
		return model.Credential{}, fmt.Errorf("failed to create register nonce: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Credential{}, fmt.Errorf("failed to commit registration: %w", err)
	}
	return cred, nil
}

func (r *AuthRepository) CreateNonce(ctx context.Context, nonce model.Nonce) error {
	const query = `
        INSERT INTO nonces (nonce, uid, intent, expires_at)
        VALUES ($1, $2, $3, $4)
    `
	if _, err := r.db.Exec(ctx, query,
		nonce.Value, nonce.UID, string(nonce.Intent), nonce.ExpiresAt,
	); err != nil {
		return fmt.Errorf("failed to create nonce: %w", err)
	}
	return nil
}

// ConsumeNonce is delete-returning-match: the nonce row is gone the
// moment it matches, so two concurrent submissions can never both
// succeed.
func (r *AuthRepository) ConsumeNonce(ctx context.Context, value string, intents []model.Intent, now time.Time) (model.ConsumedChallenge, error) {
	const query = `
        DELETE FROM nonces
        USING credentials
        WHERE nonces.uid = credentials.uid
          AND nonces.nonce = $1
          AND nonces.intent = ANY($2)
          AND nonces.expires_at > $3
        RETURNING nonces.nonce, nonces.uid, nonces.intent, nonces.expires_at,
                  credentials.salt, credentials.verifier, credentials.created_at
    `
	names := make([]string, len(intents))
	for i, intent := range intents {
		names[i] = string(intent)
	}

	rows, err := r.db.Query(ctx, query, value, names, now)
	if err != nil {
		return model.ConsumedChallenge{}, fmt.Errorf("failed to consume nonce: %w", err)
	}
	defer rows.Close()

	var matches []model.ConsumedChallenge
	for rows.Next() {
		var c model.ConsumedChallenge
		var intent string
		if err := rows.Scan(
			&c.Nonce.Value, &c.Nonce.UID, &intent, &c.Nonce.ExpiresAt,
			&c.Credential.Salt, &c.Credential.Verifier, &c.Credential.CreatedAt,
		); err != nil {
			return model.ConsumedChallenge{}, fmt.Errorf("failed to scan consumed nonce: %w", err)
		}
		c.Nonce.Intent = model.Intent(intent)
		c.Credential.UID = c.Nonce.UID
		matches = append(matches, c)
	}
	if err := rows.Err(); err != nil {
		return model.ConsumedChallenge{}, fmt.Errorf("failed to consume nonce: %w", err)
	}

	switch len(matches) {
	case 0:
		return model.ConsumedChallenge{}, model.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		// nonce is the primary key; more than one match is a bug.
		return model.ConsumedChallenge{}, model.ErrInvariantViolation
	}
}
