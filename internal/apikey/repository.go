// AngelaMos | 2026
// repository.go

package apikey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reportriser/backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*APIKey, error)
	ListForUser(ctx context.Context, userID string) ([]APIKey, error)
	Revoke(ctx context.Context, id, userID string) error
	TouchLastUsed(ctx context.Context, id string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const keyColumns = `id, user_id, name, prefix, secret_hash, last_used_at, created_at, revoked_at`

func (r *repository) Create(ctx context.Context, key *APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, name, prefix, secret_hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &key.CreatedAt, query,
		key.ID,
		key.UserID,
		key.Name,
		key.Prefix,
		key.SecretHash,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create api key: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create api key: %w", err)
	}

	return nil
}

func (r *repository) GetByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	query := `SELECT ` + keyColumns + `
		FROM api_keys
		WHERE prefix = $1 AND revoked_at IS NULL`

	var key APIKey
	err := r.db.GetContext(ctx, &key, query, prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get api key: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}

	return &key, nil
}

func (r *repository) ListForUser(ctx context.Context, userID string) ([]APIKey, error) {
	query := `SELECT ` + keyColumns + `
		FROM api_keys
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY created_at DESC`

	var keys []APIKey
	if err := r.db.SelectContext(ctx, &keys, query, userID); err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	return keys, nil
}

func (r *repository) Revoke(ctx context.Context, id, userID string) error {
	query := `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	return core.ExpectOneRow(result, "revoke api key")
}

func (r *repository) TouchLastUsed(ctx context.Context, id string) error {
	query := `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}

	return nil
}
