// AngelaMos | 2026
// repository.go

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reportriser/backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, link *MagicLink) error
	Consume(ctx context.Context, tokenHash string) (*MagicLink, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, link *MagicLink) error {
	query := `
		INSERT INTO magic_links (id, email, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &link.CreatedAt, query,
		link.ID,
		link.Email,
		link.TokenHash,
		link.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create magic link: %w", err)
	}

	return nil
}

// Consume marks the link used and returns it in one statement. A used,
// expired or unknown hash yields ErrNotFound, so a token can be redeemed
// at most once even under concurrent requests.
func (r *repository) Consume(
	ctx context.Context,
	tokenHash string,
) (*MagicLink, error) {
	query := `
		UPDATE magic_links
		SET used_at = NOW()
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
		RETURNING id, email, token_hash, expires_at, created_at, used_at`

	var link MagicLink
	err := r.db.GetContext(ctx, &link, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume magic link: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("consume magic link: %w", err)
	}

	return &link, nil
}
