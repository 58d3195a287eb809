// AngelaMos | 2026
// repository.go

package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reportriser/backend/internal/core"
)

type Repository interface {
	ListForUser(ctx context.Context, userID string) ([]Site, error)
	GetByURL(ctx context.Context, userID, url string) (*Site, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) ListForUser(ctx context.Context, userID string) ([]Site, error) {
	query := `
		SELECT id, user_id, url, created_at
		FROM sites
		WHERE user_id = $1
		ORDER BY created_at ASC`

	var sites []Site
	if err := r.db.SelectContext(ctx, &sites, query, userID); err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}

	return sites, nil
}

func (r *repository) GetByURL(ctx context.Context, userID, url string) (*Site, error) {
	query := `
		SELECT id, user_id, url, created_at
		FROM sites
		WHERE user_id = $1 AND url = $2`

	var s Site
	err := r.db.GetContext(ctx, &s, query, userID, url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get site: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}

	return &s, nil
}
