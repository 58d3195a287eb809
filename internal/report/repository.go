// AngelaMos | 2026
// repository.go

package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/reportriser/backend/internal/core"
)

type Repository interface {
	Create(ctx context.Context, r *Report) error
	GetForUser(ctx context.Context, id, userID string) (*Report, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]Report, error)
	Count(ctx context.Context) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, rep *Report) error {
	query := `
		INSERT INTO reports (id, user_id, site_url, tier, artifact_key, filename,
		                     size_bytes, vitals_score, revenue, growth_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err := r.db.GetContext(ctx, &rep.CreatedAt, query,
		rep.ID,
		rep.UserID,
		rep.SiteURL,
		rep.Tier,
		rep.ArtifactKey,
		rep.Filename,
		rep.SizeBytes,
		rep.VitalsScore,
		rep.Revenue,
		rep.GrowthPercent,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("create report: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create report: %w", err)
	}

	return nil
}

func (r *repository) GetForUser(
	ctx context.Context,
	id, userID string,
) (*Report, error) {
	query := `
		SELECT id, user_id, site_url, tier, artifact_key, filename, size_bytes,
		       vitals_score, revenue, growth_percent, created_at
		FROM reports
		WHERE id = $1 AND user_id = $2`

	var rep Report
	err := r.db.GetContext(ctx, &rep, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get report: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}

	return &rep, nil
}

func (r *repository) ListRecent(
	ctx context.Context,
	userID string,
	limit int,
) ([]Report, error) {
	query := `
		SELECT id, user_id, site_url, tier, artifact_key, filename, size_bytes,
		       vitals_score, revenue, growth_percent, created_at
		FROM reports
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var reports []Report
	if err := r.db.SelectContext(ctx, &reports, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}

	return reports, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM reports`); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}
