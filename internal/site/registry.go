// AngelaMos | 2026
// registry.go

package site

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
)

// Registry runs site admission and quota updates inside one transaction
// that holds the owning user's row lock, so concurrent admissions for the
// same user are serialized.
type Registry struct {
	db *sqlx.DB
}

func NewRegistry(db *sqlx.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Atomically(
	ctx context.Context,
	userID string,
	fn func(ctx context.Context, reg entitlement.SiteRegistry, locked entitlement.Account) error,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked entitlement.Account
		err := tx.GetContext(ctx, &locked,
			`SELECT id, tier, reports_used, sites_used FROM users WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
			userID,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock user: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		return fn(ctx, &txRegistry{tx: tx}, locked)
	})
}

type txRegistry struct {
	tx core.DBTX
}

func (t *txRegistry) IsSiteRegistered(
	ctx context.Context,
	userID, siteURL string,
) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM sites WHERE user_id = $1 AND url = $2)`,
		userID, siteURL,
	)
	if err != nil {
		return false, fmt.Errorf("check site: %w", err)
	}
	return exists, nil
}

func (t *txRegistry) CountSites(ctx context.Context, userID string) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM sites WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("count sites: %w", err)
	}
	return n, nil
}

func (t *txRegistry) RegisterSite(ctx context.Context, userID, siteURL string) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO sites (id, user_id, url) VALUES ($1, $2, $3)`,
		uuid.New().String(), userID, siteURL,
	)
	if err != nil {
		if core.IsDuplicateKeyError(err) {
			return fmt.Errorf("register site: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("register site: %w", err)
	}
	return nil
}

func (t *txRegistry) IncrementSiteUsage(ctx context.Context, userID string) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE users SET sites_used = sites_used + 1, updated_at = NOW() WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("increment site usage: %w", err)
	}
	return core.ExpectOneRow(result, "increment site usage")
}

// IncrementReportsUsed is a conditional update: the row is touched only
// while the counter is under limit.
func (t *txRegistry) IncrementReportsUsed(
	ctx context.Context,
	userID string,
	limit int,
) (bool, error) {
	query := `
		UPDATE users
		SET reports_used = reports_used + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		  AND ($2 = -1 OR reports_used < $2)`

	result, err := t.tx.ExecContext(ctx, query, userID, limit)
	if err != nil {
		return false, fmt.Errorf("increment reports used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment reports used: %w", err)
	}

	return rows == 1, nil
}

func (t *txRegistry) DB() core.DBTX { return t.tx }

var _ entitlement.Registry = (*Registry)(nil)
