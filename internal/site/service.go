// AngelaMos | 2026
// service.go

package site

import (
	"context"
	"fmt"

	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
)

type AccountReader interface {
	GetAccount(ctx context.Context, userID string) (entitlement.Account, error)
}

type Service struct {
	repo     Repository
	accounts AccountReader
	engine   *entitlement.Engine
}

func NewService(
	repo Repository,
	accounts AccountReader,
	engine *entitlement.Engine,
) *Service {
	return &Service{repo: repo, accounts: accounts, engine: engine}
}

// Add admits siteURL for the user. URLs are compared in normalized form,
// and re-adding a registered site returns the existing row.
func (s *Service) Add(
	ctx context.Context,
	userID, siteURL string,
) (entitlement.Decision, *Site, error) {
	siteURL = core.NormalizeURL(siteURL)

	acct, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return entitlement.Decision{}, nil, fmt.Errorf("load account: %w", err)
	}

	d, err := s.engine.CanAddSite(ctx, acct, siteURL)
	if err != nil {
		return entitlement.Decision{}, nil, err
	}
	if !d.Allowed {
		return d, nil, nil
	}

	site, err := s.repo.GetByURL(ctx, userID, siteURL)
	if err != nil {
		return entitlement.Decision{}, nil, err
	}

	return d, site, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Site, entitlement.Limits, error) {
	acct, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, entitlement.Limits{}, fmt.Errorf("load account: %w", err)
	}

	sites, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, entitlement.Limits{}, err
	}

	return sites, s.engine.LimitsFor(acct.Tier), nil
}
