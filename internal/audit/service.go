// AngelaMos | 2026
// service.go

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/reportriser/backend/internal/vitals"
)

// Result is a public audit. OnPage is nil when the page itself could not
// be fetched or parsed; vitals are still reported.
type Result struct {
	URL       string            `json:"url"`
	Vitals    vitals.Assessment `json:"cwv"`
	OnPage    *OnPage           `json:"seo"`
	AuditedAt time.Time         `json:"audited_at"`
}

type Service struct {
	vitals vitals.Provider
	pages  PageChecker
	logger *slog.Logger
	now    func() time.Time
}

func NewService(v vitals.Provider, pages PageChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{vitals: v, pages: pages, logger: logger, now: time.Now}
}

func (s *Service) Audit(ctx context.Context, siteURL string) (*Result, error) {
	var (
		measurement vitals.Measurement
		onPage      *OnPage
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := s.vitals.Fetch(gctx, siteURL)
		if err != nil {
			return fmt.Errorf("fetch vitals: %w", err)
		}
		measurement = m
		return nil
	})

	g.Go(func() error {
		p, err := s.pages.Check(gctx, siteURL)
		if err != nil {
			s.logger.Info("on-page audit unavailable", "site_url", siteURL, "error", err)
			return nil
		}
		onPage = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		URL:       siteURL,
		Vitals:    vitals.Assess(measurement),
		OnPage:    onPage,
		AuditedAt: s.now().UTC(),
	}, nil
}
