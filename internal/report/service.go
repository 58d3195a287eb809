// AngelaMos | 2026
// service.go

package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reportriser/backend/internal/analytics"
	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/roi"
	"github.com/reportriser/backend/internal/vitals"
)

const defaultHistoryLimit = 10

// AccountReader loads the entitlement view of a user.
type AccountReader interface {
	GetAccount(ctx context.Context, userID string) (entitlement.Account, error)
}

// Deliverer emails a finished report to its owner.
type Deliverer interface {
	SendReport(ctx context.Context, userID, siteURL string, pdf []byte) error
}

// ErrEmailNotIncluded is returned when email delivery is requested on a
// tier without email scheduling.
var ErrEmailNotIncluded = fmt.Errorf("email delivery not included in plan: %w", core.ErrForbidden)

type ServiceConfig struct {
	Repo              Repository
	TxRepo            func(db core.DBTX) Repository
	Deliverer         Deliverer
	Accounts          AccountReader
	Engine            *entitlement.Engine
	Vitals            vitals.Provider
	Analytics         analytics.Provider
	Compositor        *Compositor
	Sink              *ArtifactSink
	Metrics           *core.Metrics
	Logger            *slog.Logger
	DefaultOrderValue float64
	HistoryLimit      int
}

type Service struct {
	repo              Repository
	txRepo            func(db core.DBTX) Repository
	deliverer         Deliverer
	accounts          AccountReader
	engine            *entitlement.Engine
	vitals            vitals.Provider
	analytics         analytics.Provider
	compositor        *Compositor
	sink              *ArtifactSink
	metrics           *core.Metrics
	logger            *slog.Logger
	defaultOrderValue float64
	historyLimit      int
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return &Service{
		repo:              cfg.Repo,
		txRepo:            cfg.TxRepo,
		deliverer:         cfg.Deliverer,
		accounts:          cfg.Accounts,
		engine:            cfg.Engine,
		vitals:            cfg.Vitals,
		analytics:         cfg.Analytics,
		compositor:        cfg.Compositor,
		sink:              cfg.Sink,
		metrics:           cfg.Metrics,
		logger:            logger,
		defaultOrderValue: cfg.DefaultOrderValue,
		historyLimit:      limit,
	}
}

// GenerateResult carries either a denial or the stored report. A denial
// is not an error.
type GenerateResult struct {
	Decision entitlement.Decision
	Report   *Report
	ROI      roi.Summary
	Vitals   vitals.Assessment
	Emailed  bool
}

// Generate builds, stores and records one report. The site limit is only
// checked up front; the site is registered together with the report row
// once the artifact exists, so a failed or refused run consumes nothing.
func (s *Service) Generate(
	ctx context.Context,
	userID string,
	req GenerateRequest,
) (*GenerateResult, error) {
	start := time.Now()
	siteURL := core.NormalizeURL(req.SiteURL)

	acct, err := s.accounts.GetAccount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	if req.EmailReport &&
		!s.engine.LimitsFor(acct.Tier).Has(entitlement.CapabilityEmailScheduling) {
		return nil, ErrEmailNotIncluded
	}

	if d := s.engine.CanGenerateReport(acct); !d.Allowed {
		return &GenerateResult{Decision: d}, nil
	}

	d, err := s.engine.CheckSite(ctx, acct, siteURL)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return &GenerateResult{Decision: d}, nil
	}

	in, assessment, err := s.gather(ctx, acct, siteURL, s.orderValue(req))
	if err != nil {
		return nil, err
	}

	doc, err := s.compositor.Compose(ctx, in)
	if err != nil {
		return nil, err
	}

	loc, err := s.sink.Persist(ctx, userID, doc)
	if err != nil {
		return nil, err
	}

	h := doc.Highlights()
	rep := &Report{
		ID:            uuid.New().String(),
		UserID:        userID,
		SiteURL:       siteURL,
		Tier:          string(acct.Tier),
		ArtifactKey:   loc.Key,
		Filename:      loc.Filename,
		SizeBytes:     loc.Size,
		VitalsScore:   h.VitalsScore,
		Revenue:       h.Revenue,
		GrowthPercent: h.GrowthPercent,
	}

	d, err = s.engine.RecordReport(ctx, acct, siteURL,
		func(ctx context.Context, db core.DBTX) error {
			return s.repoFor(db).Create(ctx, rep)
		},
	)
	if err != nil {
		s.discard(ctx, loc)
		return nil, err
	}
	if !d.Allowed {
		s.discard(ctx, loc)
		return &GenerateResult{Decision: d}, nil
	}

	if s.metrics != nil {
		s.metrics.ReportsGenerated.WithLabelValues(string(acct.Tier)).Inc()
		s.metrics.ReportDuration.Observe(time.Since(start).Seconds())
	}

	s.logger.Info("report generated",
		"report_id", rep.ID,
		"user_id", userID,
		"site", siteURL,
		"tier", acct.Tier,
		"vitals_fallback", assessment.Fallback,
	)

	result := &GenerateResult{
		Decision: d,
		Report:   rep,
		ROI:      roi.Summarize(h.Traffic, h.Conversions, in.AvgOrderValue),
		Vitals:   assessment,
	}
	if req.EmailReport {
		result.Emailed = s.deliver(ctx, rep)
	}

	return result, nil
}

// repoFor binds the report insert to the admission unit when the
// repository supports it.
func (s *Service) repoFor(db core.DBTX) Repository {
	if s.txRepo == nil || db == nil {
		return s.repo
	}
	return s.txRepo(db)
}

// deliver mails the stored artifact. The report already counts, so a
// failure is logged and reported back rather than returned.
func (s *Service) deliver(ctx context.Context, rep *Report) bool {
	if s.deliverer == nil {
		s.logger.Warn("report email requested but no mailer configured",
			"report_id", rep.ID,
		)
		return false
	}

	rc, err := s.sink.Open(ctx, rep.ArtifactKey)
	if err != nil {
		s.logger.Warn("report email not sent", "report_id", rep.ID, "error", err)
		return false
	}
	defer rc.Close() //nolint:errcheck // read-only stream

	pdf, err := io.ReadAll(rc)
	if err != nil {
		s.logger.Warn("report email not sent", "report_id", rep.ID, "error", err)
		return false
	}

	if err := s.deliverer.SendReport(ctx, rep.UserID, rep.SiteURL, pdf); err != nil {
		s.logger.Warn("report email not sent", "report_id", rep.ID, "error", err)
		return false
	}

	return true
}

func (s *Service) gather(
	ctx context.Context,
	acct entitlement.Account,
	siteURL string,
	orderValue float64,
) (Inputs, vitals.Assessment, error) {
	m, err := s.vitals.Fetch(ctx, siteURL)
	if err != nil {
		return Inputs{}, vitals.Assessment{}, &UpstreamDataError{
			Source: "vitals", Section: SectionVitals, Err: err,
		}
	}
	assessment := vitals.Assess(m)

	traffic, err := s.analytics.Traffic(ctx, siteURL)
	if err != nil {
		return Inputs{}, assessment, &UpstreamDataError{
			Source: "analytics", Section: SectionTraffic, Err: err,
		}
	}

	search, err := s.analytics.Search(ctx, siteURL)
	if err != nil {
		return Inputs{}, assessment, &UpstreamDataError{
			Source: "search", Section: SectionTopPages, Err: err,
		}
	}

	conversions, err := s.analytics.Conversions(ctx, siteURL)
	if err != nil {
		return Inputs{}, assessment, &UpstreamDataError{
			Source: "conversions", Section: SectionROI, Err: err,
		}
	}

	return Inputs{
		SiteURL:       siteURL,
		Tier:          acct.Tier,
		AvgOrderValue: orderValue,
		Traffic:       &traffic,
		Search:        &search,
		Conversions:   &conversions,
		Vitals:        &assessment,
	}, assessment, nil
}

func (s *Service) orderValue(req GenerateRequest) float64 {
	if req.AvgOrderValue != nil {
		return *req.AvgOrderValue
	}
	return s.defaultOrderValue
}

func (s *Service) discard(ctx context.Context, loc Locator) {
	if err := s.sink.Discard(context.WithoutCancel(ctx), loc.Key); err != nil {
		s.logger.Warn("orphaned report artifact",
			"key", loc.Key,
			"error", err,
		)
	}
}

func (s *Service) List(ctx context.Context, userID string) ([]Report, error) {
	return s.repo.ListRecent(ctx, userID, s.historyLimit)
}

func (s *Service) Get(ctx context.Context, userID, reportID string) (*Report, error) {
	if _, err := uuid.Parse(reportID); err != nil {
		return nil, fmt.Errorf("get report: %w", core.ErrNotFound)
	}
	return s.repo.GetForUser(ctx, reportID, userID)
}

// Open returns the stored artifact; the caller closes it.
func (s *Service) Open(
	ctx context.Context,
	userID, reportID string,
) (*Report, io.ReadCloser, error) {
	rep, err := s.Get(ctx, userID, reportID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.sink.Open(ctx, rep.ArtifactKey)
	if err != nil {
		return nil, nil, err
	}

	return rep, rc, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
