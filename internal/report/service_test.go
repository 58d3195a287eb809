// AngelaMos | 2026
// service_test.go

package report

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportriser/backend/internal/analytics"
	"github.com/reportriser/backend/internal/artifact"
	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/vitals"
)

type fakeAccounts struct {
	mu        sync.Mutex
	accounts  map[string]*entitlement.Account
	sites     map[string]map[string]bool
	loseQuota bool
}

func newFakeAccounts(accts ...entitlement.Account) *fakeAccounts {
	f := &fakeAccounts{
		accounts: map[string]*entitlement.Account{},
		sites:    map[string]map[string]bool{},
	}
	for _, a := range accts {
		f.accounts[a.UserID] = &a
		f.sites[a.UserID] = map[string]bool{}
	}
	return f
}

func (f *fakeAccounts) GetAccount(_ context.Context, userID string) (entitlement.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[userID]
	if !ok {
		return entitlement.Account{}, core.ErrNotFound
	}
	return *a, nil
}

// Atomically runs fn under the fake's lock and restores the accounts and
// sites when fn fails, like a rolled back transaction.
func (f *fakeAccounts) Atomically(
	ctx context.Context,
	userID string,
	fn func(context.Context, entitlement.SiteRegistry, entitlement.Account) error,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.accounts[userID]
	if !ok {
		return core.ErrNotFound
	}

	savedAcct := *a
	savedSites := make(map[string]bool, len(f.sites[userID]))
	for k, v := range f.sites[userID] {
		savedSites[k] = v
	}

	if err := fn(ctx, fakeTx{f}, *a); err != nil {
		*a = savedAcct
		f.sites[userID] = savedSites
		return err
	}
	return nil
}

func (f *fakeAccounts) SetTier(_ context.Context, userID string, tier entitlement.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[userID].Tier = tier
	return nil
}

func (f *fakeAccounts) SetTierBySubscription(context.Context, string, entitlement.Tier) error {
	return nil
}

func (f *fakeAccounts) siteRegistered(userID, siteURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sites[userID][siteURL]
}

// fakeTx is the registry handed to fn; the caller already holds f.mu.
type fakeTx struct {
	f *fakeAccounts
}

func (t fakeTx) IsSiteRegistered(_ context.Context, userID, siteURL string) (bool, error) {
	return t.f.sites[userID][siteURL], nil
}

func (t fakeTx) CountSites(_ context.Context, userID string) (int, error) {
	return len(t.f.sites[userID]), nil
}

func (t fakeTx) RegisterSite(_ context.Context, userID, siteURL string) error {
	t.f.sites[userID][siteURL] = true
	return nil
}

func (t fakeTx) IncrementSiteUsage(_ context.Context, userID string) error {
	t.f.accounts[userID].SitesUsed++
	return nil
}

func (t fakeTx) IncrementReportsUsed(_ context.Context, userID string, limit int) (bool, error) {
	if t.f.loseQuota {
		return false, nil
	}
	a := t.f.accounts[userID]
	if limit != entitlement.Unlimited && a.ReportsUsed >= limit {
		return false, nil
	}
	a.ReportsUsed++
	return true, nil
}

func (fakeTx) DB() core.DBTX {
	return nil
}

type memReports struct {
	mu      sync.Mutex
	reports map[string]Report
	failing error
}

func newMemReports() *memReports {
	return &memReports{reports: map[string]Report{}}
}

func (m *memReports) Create(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	r.CreatedAt = time.Now()
	m.reports[r.ID] = *r
	return nil
}

func (m *memReports) GetForUser(_ context.Context, id, userID string) (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.UserID != userID {
		return nil, core.ErrNotFound
	}
	return &r, nil
}

func (m *memReports) ListRecent(_ context.Context, userID string, limit int) ([]Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Report
	for _, r := range m.reports {
		if r.UserID == userID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReports) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reports), nil
}

type staticVitals struct {
	m   vitals.Measurement
	err error
}

func (s staticVitals) Fetch(context.Context, string) (vitals.Measurement, error) {
	return s.m, s.err
}

// flakyVitals fails for the listed sites only.
type flakyVitals struct {
	failFor map[string]bool
}

func (f flakyVitals) Fetch(_ context.Context, siteURL string) (vitals.Measurement, error) {
	if f.failFor[siteURL] {
		return vitals.Measurement{}, errors.New("pagespeed timeout")
	}
	return mixedVitals, nil
}

type recordingDeliverer struct {
	mu    sync.Mutex
	sent  map[string][]byte
	err   error
	calls int
}

func (d *recordingDeliverer) SendReport(_ context.Context, userID, siteURL string, pdf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return d.err
	}
	if d.sent == nil {
		d.sent = map[string][]byte{}
	}
	d.sent[userID+" "+siteURL] = pdf
	return nil
}

type brokenSearch struct {
	*analytics.SampleProvider
}

func (brokenSearch) Search(context.Context, string) (analytics.Search, error) {
	return analytics.Search{}, errors.New("search console unavailable")
}

type harness struct {
	svc      *Service
	accounts *fakeAccounts
	reports  *memReports
	metrics  *core.Metrics
	root     string
}

type harnessOpts struct {
	vitals    vitals.Provider
	analytics analytics.Provider
	deliverer Deliverer
}

func newHarness(t *testing.T, opts harnessOpts, accts ...entitlement.Account) *harness {
	t.Helper()

	root := t.TempDir()
	store, err := artifact.NewFilesystemStore(root)
	require.NoError(t, err)

	if opts.vitals == nil {
		opts.vitals = staticVitals{m: mixedVitals}
	}
	if opts.analytics == nil {
		opts.analytics = analytics.NewSampleProvider(nil)
	}

	accounts := newFakeAccounts(accts...)
	reports := newMemReports()
	metrics := core.NewMetrics()

	engine := entitlement.NewEngine(entitlement.EngineConfig{
		Registry: accounts,
		Accounts: accounts,
		Metrics:  metrics,
	})

	svc := NewService(ServiceConfig{
		Repo:              reports,
		Deliverer:         opts.deliverer,
		Accounts:          accounts,
		Engine:            engine,
		Vitals:            opts.vitals,
		Analytics:         opts.analytics,
		Compositor:        NewCompositor(CompositorConfig{}),
		Sink:              NewArtifactSink(NewPDFRenderer(PDFOptions{}), store),
		Metrics:           metrics,
		DefaultOrderValue: 100,
	})

	return &harness{svc: svc, accounts: accounts, reports: reports, metrics: metrics, root: root}
}

func countFiles(t *testing.T, root string) int {
	t.Helper()
	n := 0
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func TestService_GenerateAllowed(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{SiteURL: " https://example.com "})
	require.NoError(t, err)

	require.True(t, res.Decision.Allowed)
	require.NotNil(t, res.Report)
	assert.Equal(t, "https://example.com", res.Report.SiteURL)
	assert.Equal(t, "starter", res.Report.Tier)
	assert.Equal(t, 75, res.Report.VitalsScore)
	assert.InDelta(t, 4500.0, res.Report.Revenue, 0.001)
	assert.InDelta(t, 0.36, res.ROI.ConversionRate, 0.001)
	assert.Equal(t, "12,543 organic visitors → 45 conversions → $4,500 revenue", res.ROI.Text)

	acct, _ := h.accounts.GetAccount(context.Background(), "u1")
	assert.Equal(t, 1, acct.ReportsUsed)
	assert.Equal(t, 1, acct.SitesUsed)

	assert.Equal(t, 1, countFiles(t, h.root))
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.ReportsGenerated.WithLabelValues("starter")), 0.001)

	rep, rc, err := h.svc.Open(context.Background(), "u1", res.Report.ID)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck // test
	body, _ := io.ReadAll(rc)
	assert.Len(t, body, rep.SizeBytes)
}

func TestService_GenerateCustomOrderValue(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierPremium})
	aov := 150.0

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{
		SiteURL:       "https://example.com",
		AvgOrderValue: &aov,
	})
	require.NoError(t, err)
	assert.InDelta(t, 6750.0, res.Report.Revenue, 0.001)
}

func TestService_GenerateDeniedAtReportLimit(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierFree, ReportsUsed: 1})

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{SiteURL: "https://example.com"})
	require.NoError(t, err)

	assert.False(t, res.Decision.Allowed)
	assert.Equal(t, entitlement.ActionGenerateReport, res.Decision.Action)
	assert.Equal(t, 1, res.Decision.Limit)
	assert.Equal(t, entitlement.TierStarter, res.Decision.UpgradeTo)
	assert.Contains(t, res.Decision.Reason, "monthly limit of 1 reports")
	assert.Nil(t, res.Report)
	assert.Equal(t, 0, countFiles(t, h.root))
}

func TestService_GenerateDeniedAtSiteLimit(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})
	ctx := context.Background()

	for _, site := range []string{"https://a.com", "https://b.com", "https://c.com"} {
		res, err := h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: site})
		require.NoError(t, err)
		require.True(t, res.Decision.Allowed, site)
	}

	res, err := h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: "https://d.com"})
	require.NoError(t, err)
	assert.False(t, res.Decision.Allowed)
	assert.Equal(t, entitlement.ActionAddSite, res.Decision.Action)
	assert.Equal(t, 3, res.Decision.Limit)

	res, err = h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: "https://a.com"})
	require.NoError(t, err)
	assert.True(t, res.Decision.Allowed)
}

func TestService_LostQuotaRaceDiscardsArtifact(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})
	h.accounts.loseQuota = true

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{SiteURL: "https://example.com"})
	require.NoError(t, err)

	assert.False(t, res.Decision.Allowed)
	assert.Equal(t, 0, countFiles(t, h.root))
	n, _ := h.reports.Count(context.Background())
	assert.Equal(t, 0, n)

	acct, _ := h.accounts.GetAccount(context.Background(), "u1")
	assert.Equal(t, 0, acct.SitesUsed)
	assert.Equal(t, 0, acct.ReportsUsed)
	assert.False(t, h.accounts.siteRegistered("u1", "https://example.com"))
}

func TestService_RepositoryFailureDiscardsArtifact(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})
	h.reports.failing = errors.New("db down")

	_, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{SiteURL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, 0, countFiles(t, h.root))

	acct, _ := h.accounts.GetAccount(context.Background(), "u1")
	assert.Equal(t, 0, acct.SitesUsed)
	assert.Equal(t, 0, acct.ReportsUsed)
	assert.False(t, h.accounts.siteRegistered("u1", "https://example.com"))
}

func TestService_UpstreamFailuresAreTyped(t *testing.T) {
	tests := []struct {
		name    string
		opts    harnessOpts
		source  string
		section SectionKind
	}{
		{
			"vitals",
			harnessOpts{vitals: staticVitals{err: context.Canceled}},
			"vitals",
			SectionVitals,
		},
		{
			"search",
			harnessOpts{analytics: brokenSearch{analytics.NewSampleProvider(nil)}},
			"search",
			SectionTopPages,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})

			_, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{SiteURL: "https://example.com"})

			var up *UpstreamDataError
			require.True(t, errors.As(err, &up), "got %v", err)
			assert.Equal(t, tt.source, up.Source)
			assert.Equal(t, tt.section, up.Section)

			acct, _ := h.accounts.GetAccount(context.Background(), "u1")
			assert.Equal(t, 0, acct.ReportsUsed)
			assert.Equal(t, 0, acct.SitesUsed)
			assert.False(t, h.accounts.siteRegistered("u1", "https://example.com"))
			assert.Equal(t, 0, countFiles(t, h.root))
		})
	}
}

func TestService_FallbackVitalsStillProduceReport(t *testing.T) {
	provider := vitals.NewFallbackProvider(staticVitals{err: errors.New("timeout")}, nil, nil)
	h := newHarness(t, harnessOpts{vitals: provider}, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{SiteURL: "https://example.com"})
	require.NoError(t, err)
	assert.True(t, res.Vitals.Fallback)
	assert.Equal(t, 75, res.Report.VitalsScore)
}

func TestService_UnknownUser(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	_, err := h.svc.Generate(context.Background(), "ghost", GenerateRequest{SiteURL: "https://example.com"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_GetRejectsMalformedID(t *testing.T) {
	h := newHarness(t, harnessOpts{})

	_, err := h.svc.Get(context.Background(), "u1", "not-a-uuid")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_ListScopedToUser(t *testing.T) {
	h := newHarness(t, harnessOpts{},
		entitlement.Account{UserID: "u1", Tier: entitlement.TierEnterprise},
		entitlement.Account{UserID: "u2", Tier: entitlement.TierEnterprise},
	)
	ctx := context.Background()

	_, err := h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: "https://example.com"})
	require.NoError(t, err)

	mine, err := h.svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, err := h.svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, theirs)

	_, err = h.svc.Get(ctx, "u2", mine[0].ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_UpstreamFailureLeavesSiteSlotFree(t *testing.T) {
	h := newHarness(t,
		harnessOpts{vitals: flakyVitals{failFor: map[string]bool{"https://a.com": true}}},
		entitlement.Account{UserID: "u1", Tier: entitlement.TierFree},
	)
	ctx := context.Background()

	_, err := h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: "https://a.com"})
	var up *UpstreamDataError
	require.ErrorAs(t, err, &up)

	res, err := h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: "https://b.com"})
	require.NoError(t, err)
	require.True(t, res.Decision.Allowed)

	acct, _ := h.accounts.GetAccount(ctx, "u1")
	assert.Equal(t, 1, acct.SitesUsed)
	assert.Equal(t, 1, acct.ReportsUsed)
	assert.False(t, h.accounts.siteRegistered("u1", "https://a.com"))
	assert.True(t, h.accounts.siteRegistered("u1", "https://b.com"))
}

func TestService_EquivalentURLsShareOneSite(t *testing.T) {
	h := newHarness(t, harnessOpts{}, entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter})
	ctx := context.Background()

	for _, site := range []string{"https://Example.com/", "https://example.com", "HTTPS://EXAMPLE.COM#top"} {
		res, err := h.svc.Generate(ctx, "u1", GenerateRequest{SiteURL: site})
		require.NoError(t, err)
		require.True(t, res.Decision.Allowed, site)
		assert.Equal(t, "https://example.com", res.Report.SiteURL)
	}

	acct, _ := h.accounts.GetAccount(ctx, "u1")
	assert.Equal(t, 1, acct.SitesUsed)
	assert.Equal(t, 3, acct.ReportsUsed)
}

func TestService_EmailReportSendsStoredPDF(t *testing.T) {
	d := &recordingDeliverer{}
	h := newHarness(t, harnessOpts{deliverer: d},
		entitlement.Account{UserID: "u1", Tier: entitlement.TierPremium},
	)

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{
		SiteURL:     "https://example.com",
		EmailReport: true,
	})
	require.NoError(t, err)
	require.True(t, res.Decision.Allowed)
	assert.True(t, res.Emailed)

	pdf := d.sent["u1 https://example.com"]
	require.NotEmpty(t, pdf)
	assert.Len(t, pdf, res.Report.SizeBytes)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestService_EmailReportRequiresPlan(t *testing.T) {
	d := &recordingDeliverer{}
	h := newHarness(t, harnessOpts{deliverer: d},
		entitlement.Account{UserID: "u1", Tier: entitlement.TierStarter},
	)

	_, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{
		SiteURL:     "https://example.com",
		EmailReport: true,
	})
	require.ErrorIs(t, err, ErrEmailNotIncluded)
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.Zero(t, d.calls)

	acct, _ := h.accounts.GetAccount(context.Background(), "u1")
	assert.Equal(t, 0, acct.ReportsUsed)
	assert.Equal(t, 0, countFiles(t, h.root))
}

func TestService_EmailFailureKeepsReport(t *testing.T) {
	d := &recordingDeliverer{err: errors.New("resend down")}
	h := newHarness(t, harnessOpts{deliverer: d},
		entitlement.Account{UserID: "u1", Tier: entitlement.TierEnterprise},
	)

	res, err := h.svc.Generate(context.Background(), "u1", GenerateRequest{
		SiteURL:     "https://example.com",
		EmailReport: true,
	})
	require.NoError(t, err)
	assert.False(t, res.Emailed)
	assert.Equal(t, 1, d.calls)

	n, _ := h.reports.Count(context.Background())
	assert.Equal(t, 1, n)
}
