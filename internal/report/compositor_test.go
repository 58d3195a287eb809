// AngelaMos | 2026
// compositor_test.go

package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportriser/backend/internal/analytics"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/vitals"
)

var reportTime = time.Date(2026, 3, 31, 9, 30, 0, 0, time.UTC)

func sampleInputs(t *testing.T, tier entitlement.Tier, m vitals.Measurement) Inputs {
	t.Helper()

	p := analytics.NewSampleProvider(func() time.Time { return reportTime })
	ctx := context.Background()

	traffic, err := p.Traffic(ctx, "")
	require.NoError(t, err)
	search, err := p.Search(ctx, "")
	require.NoError(t, err)
	conv, err := p.Conversions(ctx, "")
	require.NoError(t, err)

	a := vitals.Assess(m)

	return Inputs{
		SiteURL:       "https://example.com",
		Tier:          tier,
		AvgOrderValue: 100,
		GeneratedAt:   reportTime,
		Traffic:       &traffic,
		Search:        &search,
		Conversions:   &conv,
		Vitals:        &a,
	}
}

var mixedVitals = vitals.Measurement{LCP: 2.8, FID: 0.15, CLS: 0.08}

func kinds(doc *Document) []SectionKind {
	out := make([]SectionKind, 0, doc.Len())
	for _, s := range doc.Sections() {
		out = append(out, s.Kind)
	}
	return out
}

func TestCompose_SectionOrderWithWatermark(t *testing.T) {
	c := NewCompositor(CompositorConfig{})

	for _, tier := range []entitlement.Tier{entitlement.TierFree, entitlement.TierStarter, entitlement.TierPremium} {
		doc, err := c.Compose(context.Background(), sampleInputs(t, tier, mixedVitals))
		require.NoError(t, err)

		assert.Equal(t, SectionOrder, kinds(doc), string(tier))
		assert.Equal(t, "SEO Performance Report", doc.Title())

		wm, ok := doc.Section(SectionWatermark)
		require.True(t, ok)
		assert.Equal(t, []string{DefaultWatermark}, wm.Paragraphs)
	}
}

func TestCompose_EnterpriseIsWhiteLabel(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.TierEnterprise, mixedVitals),
	)
	require.NoError(t, err)

	assert.False(t, doc.Has(SectionWatermark))
	assert.Equal(t, SectionOrder[:len(SectionOrder)-1], kinds(doc))
	assert.Equal(t, "Custom SEO Analytics Report", doc.Title())
}

func TestCompose_UnknownTierGetsWatermark(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.Tier("platinum"), mixedVitals),
	)
	require.NoError(t, err)
	assert.True(t, doc.Has(SectionWatermark))
}

func TestCompose_CustomWatermark(t *testing.T) {
	c := NewCompositor(CompositorConfig{WatermarkText: "Made with Acme"})

	doc, err := c.Compose(context.Background(), sampleInputs(t, entitlement.TierFree, mixedVitals))
	require.NoError(t, err)

	wm, _ := doc.Section(SectionWatermark)
	assert.Equal(t, []string{"Made with Acme"}, wm.Paragraphs)
}

func TestCompose_HeaderAndROI(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.TierStarter, mixedVitals),
	)
	require.NoError(t, err)

	header, _ := doc.Section(SectionHeader)
	assert.Equal(t, []string{
		"Domain: https://example.com",
		"Report Date: March 31, 2026",
	}, header.Paragraphs)

	r, _ := doc.Section(SectionROI)
	assert.Equal(t, "Organic ROI Summary", r.Heading)
	assert.Equal(t, []string{
		"12,543 organic visitors generated 45 conversions this month, resulting in $4,500 in revenue (+18.4% vs last month).",
		"Conversion Rate: 0.36% | Avg Order Value: $100",
	}, r.Paragraphs)

	h := doc.Highlights()
	assert.Equal(t, 75, h.VitalsScore)
	assert.InDelta(t, 4500.0, h.Revenue, 0.001)
	assert.InDelta(t, 18.4, h.GrowthPercent, 0.001)
}

func TestCompose_VitalsCallout(t *testing.T) {
	c := NewCompositor(CompositorConfig{})

	doc, err := c.Compose(context.Background(), sampleInputs(t, entitlement.TierFree, mixedVitals))
	require.NoError(t, err)

	v, _ := doc.Section(SectionVitals)
	require.Len(t, v.Tables, 1)
	assert.Equal(t, []string{"LCP (Load Speed)", "2.80s", "WARN Needs Improvement", "Load time affects conversions"}, v.Tables[0].Rows[0])
	assert.Equal(t, "CLS (Visual Stability)", v.Tables[0].Rows[2][0])
	assert.Equal(t, "Overall CWV Score: 75/100", v.Paragraphs[0])
	assert.Contains(t, v.Callout, "Priority Fix: ")

	good := vitals.Measurement{LCP: 1.2, FID: 0.05, CLS: 0.02}
	doc, err = c.Compose(context.Background(), sampleInputs(t, entitlement.TierFree, good))
	require.NoError(t, err)

	v, _ = doc.Section(SectionVitals)
	assert.Empty(t, v.Callout)
	assert.Equal(t, "Overall CWV Score: 100/100", v.Paragraphs[0])
}

func TestCompose_FallbackVitalsNoted(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.TierFree, vitals.FallbackMeasurement()),
	)
	require.NoError(t, err)

	v, _ := doc.Section(SectionVitals)
	require.Len(t, v.Tables, 2)
	assert.Equal(t, []string{"87", "93", "95"}, v.Tables[1].Rows[0])
	assert.Contains(t, v.Paragraphs, "Live measurement was unavailable; values shown are estimates.")
}

func TestCompose_Traffic(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.TierFree, mixedVitals),
	)
	require.NoError(t, err)

	tr, _ := doc.Section(SectionTraffic)
	assert.True(t, tr.PageBreak)
	assert.Equal(t, []string{
		"Over the past 30 days, your site received 12,543 organic visitors.",
		"Peak traffic day: 2026-03-30 (700 users)",
		"Average daily visitors: 418",
	}, tr.Paragraphs)
}

func TestCompose_TopPagesAndKeywords(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.TierFree, mixedVitals),
	)
	require.NoError(t, err)

	pages, _ := doc.Section(SectionTopPages)
	require.Len(t, pages.Tables, 1)
	require.Len(t, pages.Tables[0].Rows, 10)
	assert.Equal(t, []string{"/blog/seo-guide", "2,340", "20.9%"}, pages.Tables[0].Rows[0])

	kw, _ := doc.Section(SectionKeywords)
	assert.Equal(t, []string{"best seo tools", "1250", "15000", "8.3%", "3.2"}, kw.Tables[0].Rows[0])
}

func TestPageShares_SumToHundred(t *testing.T) {
	s, _ := analytics.NewSampleProvider(nil).Search(context.Background(), "")

	shares, err := PageShares(s.TopPages)
	require.NoError(t, err)

	total := 0.0
	for _, v := range shares {
		total += v
	}
	assert.InDelta(t, 100.0, total, 0.5)

	shares, err = PageShares([]analytics.Page{{Path: "/a", Clicks: 1}, {Path: "/b", Clicks: 2}})
	require.NoError(t, err)
	assert.Equal(t, []float64{33.3, 66.7}, shares)
}

func TestPageShares_NoClicks(t *testing.T) {
	_, err := PageShares([]analytics.Page{{Path: "/a"}})
	assert.ErrorIs(t, err, ErrNoClicks)

	_, err = PageShares(nil)
	assert.ErrorIs(t, err, ErrNoClicks)
}

func TestPeakDay_TieGoesToEarliest(t *testing.T) {
	peak := PeakDay([]analytics.TrafficPoint{
		{Date: "2026-01-01", Users: 5},
		{Date: "2026-01-02", Users: 9},
		{Date: "2026-01-03", Users: 9},
	})
	assert.Equal(t, "2026-01-02", peak.Date)
}

func TestAverageDailyVisitors(t *testing.T) {
	assert.Equal(t, 418, AverageDailyVisitors(12543))
	assert.Equal(t, 0, AverageDailyVisitors(29))
}

func TestCompose_FailuresNameTheSection(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *Inputs)
		section SectionKind
	}{
		{"missing site", func(in *Inputs) { in.SiteURL = "" }, SectionHeader},
		{"missing conversions", func(in *Inputs) { in.Conversions = nil }, SectionROI},
		{"negative order value", func(in *Inputs) { in.AvgOrderValue = -5 }, SectionROI},
		{"missing vitals", func(in *Inputs) { in.Vitals = nil }, SectionVitals},
		{"truncated vitals", func(in *Inputs) { in.Vitals.Metrics = in.Vitals.Metrics[:1] }, SectionVitals},
		{"empty daily traffic", func(in *Inputs) { in.Traffic.Daily = nil }, SectionTraffic},
		{"no pages", func(in *Inputs) { in.Search.TopPages = nil }, SectionTopPages},
		{"zero click pages", func(in *Inputs) {
			in.Search.TopPages = []analytics.Page{{Path: "/a"}, {Path: "/b"}}
		}, SectionTopPages},
	}

	c := NewCompositor(CompositorConfig{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleInputs(t, entitlement.TierStarter, mixedVitals)
			tt.mutate(&in)

			doc, err := c.Compose(context.Background(), in)
			assert.Nil(t, doc)

			var cerr *CompositionError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.section, cerr.Section)
		})
	}
}

func TestDocument_SectionsAreCopies(t *testing.T) {
	doc, err := NewCompositor(CompositorConfig{}).Compose(
		context.Background(),
		sampleInputs(t, entitlement.TierFree, mixedVitals),
	)
	require.NoError(t, err)

	sections := doc.Sections()
	sections[0].Heading = "tampered"
	sections[5].Tables[0].Rows[0][0] = "tampered"

	assert.Equal(t, "SEO Performance Report", doc.Sections()[0].Heading)
	pages, _ := doc.Section(SectionTopPages)
	assert.Equal(t, "/blog/seo-guide", pages.Tables[0].Rows[0][0])
}

func TestCompose_DefaultsGeneratedAt(t *testing.T) {
	c := NewCompositor(CompositorConfig{Now: func() time.Time { return reportTime }})
	in := sampleInputs(t, entitlement.TierFree, mixedVitals)
	in.GeneratedAt = time.Time{}

	doc, err := c.Compose(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, reportTime, doc.GeneratedAt())
}
