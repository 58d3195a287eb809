// AngelaMos | 2026
// compositor.go

package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/reportriser/backend/internal/analytics"
	"github.com/reportriser/backend/internal/core"
	"github.com/reportriser/backend/internal/entitlement"
	"github.com/reportriser/backend/internal/roi"
	"github.com/reportriser/backend/internal/vitals"
)

const (
	trafficPeriodDays = 30
	maxTopPages       = 10

	titleStandard = "SEO Performance Report"
	titleCustom   = "Custom SEO Analytics Report"

	DefaultWatermark = "Generated by ReportRiser.com — Prove SEO ROI in 60 Seconds"
)

var (
	ErrMissingInput = errors.New("missing input")
	ErrNoClicks     = errors.New("top pages have no clicks")
)

var printer = message.NewPrinter(language.English)

// Inputs is everything one report needs. Every pointer is required.
type Inputs struct {
	SiteURL       string
	Tier          entitlement.Tier
	AvgOrderValue float64
	GeneratedAt   time.Time
	Traffic       *analytics.Traffic
	Search        *analytics.Search
	Conversions   *analytics.ConversionSnapshot
	Vitals        *vitals.Assessment
}

type CompositorConfig struct {
	WatermarkText string
	Now           func() time.Time
}

type Compositor struct {
	watermark string
	now       func() time.Time
	validate  *validator.Validate
}

func NewCompositor(cfg CompositorConfig) *Compositor {
	watermark := cfg.WatermarkText
	if watermark == "" {
		watermark = DefaultWatermark
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Compositor{
		watermark: watermark,
		now:       now,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

type sectionStep struct {
	kind  SectionKind
	build func(in Inputs) (Section, error)
}

// Compose builds the document in SectionOrder. The first invalid input
// aborts with a *CompositionError naming its section.
func (c *Compositor) Compose(ctx context.Context, in Inputs) (*Document, error) {
	ctx, span := core.StartSpan(ctx, "report.compose",
		attribute.String("report.tier", string(in.Tier)),
		attribute.String("report.site", in.SiteURL),
	)
	defer span.End()

	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = c.now()
	}

	whiteLabel := entitlement.HasCapability(in.Tier, entitlement.CapabilityWhiteLabel)

	steps := []sectionStep{
		{SectionTitle, func(Inputs) (Section, error) { return titleSection(whiteLabel), nil }},
		{SectionHeader, c.headerSection},
		{SectionROI, c.roiSection},
		{SectionVitals, c.vitalsSection},
		{SectionTraffic, c.trafficSection},
		{SectionTopPages, c.topPagesSection},
		{SectionKeywords, c.keywordsSection},
	}

	sections := make([]Section, 0, len(SectionOrder))
	for _, step := range steps {
		s, err := step.build(in)
		if err != nil {
			cerr := &CompositionError{Section: step.kind, Err: err}
			core.SetSpanError(ctx, cerr)
			return nil, cerr
		}
		s.Kind = step.kind
		sections = append(sections, s)
	}

	if !whiteLabel {
		sections = append(sections, Section{
			Kind:       SectionWatermark,
			Paragraphs: []string{c.watermark},
		})
	}

	return &Document{
		title:       sections[0].Heading,
		siteURL:     in.SiteURL,
		tier:        in.Tier,
		generatedAt: in.GeneratedAt,
		highlights:  highlights(in),
		sections:    sections,
	}, nil
}

func titleSection(whiteLabel bool) Section {
	if whiteLabel {
		return Section{Heading: titleCustom}
	}
	return Section{Heading: titleStandard}
}

func (c *Compositor) headerSection(in Inputs) (Section, error) {
	if err := c.validate.Var(in.SiteURL, "required"); err != nil {
		return Section{}, fmt.Errorf("site url: %w", ErrMissingInput)
	}

	return Section{
		Paragraphs: []string{
			"Domain: " + in.SiteURL,
			"Report Date: " + in.GeneratedAt.Format("January 02, 2006"),
		},
	}, nil
}

func (c *Compositor) roiSection(in Inputs) (Section, error) {
	if in.Traffic == nil || in.Conversions == nil {
		return Section{}, fmt.Errorf("traffic and conversions: %w", ErrMissingInput)
	}
	if err := c.validate.Struct(in.Conversions); err != nil {
		return Section{}, fmt.Errorf("conversions: %w", err)
	}
	if err := c.validate.Var(in.AvgOrderValue, "gte=0"); err != nil {
		return Section{}, fmt.Errorf("average order value: %w", err)
	}
	if in.Traffic.TotalUsers < 0 {
		return Section{}, fmt.Errorf("negative traffic total %d", in.Traffic.TotalUsers)
	}

	summary := roi.Summarize(in.Traffic.TotalUsers, in.Conversions.Conversions, in.AvgOrderValue)
	growth := roi.GrowthPercent(in.Conversions.Value, in.Conversions.PreviousValue)

	return Section{
		Heading: "Organic ROI Summary",
		Paragraphs: []string{
			printer.Sprintf(
				"%s organic visitors generated %d conversions this month, resulting in %s in revenue (%s vs last month).",
				roi.FormatCount(in.Traffic.TotalUsers),
				in.Conversions.Conversions,
				roi.FormatCurrency(summary.Revenue),
				signedPercent(growth),
			),
			fmt.Sprintf(
				"Conversion Rate: %s%% | Avg Order Value: %s",
				strconv.FormatFloat(summary.ConversionRate, 'f', -1, 64),
				roi.FormatCurrency(in.Conversions.AverageOrderValue()),
			),
		},
	}, nil
}

var metricRowLabels = map[vitals.Metric][2]string{
	vitals.MetricLCP: {"LCP (Load Speed)", "Load time affects conversions"},
	vitals.MetricFID: {"FID (Interactivity)", "Response time affects engagement"},
	vitals.MetricCLS: {"CLS (Visual Stability)", "Layout shifts hurt UX"},
}

func (c *Compositor) vitalsSection(in Inputs) (Section, error) {
	if in.Vitals == nil {
		return Section{}, fmt.Errorf("vitals assessment: %w", ErrMissingInput)
	}
	if len(in.Vitals.Metrics) != len(vitals.MetricOrder) {
		return Section{}, fmt.Errorf(
			"vitals assessment has %d metrics, want %d",
			len(in.Vitals.Metrics), len(vitals.MetricOrder),
		)
	}

	table := Table{
		Columns: []string{"Metric", "Value", "Status", "Impact"},
		Weights: []float64{1.8, 1, 1.8, 1.6},
	}
	for _, metric := range vitals.MetricOrder {
		m := in.Vitals.Metric(metric)
		if m.Status == "" {
			return Section{}, fmt.Errorf("vitals %s: %w", metric, ErrMissingInput)
		}
		labels := metricRowLabels[metric]
		table.Rows = append(table.Rows, []string{
			labels[0],
			m.Display,
			m.Symbol + " " + m.Status.Label(),
			labels[1],
		})
	}

	s := Section{
		Heading: "Core Web Vitals Assessment",
		Tables:  []Table{table},
		Paragraphs: []string{
			fmt.Sprintf("Overall CWV Score: %d/100", in.Vitals.Score),
			in.Vitals.OverallRecommendation,
		},
	}

	if in.Vitals.Fallback {
		s.Paragraphs = append(s.Paragraphs,
			"Live measurement was unavailable; values shown are estimates.")
	}

	if fix, ok := in.Vitals.PriorityFix(); ok {
		s.Callout = "Priority Fix: " + fix.Recommendation
	}

	if sc := in.Vitals.Scores; sc != nil {
		s.Tables = append(s.Tables, Table{
			Columns: []string{"Performance", "Accessibility", "SEO"},
			Rows: [][]string{{
				strconv.Itoa(sc.Performance),
				strconv.Itoa(sc.Accessibility),
				strconv.Itoa(sc.SEO),
			}},
		})
	}

	return s, nil
}

func (c *Compositor) trafficSection(in Inputs) (Section, error) {
	if in.Traffic == nil {
		return Section{}, fmt.Errorf("traffic: %w", ErrMissingInput)
	}
	if err := c.validate.Struct(in.Traffic); err != nil {
		return Section{}, fmt.Errorf("traffic: %w", err)
	}

	peak := PeakDay(in.Traffic.Daily)

	return Section{
		Heading:   "Traffic Analysis",
		PageBreak: true,
		Paragraphs: []string{
			printer.Sprintf(
				"Over the past %d days, your site received %s organic visitors.",
				trafficPeriodDays,
				roi.FormatCount(in.Traffic.TotalUsers),
			),
			printer.Sprintf("Peak traffic day: %s (%d users)", peak.Date, peak.Users),
			"Average daily visitors: " + roi.FormatCount(AverageDailyVisitors(in.Traffic.TotalUsers)),
		},
	}, nil
}

func (c *Compositor) topPagesSection(in Inputs) (Section, error) {
	if in.Search == nil {
		return Section{}, fmt.Errorf("search data: %w", ErrMissingInput)
	}
	if err := c.validate.Struct(in.Search); err != nil {
		return Section{}, fmt.Errorf("search data: %w", err)
	}

	pages := in.Search.TopPages
	if len(pages) > maxTopPages {
		pages = pages[:maxTopPages]
	}

	shares, err := PageShares(pages)
	if err != nil {
		return Section{}, err
	}

	table := Table{
		Columns: []string{"Page", "Clicks", "% of Total"},
		Weights: []float64{3.5, 1.5, 1.2},
	}
	for i, p := range pages {
		table.Rows = append(table.Rows, []string{
			p.Path,
			roi.FormatCount(p.Clicks),
			strconv.FormatFloat(shares[i], 'f', 1, 64) + "%",
		})
	}

	return Section{Heading: "Top Performing Pages", Tables: []Table{table}}, nil
}

func (c *Compositor) keywordsSection(in Inputs) (Section, error) {
	if in.Search == nil {
		return Section{}, fmt.Errorf("search data: %w", ErrMissingInput)
	}

	table := Table{
		Columns: []string{"Keyword", "Clicks", "Impressions", "CTR", "Position"},
		Weights: []float64{2.2, 1, 1.2, 0.8, 1},
	}
	for _, kw := range in.Search.TopKeywords {
		table.Rows = append(table.Rows, []string{
			kw.Keyword,
			strconv.Itoa(kw.Clicks),
			strconv.Itoa(kw.Impressions),
			strconv.FormatFloat(kw.CTR, 'f', -1, 64) + "%",
			strconv.FormatFloat(kw.Position, 'f', -1, 64),
		})
	}

	return Section{Heading: "Top Keywords Details", Tables: []Table{table}}, nil
}

// PageShares is each page's share of the clicks summed over the given
// pages, as a percentage rounded to one decimal.
func PageShares(pages []analytics.Page) ([]float64, error) {
	total := 0
	for _, p := range pages {
		total += p.Clicks
	}
	if total <= 0 {
		return nil, ErrNoClicks
	}

	shares := make([]float64, len(pages))
	for i, p := range pages {
		shares[i] = roi.Round(float64(p.Clicks)/float64(total)*100, 1)
	}
	return shares, nil
}

// PeakDay is the busiest day; ties go to the earliest.
func PeakDay(days []analytics.TrafficPoint) analytics.TrafficPoint {
	var peak analytics.TrafficPoint
	for i, d := range days {
		if i == 0 || d.Users > peak.Users {
			peak = d
		}
	}
	return peak
}

func AverageDailyVisitors(total int) int {
	return total / trafficPeriodDays
}

func signedPercent(v float64) string {
	if v > 0 {
		return "+" + roi.FormatPercent(v)
	}
	return roi.FormatPercent(v)
}

func highlights(in Inputs) Highlights {
	h := Highlights{
		VitalsScore: in.Vitals.Score,
		Traffic:     in.Traffic.TotalUsers,
		Conversions: in.Conversions.Conversions,
	}
	h.Revenue = roi.Revenue(in.Conversions.Conversions, in.AvgOrderValue)
	h.GrowthPercent = roi.GrowthPercent(in.Conversions.Value, in.Conversions.PreviousValue)
	return h
}
