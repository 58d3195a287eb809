// AngelaMos | 2026
// analytics.go

package analytics

import (
	"context"
	"time"
)

type TrafficPoint struct {
	Date  string `json:"date"  validate:"required"`
	Users int    `json:"users" validate:"gte=0"`
}

type Traffic struct {
	TotalUsers int            `json:"total_users" validate:"gte=0"`
	Daily      []TrafficPoint `json:"daily"       validate:"required,min=1,dive"`
}

type Keyword struct {
	Keyword     string  `json:"keyword"     validate:"required"`
	Clicks      int     `json:"clicks"      validate:"gte=0"`
	Impressions int     `json:"impressions" validate:"gte=0"`
	CTR         float64 `json:"ctr"         validate:"gte=0"`
	Position    float64 `json:"position"    validate:"gte=0"`
}

type Page struct {
	Path   string `json:"page"   validate:"required"`
	Clicks int    `json:"clicks" validate:"gte=0"`
}

type Search struct {
	TopKeywords []Keyword `json:"top_keywords" validate:"dive"`
	TopPages    []Page    `json:"top_pages"    validate:"required,min=1,dive"`
}

// ConversionSnapshot holds one period of goal completions and their value
// alongside the prior period for growth comparison.
type ConversionSnapshot struct {
	Conversions         int     `json:"conversions"          validate:"gte=0"`
	Value               float64 `json:"conversion_value"     validate:"gte=0"`
	PreviousValue       float64 `json:"previous_value"       validate:"gte=0"`
	PreviousConversions int     `json:"previous_conversions" validate:"gte=0"`
}

type Provider interface {
	Traffic(ctx context.Context, siteURL string) (Traffic, error)
	Search(ctx context.Context, siteURL string) (Search, error)
	Conversions(ctx context.Context, siteURL string) (ConversionSnapshot, error)
}

// SampleProvider serves a fixed dataset for sites without a connected
// analytics property.
type SampleProvider struct {
	now func() time.Time
}

func NewSampleProvider(now func() time.Time) *SampleProvider {
	if now == nil {
		now = time.Now
	}
	return &SampleProvider{now: now}
}

const sampleDays = 30

func (p *SampleProvider) Traffic(_ context.Context, _ string) (Traffic, error) {
	end := p.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -sampleDays)

	daily := make([]TrafficPoint, 0, sampleDays)
	for i := 1; i <= sampleDays; i++ {
		daily = append(daily, TrafficPoint{
			Date:  start.AddDate(0, 0, i-1).Format(time.DateOnly),
			Users: 400 + i*10,
		})
	}

	return Traffic{TotalUsers: 12543, Daily: daily}, nil
}

func (p *SampleProvider) Search(_ context.Context, _ string) (Search, error) {
	return Search{
		TopKeywords: []Keyword{
			{Keyword: "best seo tools", Clicks: 1250, Impressions: 15000, CTR: 8.3, Position: 3.2},
			{Keyword: "seo reporting", Clicks: 890, Impressions: 12000, CTR: 7.4, Position: 4.1},
			{Keyword: "automated seo", Clicks: 650, Impressions: 9500, CTR: 6.8, Position: 5.3},
			{Keyword: "seo analytics", Clicks: 520, Impressions: 8000, CTR: 6.5, Position: 6.1},
			{Keyword: "white label seo", Clicks: 380, Impressions: 6200, CTR: 6.1, Position: 7.8},
		},
		TopPages: []Page{
			{Path: "/blog/seo-guide", Clicks: 2340},
			{Path: "/pricing", Clicks: 1890},
			{Path: "/features", Clicks: 1560},
			{Path: "/blog/keyword-research", Clicks: 1230},
			{Path: "/case-studies", Clicks: 980},
			{Path: "/blog/technical-seo", Clicks: 870},
			{Path: "/integrations", Clicks: 750},
			{Path: "/blog/link-building", Clicks: 640},
			{Path: "/about", Clicks: 520},
			{Path: "/contact", Clicks: 410},
		},
	}, nil
}

func (p *SampleProvider) Conversions(_ context.Context, _ string) (ConversionSnapshot, error) {
	return ConversionSnapshot{
		Conversions:         45,
		Value:               4500,
		PreviousValue:       3800,
		PreviousConversions: 38,
	}, nil
}

// AverageOrderValue derives the order value from the snapshot, 0 when no
// conversions were recorded.
func (c ConversionSnapshot) AverageOrderValue() float64 {
	if c.Conversions == 0 {
		return 0
	}
	return c.Value / float64(c.Conversions)
}
