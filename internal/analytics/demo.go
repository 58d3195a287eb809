// AngelaMos | 2026
// demo.go

package analytics

import (
	"context"
	"time"
)

// DemoSite is the storefront shown on the public demo.
const DemoSite = "nike.com"

var demoStart = time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)

// DemoProvider serves the fixed storefront dataset behind the public demo.
// The site argument is ignored.
type DemoProvider struct{}

func (DemoProvider) Traffic(context.Context, string) (Traffic, error) {
	daily := make([]TrafficPoint, 0, sampleDays)
	for i := 1; i <= sampleDays; i++ {
		daily = append(daily, TrafficPoint{
			Date:  demoStart.AddDate(0, 0, i-1).Format(time.DateOnly),
			Users: 1400 + i*25,
		})
	}
	return Traffic{TotalUsers: 45230, Daily: daily}, nil
}

func (DemoProvider) Search(context.Context, string) (Search, error) {
	return Search{
		TopKeywords: []Keyword{
			{Keyword: "running shoes", Clicks: 8250, Impressions: 95000, CTR: 8.7, Position: 2.1},
			{Keyword: "nike air max", Clicks: 6890, Impressions: 82000, CTR: 8.4, Position: 2.8},
			{Keyword: "athletic wear", Clicks: 5650, Impressions: 71000, CTR: 8.0, Position: 3.2},
			{Keyword: "sports shoes", Clicks: 4520, Impressions: 63000, CTR: 7.2, Position: 4.1},
			{Keyword: "nike sneakers", Clicks: 3380, Impressions: 52000, CTR: 6.5, Position: 5.3},
		},
		TopPages: []Page{
			{Path: "/running-shoes", Clicks: 12340},
			{Path: "/air-max-collection", Clicks: 9890},
			{Path: "/mens-athletic-wear", Clicks: 8560},
			{Path: "/womens-training", Clicks: 7230},
			{Path: "/sale", Clicks: 6980},
		},
	}, nil
}

// Conversions is priced at a $150 order; the prior period is 18% lower.
func (DemoProvider) Conversions(context.Context, string) (ConversionSnapshot, error) {
	return ConversionSnapshot{
		Conversions:         45,
		Value:               6750,
		PreviousValue:       5720,
		PreviousConversions: 38,
	}, nil
}
