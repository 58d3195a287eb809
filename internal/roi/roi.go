// AngelaMos | 2026
// roi.go

package roi

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

type Summary struct {
	Revenue        float64 `json:"revenue"`
	ConversionRate float64 `json:"conversion_rate"`
	Text           string  `json:"summary"`
}

func Revenue(conversions int, avgOrderValue float64) float64 {
	return float64(conversions) * avgOrderValue
}

// GrowthPercent is the period-over-period change rounded to one decimal.
// A zero previous value yields 0.
func GrowthPercent(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return Round((current-previous)/previous*100, 1)
}

// ConversionRate is conversions per hundred visitors, two decimals, and 0
// without traffic.
func ConversionRate(conversions, traffic int) float64 {
	if traffic <= 0 {
		return 0
	}
	return Round(float64(conversions)/float64(traffic)*100, 2)
}

func Summarize(organicTraffic, conversions int, avgOrderValue float64) Summary {
	revenue := Revenue(conversions, avgOrderValue)

	return Summary{
		Revenue:        revenue,
		ConversionRate: ConversionRate(conversions, organicTraffic),
		Text: printer.Sprintf(
			"%s organic visitors → %d conversions → %s revenue",
			FormatCount(organicTraffic),
			conversions,
			FormatCurrency(revenue),
		),
	}
}

// FormatCurrency renders whole dollars with thousands separators: $4,500.
func FormatCurrency(amount float64) string {
	whole := int64(Round(amount, 0))
	if whole < 0 {
		return printer.Sprintf("-$%d", -whole)
	}
	return printer.Sprintf("$%d", whole)
}

func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}

// FormatPercent renders one decimal place followed by a percent sign.
func FormatPercent(v float64) string {
	return printer.Sprintf("%.1f%%", Round(v, 1))
}

// Round rounds half away from zero to the given number of decimals.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
