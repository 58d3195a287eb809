// AngelaMos | 2026
// vitals.go

package vitals

import (
	"fmt"
)

type Metric string

const (
	MetricLCP Metric = "lcp"
	MetricFID Metric = "fid"
	MetricCLS Metric = "cls"
)

// MetricOrder is the fixed evaluation order; it decides priority ties.
var MetricOrder = []Metric{MetricLCP, MetricFID, MetricCLS}

type Status string

const (
	StatusGood             Status = "good"
	StatusNeedsImprovement Status = "needs_improvement"
	StatusPoor             Status = "poor"
)

// Symbol is the plain-text marker shown next to a status.
func (s Status) Symbol() string {
	switch s {
	case StatusGood:
		return "PASS"
	case StatusNeedsImprovement:
		return "WARN"
	default:
		return "FAIL"
	}
}

func (s Status) Label() string {
	switch s {
	case StatusGood:
		return "Good"
	case StatusNeedsImprovement:
		return "Needs Improvement"
	default:
		return "Poor"
	}
}

type Thresholds struct {
	Good             float64
	NeedsImprovement float64
}

type Points struct {
	Good             int
	NeedsImprovement int
	Poor             int
}

type metricSpec struct {
	Label      string
	Unit       string
	Thresholds Thresholds
	Points     Points
}

var metricTable = map[Metric]metricSpec{
	MetricLCP: {
		Label:      "Largest Contentful Paint",
		Unit:       "s",
		Thresholds: Thresholds{Good: 2.5, NeedsImprovement: 4.0},
		Points:     Points{Good: 40, NeedsImprovement: 25, Poor: 10},
	},
	MetricFID: {
		Label:      "First Input Delay",
		Unit:       "s",
		Thresholds: Thresholds{Good: 0.1, NeedsImprovement: 0.3},
		Points:     Points{Good: 30, NeedsImprovement: 20, Poor: 5},
	},
	MetricCLS: {
		Label:      "Cumulative Layout Shift",
		Unit:       "",
		Thresholds: Thresholds{Good: 0.1, NeedsImprovement: 0.25},
		Points:     Points{Good: 30, NeedsImprovement: 20, Poor: 5},
	},
}

// LighthouseScores are the 0-100 category scores from a lab run.
type LighthouseScores struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	SEO           int `json:"seo"`
}

// Measurement holds the three raw readings: LCP and FID in seconds, CLS
// dimensionless.
type Measurement struct {
	LCP      float64           `json:"lcp"`
	FID      float64           `json:"fid"`
	CLS      float64           `json:"cls"`
	Scores   *LighthouseScores `json:"scores,omitempty"`
	Fallback bool              `json:"fallback"`
}

func (m Measurement) Value(metric Metric) float64 {
	switch metric {
	case MetricLCP:
		return m.LCP
	case MetricFID:
		return m.FID
	case MetricCLS:
		return m.CLS
	default:
		return 0
	}
}

func (m Measurement) Validate() error {
	for _, metric := range MetricOrder {
		if v := m.Value(metric); v < 0 {
			return fmt.Errorf("%s reading %v is negative", metric, v)
		}
	}
	return nil
}

// FallbackMeasurement is substituted when the measurement provider fails.
func FallbackMeasurement() Measurement {
	return Measurement{
		LCP: 2.8,
		FID: 0.15,
		CLS: 0.08,
		Scores: &LighthouseScores{
			Performance:   87,
			Accessibility: 93,
			SEO:           95,
		},
		Fallback: true,
	}
}

type MetricAssessment struct {
	Metric         Metric  `json:"metric"`
	Label          string  `json:"label"`
	Value          float64 `json:"value"`
	Display        string  `json:"display"`
	Status         Status  `json:"status"`
	Symbol         string  `json:"symbol"`
	Recommendation string  `json:"recommendation"`
}

type Assessment struct {
	Score                 int                `json:"score"`
	Metrics               []MetricAssessment `json:"metrics"`
	OverallRecommendation string             `json:"overall_recommendation"`
	Scores                *LighthouseScores  `json:"scores,omitempty"`
	Fallback              bool               `json:"fallback"`
}

// Metric returns the assessment for one metric; every Assessment built by
// Assess carries all three.
func (a Assessment) Metric(metric Metric) MetricAssessment {
	for _, m := range a.Metrics {
		if m.Metric == metric {
			return m
		}
	}
	return MetricAssessment{Metric: metric}
}

func (a Assessment) AllGood() bool {
	for _, m := range a.Metrics {
		if m.Status != StatusGood {
			return false
		}
	}
	return true
}

// PriorityFix is the recommendation of the first metric, in MetricOrder,
// whose status is not good. The boolean is false when every metric is good.
func (a Assessment) PriorityFix() (MetricAssessment, bool) {
	for _, m := range a.Metrics {
		if m.Status != StatusGood {
			return m, true
		}
	}
	return MetricAssessment{}, false
}

func Classify(metric Metric, value float64) Status {
	spec, ok := metricTable[metric]
	if !ok {
		return StatusPoor
	}

	switch {
	case value <= spec.Thresholds.Good:
		return StatusGood
	case value <= spec.Thresholds.NeedsImprovement:
		return StatusNeedsImprovement
	default:
		return StatusPoor
	}
}

func PointsFor(metric Metric, status Status) int {
	spec, ok := metricTable[metric]
	if !ok {
		return 0
	}

	switch status {
	case StatusGood:
		return spec.Points.Good
	case StatusNeedsImprovement:
		return spec.Points.NeedsImprovement
	default:
		return spec.Points.Poor
	}
}

// Score is the weighted 0-100 aggregate; each metric contributes at least
// its poor points, so the floor is 15.
func Score(m Measurement) int {
	total := 0
	for _, metric := range MetricOrder {
		total += PointsFor(metric, Classify(metric, m.Value(metric)))
	}
	return total
}

func Label(metric Metric) string {
	if spec, ok := metricTable[metric]; ok {
		return spec.Label
	}
	return string(metric)
}

func FormatValue(metric Metric, value float64) string {
	if metric == MetricCLS {
		return fmt.Sprintf("%.3f", value)
	}
	return fmt.Sprintf("%.2f%s", value, metricTable[metric].Unit)
}

func Assess(m Measurement) Assessment {
	a := Assessment{
		Metrics:  make([]MetricAssessment, 0, len(MetricOrder)),
		Scores:   m.Scores,
		Fallback: m.Fallback,
	}

	statuses := make(map[Metric]Status, len(MetricOrder))
	for _, metric := range MetricOrder {
		value := m.Value(metric)
		status := Classify(metric, value)
		statuses[metric] = status

		a.Score += PointsFor(metric, status)
		a.Metrics = append(a.Metrics, MetricAssessment{
			Metric:         metric,
			Label:          Label(metric),
			Value:          value,
			Display:        FormatValue(metric, value),
			Status:         status,
			Symbol:         status.Symbol(),
			Recommendation: Recommendation(metric, status),
		})
	}

	a.OverallRecommendation = PriorityMessage(statuses)
	return a
}
