// AngelaMos | 2026
// recommendations.go

package vitals

const fallbackRecommendation = "No recommendation available."

type recommendationKey struct {
	metric Metric
	status Status
}

var recommendationTable = map[recommendationKey]string{
	{MetricLCP, StatusGood}:             "Excellent load time. Maintain server response times.",
	{MetricLCP, StatusNeedsImprovement}: "Optimize images and reduce server response time to improve conversions by ~8%.",
	{MetricLCP, StatusPoor}:             "Critical: Slow load time hurts conversions. Compress images, enable CDN, upgrade hosting.",

	{MetricFID, StatusGood}:             "Great interactivity. Users can engage immediately.",
	{MetricFID, StatusNeedsImprovement}: "Reduce JavaScript execution time to improve user experience.",
	{MetricFID, StatusPoor}:             "Pages feel sluggish. Defer non-critical JavaScript and optimize third-party scripts.",

	{MetricCLS, StatusGood}:             "Stable layout. No visual shifting frustrates users.",
	{MetricCLS, StatusNeedsImprovement}: "Reserve space for images and ads to prevent layout shift.",
	{MetricCLS, StatusPoor}:             "Layout shifts hurt UX. Add size attributes to images and prevent content jumps.",
}

func Recommendation(metric Metric, status Status) string {
	if text, ok := recommendationTable[recommendationKey{metric, status}]; ok {
		return text
	}
	return fallbackRecommendation
}

var poorPriorityMessages = map[Metric]string{
	MetricLCP: "Priority: Fix LCP for +12% conversions",
	MetricFID: "Priority: Fix FID to improve user engagement",
	MetricCLS: "Priority: Fix CLS to reduce bounce rate",
}

const (
	lcpOpportunityMessage = "Opportunity: Improve LCP for +8% conversions"
	passingMessage        = "CWV passing — maintain current performance"
)

// PriorityMessage picks the first poor metric in MetricOrder. Without a
// poor metric, an LCP in needs_improvement is an opportunity; anything
// else is passing.
func PriorityMessage(statuses map[Metric]Status) string {
	for _, metric := range MetricOrder {
		if statuses[metric] == StatusPoor {
			return poorPriorityMessages[metric]
		}
	}

	if statuses[MetricLCP] == StatusNeedsImprovement {
		return lcpOpportunityMessage
	}

	return passingMessage
}
