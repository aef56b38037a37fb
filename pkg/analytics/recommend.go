package analytics

const (
	RecommendationContentQuality = "Focus on improving content quality and engagement to retain more of your audience"
	RecommendationGrowth         = "Invest in growth and marketing to reach more potential subscribers"
	RecommendationPricing        = "Review your pricing strategy; your revenue trails comparable creators"
)

// Recommend derives guidance from the percentile gaps in a benchmark report.
// Each rule is evaluated independently.
func Recommend(comparisons MetricComparisons, tier Tier) []string {
	recommendations := []string{}
	if comparisons.EngagementRate.Percentile < 50 {
		recommendations = append(recommendations, RecommendationContentQuality)
	}
	if comparisons.Subscribers.Percentile < 75 {
		recommendations = append(recommendations, RecommendationGrowth)
	}
	if comparisons.Revenue.Percentile < 50 {
		recommendations = append(recommendations, RecommendationPricing)
	}
	return recommendations
}
