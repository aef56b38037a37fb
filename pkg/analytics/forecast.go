package analytics

import (
	"fmt"
	"math"
)

const (
	minForecastHistory         = 3
	insufficientDataConfidence = 0.3

	linearStartConfidence = 0.9
	linearConfidenceDecay = 0.05
	linearConfidenceFloor = 0.5

	// yearOverYearLag is the index of the point one year before the most recent
	yearOverYearLag = 12
)

// forecastFunc projects periods points from a most-recent-first history
type forecastFunc func(history []RevenueDataPoint, periods int) []ForecastPoint

// ensembleMember is one weighted method of the ensemble
type ensembleMember struct {
	method ForecastMethod
	weight float64
}

// Weights sum to 1. Changing a member's algorithm must not change its weight.
var ensembleMembers = []ensembleMember{
	{method: MethodLinear, weight: 0.4},
	{method: MethodSeasonal, weight: 0.3},
	{method: MethodTrend, weight: 0.3},
}

// forecastMethods maps each method to its algorithm. Seasonal and trend are
// placeholders that currently run the linear fit under their own tag.
var forecastMethods = map[ForecastMethod]forecastFunc{
	MethodLinear:   linearForecast,
	MethodSeasonal: aliasOf(linearForecast, MethodSeasonal),
	MethodTrend:    aliasOf(linearForecast, MethodTrend),
}

// TrendSummary describes recent growth of a revenue history
type TrendSummary struct {
	MonthOverMonthGrowth float64 `json:"month_over_month_growth"`
	YearOverYearGrowth   float64 `json:"year_over_year_growth"`
}

// Forecast returns the ensemble projection for the next periods.
// history must be ordered most recent first.
func Forecast(history []RevenueDataPoint, periods int) []ForecastPoint {
	if periods <= 0 {
		return []ForecastPoint{}
	}
	if len(history) < minForecastHistory {
		return insufficientDataForecast(periods)
	}

	series := make([][]ForecastPoint, len(ensembleMembers))
	for i, member := range ensembleMembers {
		series[i] = forecastMethods[member.method](history, periods)
	}

	points := make([]ForecastPoint, periods)
	for p := 0; p < periods; p++ {
		revenue := 0.0
		confidence := math.Inf(1)
		complete := true
		for i, member := range ensembleMembers {
			if p >= len(series[i]) {
				complete = false
				continue
			}
			revenue += member.weight * series[i][p].ForecastedRevenue
			confidence = math.Min(confidence, series[i][p].Confidence)
		}
		if !complete {
			revenue = 0
		}
		if math.IsInf(confidence, 1) {
			confidence = 0
		}
		points[p] = ForecastPoint{
			Period:            periodLabel(p + 1),
			ForecastedRevenue: revenue,
			Confidence:        confidence,
			Method:            MethodEnsemble,
		}
	}
	return points
}

// ForecastWith runs a single method. Unknown methods and short histories
// fall back to the insufficient-data projection.
func ForecastWith(method ForecastMethod, history []RevenueDataPoint, periods int) []ForecastPoint {
	if periods <= 0 {
		return []ForecastPoint{}
	}
	fn, ok := forecastMethods[method]
	if !ok || len(history) < minForecastHistory {
		return insufficientDataForecast(periods)
	}
	return fn(history, periods)
}

// SummarizeTrend computes month-over-month and year-over-year growth
func SummarizeTrend(history []RevenueDataPoint) TrendSummary {
	var summary TrendSummary
	if len(history) >= 2 && history[1].TotalRevenue != 0 {
		summary.MonthOverMonthGrowth = (history[0].TotalRevenue - history[1].TotalRevenue) / history[1].TotalRevenue
	}
	if len(history) > yearOverYearLag && history[yearOverYearLag].TotalRevenue != 0 {
		prior := history[yearOverYearLag].TotalRevenue
		summary.YearOverYearGrowth = (history[0].TotalRevenue - prior) / prior
	}
	return summary
}

// linearForecast extends the most recent value by the least-squares slope of
// the history taken in the order given (x = 0 is the most recent point).
func linearForecast(history []RevenueDataPoint, periods int) []ForecastPoint {
	slope := leastSquaresSlope(history)
	latest := history[0].TotalRevenue

	points := make([]ForecastPoint, periods)
	for i := 1; i <= periods; i++ {
		points[i-1] = ForecastPoint{
			Period:            periodLabel(i),
			ForecastedRevenue: math.Max(0, latest+slope*float64(i)),
			Confidence:        math.Max(linearConfidenceFloor, linearStartConfidence-linearConfidenceDecay*float64(i-1)),
			Method:            MethodLinear,
		}
	}
	return points
}

func leastSquaresSlope(history []RevenueDataPoint) float64 {
	n := float64(len(history))
	if n == 0 {
		return 0
	}

	xMean := (n - 1) / 2
	yMean := 0.0
	for _, point := range history {
		yMean += point.TotalRevenue
	}
	yMean /= n

	var num, den float64
	for i, point := range history {
		dx := float64(i) - xMean
		num += dx * (point.TotalRevenue - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

func insufficientDataForecast(periods int) []ForecastPoint {
	points := make([]ForecastPoint, periods)
	for i := range points {
		points[i] = ForecastPoint{
			Period:     periodLabel(i + 1),
			Confidence: insufficientDataConfidence,
			Method:     MethodInsufficientData,
		}
	}
	return points
}

func aliasOf(fn forecastFunc, method ForecastMethod) forecastFunc {
	return func(history []RevenueDataPoint, periods int) []ForecastPoint {
		points := fn(history, periods)
		for i := range points {
			points[i].Method = method
		}
		return points
	}
}

func periodLabel(n int) string {
	return fmt.Sprintf("Month %d", n)
}
