package analysis

import (
	"github.com/joonpak/stockradar/internal/finance"
)

// neutralScore is used for any indicator the filing did not carry, so
// missing data neither rewards nor punishes a company.
const neutralScore = 0.5

// ScoreBreakdown holds the weighted components of a health score.
type ScoreBreakdown struct {
	RevenueGrowth         float64 `json:"revenue_growth"`
	OperatingMargin       float64 `json:"operating_margin"`
	Stability             float64 `json:"stability"`
	OperatingProfitGrowth float64 `json:"operating_profit_growth"`
}

// HealthScore is a composite financial health indicator in [0, 1].
type HealthScore struct {
	Score     float64
	Breakdown ScoreBreakdown
}

// CalculateHealth scores a company's financial health from its derived
// metrics. Weights: revenue growth 0.3, operating margin 0.3, stability 0.2,
// operating profit growth 0.2. Stability blends debt ratio (0.6) and current
// ratio (0.4).
func CalculateHealth(m finance.Metrics) HealthScore {
	b := ScoreBreakdown{
		RevenueGrowth:         scoreOrNeutral(m.RevenueGrowth, growthScore),
		OperatingMargin:       scoreOrNeutral(m.OperatingMargin, marginScore),
		OperatingProfitGrowth: scoreOrNeutral(m.OperatingProfitGrowth, growthScore),
	}
	b.Stability = scoreOrNeutral(m.DebtRatio, debtRatioScore)*0.6 +
		scoreOrNeutral(m.CurrentRatio, currentRatioScore)*0.4

	score := b.RevenueGrowth*0.3 + b.OperatingMargin*0.3 + b.Stability*0.2 + b.OperatingProfitGrowth*0.2
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return HealthScore{Score: score, Breakdown: b}
}

func scoreOrNeutral(v *float64, score func(float64) float64) float64 {
	if v == nil {
		return neutralScore
	}
	return score(*v)
}

// growthScore buckets a year-over-year growth percentage. Used for both
// revenue and operating profit growth.
func growthScore(pct float64) float64 {
	switch {
	case pct >= 20:
		return 1.0
	case pct >= 10:
		return 0.8
	case pct >= 5:
		return 0.6
	case pct >= 0:
		return 0.4
	case pct >= -10:
		return 0.2
	default:
		return 0.0
	}
}

// marginScore buckets an operating margin percentage.
func marginScore(pct float64) float64 {
	switch {
	case pct >= 15:
		return 1.0
	case pct >= 10:
		return 0.8
	case pct >= 5:
		return 0.6
	case pct >= 0:
		return 0.4
	default:
		return 0.0
	}
}

// debtRatioScore buckets debt-to-equity percentage; lower is healthier.
func debtRatioScore(pct float64) float64 {
	switch {
	case pct <= 30:
		return 1.0
	case pct <= 50:
		return 0.8
	case pct <= 70:
		return 0.6
	case pct <= 100:
		return 0.4
	default:
		return 0.2
	}
}

// currentRatioScore buckets the current ratio (a multiple, not a percent).
func currentRatioScore(ratio float64) float64 {
	switch {
	case ratio >= 2.0:
		return 1.0
	case ratio >= 1.5:
		return 0.8
	case ratio >= 1.0:
		return 0.6
	case ratio >= 0.5:
		return 0.4
	default:
		return 0.2
	}
}
