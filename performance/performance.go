/*
performance.go - Achievement, performance cost and gross profit

PURPOSE:
  The canonical formulas. Every aggregate in the engine derives its
  metrics from its own (revenue, target, cost) sums through these
  functions; metrics are never summed across rows because performance
  cost is nonlinear in the achievement ratio.

FORMULAS:
  achievement      = revenue / target                (undefined if target <= 0)
  performance cost = (revenue / target) * cost       (cost if target <= 0)
  gross profit     = revenue - performance cost      (0 if revenue == 0,
                                                      revenue - cost if target <= 0)
  margin           = gross profit / revenue * 100    (0 if revenue == 0)

NUMERICS:
  Plain float64, no rounding. Formatting belongs to the presentation layer.
  Negative revenue and achievement above 100% need no special handling.
*/
package performance

// AchievementRatio returns revenue/target and false when target <= 0.
func AchievementRatio(revenue, target float64) (float64, bool) {
	if target <= 0 {
		return 0, false
	}
	return revenue / target, true
}

// AchievementPercent is AchievementRatio * 100, or 0 when undefined.
func AchievementPercent(revenue, target float64) float64 {
	ratio, ok := AchievementRatio(revenue, target)
	if !ok {
		return 0
	}
	return ratio * 100
}

// PerformanceCost scales cost by the achievement ratio.
func PerformanceCost(revenue, target, cost float64) float64 {
	if target <= 0 {
		return cost
	}
	return (revenue / target) * cost
}

// GrossProfit is revenue minus performance cost.
func GrossProfit(revenue, target, cost float64) float64 {
	if revenue == 0 {
		return 0
	}
	if target <= 0 {
		return revenue - cost
	}
	return revenue - PerformanceCost(revenue, target, cost)
}

// GrossProfitMargin returns gross profit as a percentage of revenue.
func GrossProfitMargin(grossProfit, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return (grossProfit / revenue) * 100
}

// Metrics bundles the derived values for one set of sums.
type Metrics struct {
	Achievement        float64 `json:"achievement"`
	AchievementDefined bool    `json:"achievementDefined"`
	PerformanceCost    float64 `json:"performanceCost"`
	GrossProfit        float64 `json:"profit"`
	GrossProfitMargin  float64 `json:"profitMargin"`
}

// Compute derives all metrics from (revenue, target, cost).
func Compute(revenue, target, cost float64) Metrics {
	_, defined := AchievementRatio(revenue, target)
	profit := GrossProfit(revenue, target, cost)
	return Metrics{
		Achievement:        AchievementPercent(revenue, target),
		AchievementDefined: defined,
		PerformanceCost:    PerformanceCost(revenue, target, cost),
		GrossProfit:        profit,
		GrossProfitMargin:  GrossProfitMargin(profit, revenue),
	}
}
