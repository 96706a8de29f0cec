package performance_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/revenue-engine/performance"
)

func TestAchievementRatio(t *testing.T) {
	ratio, ok := performance.AchievementRatio(150, 100)
	assert.True(t, ok)
	assert.Equal(t, 1.5, ratio)

	_, ok = performance.AchievementRatio(150, 0)
	assert.False(t, ok, "no target, no achievement")

	assert.Equal(t, 0.0, performance.AchievementPercent(10, -5))
}

func TestPerformanceCost_ScalesLinearlyWithAchievement(t *testing.T) {
	base := performance.PerformanceCost(50_000, 100_000, 40_000)
	doubled := performance.PerformanceCost(100_000, 100_000, 40_000)

	assert.InDelta(t, 2*base, doubled, 1e-9)
	assert.Equal(t, 40_000.0, performance.PerformanceCost(123, 0, 40_000), "target <= 0 returns cost unchanged")
}

func TestGrossProfit_Identities(t *testing.T) {
	cases := [][3]float64{
		{69537, 100000, 77142.86},
		{282044, 80250, 62052.50},
		{-1200, 5000, 3000},
		{1, 1e9, 1e6},
	}
	for _, c := range cases {
		revenue, target, cost := c[0], c[1], c[2]
		assert.Equal(t,
			revenue-performance.PerformanceCost(revenue, target, cost),
			performance.GrossProfit(revenue, target, cost))
	}

	assert.Equal(t, 0.0, performance.GrossProfit(0, 100, 80))
	assert.Equal(t, 0.0, performance.GrossProfit(0, 0, 80))
	assert.Equal(t, 20.0, performance.GrossProfit(100, 0, 80))
	assert.Equal(t, 120.0, performance.GrossProfit(100, -10, -20))
}

func TestGrossProfitMargin(t *testing.T) {
	assert.Equal(t, 0.0, performance.GrossProfitMargin(100, 0))
	assert.Equal(t, 25.0, performance.GrossProfitMargin(25, 100))
}

// =============================================================================
// SCENARIOS
// =============================================================================

// Expected values are the formulas applied to these inputs:
// 0.69537 * 77142.86 = 53642.83 and 69537 - 53642.83 = 15894.17.
// Older worked examples quoting 53657.14 / 15879.86 don't follow from them.
func TestCompute_UnderAchievement(t *testing.T) {
	m := performance.Compute(69537, 100000, 77142.86)

	assert.True(t, m.AchievementDefined)
	assert.InDelta(t, 69.537, m.Achievement, 1e-9)
	assert.InDelta(t, 53642.83, m.PerformanceCost, 0.1)
	assert.InDelta(t, 15894.17, m.GrossProfit, 0.1)
	assert.InDelta(t, 22.84, m.GrossProfitMargin, 0.1)
}

// 282044 / 80250 * 62052.50 = 218087.67, so gross profit is 63956.33
// (not the 218166.35 / 63877.65 sometimes quoted for this case).
func TestCompute_OverAchievement(t *testing.T) {
	m := performance.Compute(282044, 80250, 62052.50)

	assert.InDelta(t, 351.46, m.Achievement, 0.01)
	assert.InDelta(t, 218087.67, m.PerformanceCost, 0.1)
	assert.InDelta(t, 63956.33, m.GrossProfit, 0.1)
	assert.Greater(t, m.PerformanceCost, 62052.50, "over-achievement earns more than planned cost")
}

func TestCompute_IsDeterministic(t *testing.T) {
	a := performance.Compute(1234.5678, 999.1, 333.3)
	b := performance.Compute(1234.5678, 999.1, 333.3)
	assert.Equal(t, math.Float64bits(a.GrossProfit), math.Float64bits(b.GrossProfit))
	assert.Equal(t, a, b)
}

func TestCompute_NoTarget(t *testing.T) {
	m := performance.Compute(1000, 0, 600)
	assert.False(t, m.AchievementDefined)
	assert.Equal(t, 0.0, m.Achievement)
	assert.Equal(t, 600.0, m.PerformanceCost)
	assert.Equal(t, 400.0, m.GrossProfit)
	assert.Equal(t, 40.0, m.GrossProfitMargin)
}
