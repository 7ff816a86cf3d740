package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine
}

func TestConfidenceMultiplier(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0, 0.3},
		{1, 1.0},
		{0.5, 0.65},
		{-2, 0.3}, // clamped
		{5, 1.0},  // clamped
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, ConfidenceMultiplier(tt.confidence), 1e-9)
	}
}

func TestClampLeverage(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) { c.MaxLeverage = 20 })

	tests := []struct {
		requested   float64
		want        int
		wantClamped bool
	}{
		{10, 10, false},
		{1, 1, false},
		{20, 20, false},
		{0, 1, true},
		{-3, 1, true},
		{50, 20, true},
		{7.9, 7, true}, // floored
	}
	for _, tt := range tests {
		got, clamped := engine.ClampLeverage(tt.requested)
		assert.Equal(t, tt.want, got, "requested %v", tt.requested)
		assert.Equal(t, tt.wantClamped, clamped, "requested %v", tt.requested)
	}
}

func TestClampLeverageIdempotent(t *testing.T) {
	engine := newTestEngine(t, nil)
	for _, requested := range []float64{-5, 0, 1, 7.5, 19, 20, 1000} {
		once, _ := engine.ClampLeverage(requested)
		twice, clamped := engine.ClampLeverage(float64(once))
		assert.Equal(t, once, twice)
		assert.False(t, clamped, "second clamp of %v must be a no-op", requested)
	}
}

func TestAssessRiskSizingWithStop(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) {
		c.MaxRiskPerTrade = 0.02
		c.MaxPositionSizeUSD = 1000
	})

	assessment, err := engine.AssessRisk(AssessmentInput{
		Symbol:           "BTCUSDT",
		EntryPrice:       100,
		StopLoss:         97,
		AvailableCapital: 10000,
		Confidence:       1,
		Leverage:         10,
	})
	require.NoError(t, err)

	// riskPerShare = 3, maxSharesByRisk = (10000*0.02)/3 = 66.67,
	// maxSharesByCapital = (1000*10)/100 = 100.
	assert.InDelta(t, 200.0/3.0, assessment.MaxQuantity, 1e-6)
	assert.InDelta(t, 200.0/3.0, assessment.RecommendedPositionSize, 1e-6)
	assert.Equal(t, 10, assessment.RecommendedLeverage)
	assert.True(t, assessment.CanTrade)
}

func TestAssessRiskConfidenceDownsizes(t *testing.T) {
	engine := newTestEngine(t, nil)

	full, err := engine.AssessRisk(AssessmentInput{
		Symbol: "ETHUSDT", EntryPrice: 100, StopLoss: 97,
		AvailableCapital: 10000, Confidence: 1, Leverage: 10,
	})
	require.NoError(t, err)

	low, err := engine.AssessRisk(AssessmentInput{
		Symbol: "ETHUSDT", EntryPrice: 100, StopLoss: 97,
		AvailableCapital: 10000, Confidence: 0, Leverage: 10,
	})
	require.NoError(t, err)

	assert.InDelta(t, full.RecommendedPositionSize*0.3, low.RecommendedPositionSize, 1e-6)
	assert.Greater(t, low.RecommendedPositionSize, 0.0, "low confidence downsizes, never zeroes")
}

func TestAssessRiskATRFallback(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) {
		c.MaxRiskPerTrade = 0.02
		c.MaxPositionSizeUSD = 1000
	})

	assessment, err := engine.AssessRisk(AssessmentInput{
		Symbol:           "SOLUSDT",
		EntryPrice:       100,
		AvailableCapital: 10000,
		ATR:              2,
		Confidence:       1,
		Leverage:         10,
	})
	require.NoError(t, err)
	// riskPerShare falls back to ATR=2: (10000*0.02)/2 = 100, capped by
	// capital bound (1000*10)/100 = 100.
	assert.InDelta(t, 100.0, assessment.MaxQuantity, 1e-6)
}

func TestAssessRiskCapitalBoundDominates(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) {
		c.MaxRiskPerTrade = 0.02
		c.MaxPositionSizeUSD = 100
	})

	assessment, err := engine.AssessRisk(AssessmentInput{
		Symbol: "BTCUSDT", EntryPrice: 100, StopLoss: 97,
		AvailableCapital: 10000, Confidence: 1, Leverage: 2,
	})
	require.NoError(t, err)
	// maxSharesByCapital = (100*2)/100 = 2 < 66.67 by risk.
	assert.InDelta(t, 2.0, assessment.MaxQuantity, 1e-6)
}

func TestAssessRiskRejectsBadInput(t *testing.T) {
	engine := newTestEngine(t, nil)

	_, err := engine.AssessRisk(AssessmentInput{EntryPrice: 0})
	require.Error(t, err)

	_, err = engine.AssessRisk(AssessmentInput{EntryPrice: 100, AvailableCapital: -1})
	require.Error(t, err)
}

func TestAssessRiskGateBlocksOnHalt(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) {
		c.EnableGate = true
		c.MaxDailyLoss = 500
	})
	engine.Ledger().RecordRealizedPnl(-600)

	assessment, err := engine.AssessRisk(AssessmentInput{
		Symbol: "BTCUSDT", EntryPrice: 100, StopLoss: 97,
		AvailableCapital: 10000, Confidence: 1, Leverage: 10,
	})
	require.NoError(t, err)
	assert.False(t, assessment.CanTrade)
	assert.NotEmpty(t, assessment.Reasons)
}

func TestAssessRiskGateDisabledStillSizes(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) {
		c.EnableGate = false
		c.MaxDailyLoss = 500
	})
	engine.Ledger().RecordRealizedPnl(-600)

	assessment, err := engine.AssessRisk(AssessmentInput{
		Symbol: "BTCUSDT", EntryPrice: 100, StopLoss: 97,
		AvailableCapital: 10000, Confidence: 1, Leverage: 10,
	})
	require.NoError(t, err)
	assert.True(t, assessment.CanTrade)
	assert.NotEmpty(t, assessment.Reasons, "reasons are still recorded")
	assert.Greater(t, assessment.RecommendedPositionSize, 0.0)
}

func TestStopsFromATR(t *testing.T) {
	engine := newTestEngine(t, func(c *Config) {
		c.StopMultiplier = 2
		c.ProfitMultiplier = 3
	})

	stop, target := engine.StopsFromATR(100, 2, true)
	assert.InDelta(t, 96.0, stop, 1e-9)
	assert.InDelta(t, 106.0, target, 1e-9)

	stop, target = engine.StopsFromATR(100, 2, false)
	assert.InDelta(t, 104.0, stop, 1e-9)
	assert.InDelta(t, 94.0, target, 1e-9)

	stop, target = engine.StopsFromATR(100, 0, true)
	assert.Zero(t, stop)
	assert.Zero(t, target)
}

func TestLiquidationSafe(t *testing.T) {
	engine := newTestEngine(t, nil)

	// Stop at 97: required distance = max(3*0.03, 0.03) = 0.09.
	assert.True(t, engine.LiquidationSafe(100, 97, 90, 10))   // 0.10 >= 0.09
	assert.False(t, engine.LiquidationSafe(100, 97, 95, 10))  // 0.05 < 0.09
	assert.True(t, engine.LiquidationSafe(100, 97, 0, 10))    // 1/10 >= 0.09
	assert.False(t, engine.LiquidationSafe(100, 97, 0, 20))   // 1/20 < 0.09
	assert.True(t, engine.LiquidationSafe(100, 0, 96, 10))    // floor 0.03 only
	assert.False(t, engine.LiquidationSafe(100, 0, 99.5, 10)) // 0.005 < 0.03
	assert.False(t, engine.LiquidationSafe(0, 97, 90, 10))
	assert.False(t, engine.LiquidationSafe(100, 97, 0, 0))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.02, cfg.MaxRiskPerTrade, 1e-9)
	assert.Equal(t, 20, cfg.MaxLeverage)

	bad := DefaultConfig()
	bad.MaxRiskPerTrade = 1.5
	require.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.StopMultiplier = 3
	bad.ProfitMultiplier = 2
	require.Error(t, bad.Validate())
}
