package risk

import "fmt"

// Config carries the risk limits applied to every trade decision. Values are
// normally embedded in the trader configuration and validated at startup.
type Config struct {
	// MaxRiskPerTrade is the fraction of available capital that may be lost
	// if a single trade hits its stop.
	MaxRiskPerTrade float64 `yaml:"max_risk_per_trade" json:"max_risk_per_trade"`

	// MaxPositionSizeUSD bounds the margin committed to a single position.
	MaxPositionSizeUSD float64 `yaml:"max_position_size_usd" json:"max_position_size_usd"`

	// MaxLeverage caps requested leverage. Out-of-range requests are clamped
	// with a warning rather than rejected.
	MaxLeverage int `yaml:"max_leverage" json:"max_leverage"`

	// MaxDailyLoss halts trading once cumulative daily realized PnL drops
	// below its negative, in quote currency.
	MaxDailyLoss float64 `yaml:"max_daily_loss" json:"max_daily_loss"`

	// MaxTotalRisk halts trading once aggregate open risk percentage across
	// the ledger reaches this fraction.
	MaxTotalRisk float64 `yaml:"max_total_risk" json:"max_total_risk"`

	// StopMultiplier and ProfitMultiplier derive protective levels from ATR
	// when the oracle supplies none.
	StopMultiplier   float64 `yaml:"stop_multiplier" json:"stop_multiplier"`
	ProfitMultiplier float64 `yaml:"profit_multiplier" json:"profit_multiplier"`

	// MinLiquidationBuffer is the floor on acceptable liquidation distance as
	// a fraction of entry price.
	MinLiquidationBuffer float64 `yaml:"min_liquidation_buffer" json:"min_liquidation_buffer"`

	// EnableGate turns the assessment into an enforced gate. When false the
	// engine still sizes positions and records reasons but never blocks.
	EnableGate bool `yaml:"enable_gate" json:"enable_gate"`
}

// DefaultConfig returns conservative defaults suitable for paper trading.
func DefaultConfig() Config {
	return Config{
		MaxRiskPerTrade:      0.02,
		MaxPositionSizeUSD:   1000,
		MaxLeverage:          20,
		MaxDailyLoss:         500,
		MaxTotalRisk:         0.10,
		StopMultiplier:       2.0,
		ProfitMultiplier:     3.0,
		MinLiquidationBuffer: 0.03,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.MaxRiskPerTrade <= 0 {
		c.MaxRiskPerTrade = def.MaxRiskPerTrade
	}
	if c.MaxPositionSizeUSD <= 0 {
		c.MaxPositionSizeUSD = def.MaxPositionSizeUSD
	}
	if c.MaxLeverage <= 0 {
		c.MaxLeverage = def.MaxLeverage
	}
	if c.MaxDailyLoss <= 0 {
		c.MaxDailyLoss = def.MaxDailyLoss
	}
	if c.MaxTotalRisk <= 0 {
		c.MaxTotalRisk = def.MaxTotalRisk
	}
	if c.StopMultiplier <= 0 {
		c.StopMultiplier = def.StopMultiplier
	}
	if c.ProfitMultiplier <= 0 {
		c.ProfitMultiplier = def.ProfitMultiplier
	}
	if c.MinLiquidationBuffer <= 0 {
		c.MinLiquidationBuffer = def.MinLiquidationBuffer
	}
}

// Validate checks that the limits are internally consistent.
func (c *Config) Validate() error {
	c.applyDefaults()
	if c.MaxRiskPerTrade >= 1 {
		return fmt.Errorf("risk config: max_risk_per_trade must be a fraction below 1, got %v", c.MaxRiskPerTrade)
	}
	if c.MaxTotalRisk >= 1 {
		return fmt.Errorf("risk config: max_total_risk must be a fraction below 1, got %v", c.MaxTotalRisk)
	}
	if c.MaxLeverage > 125 {
		return fmt.Errorf("risk config: max_leverage %d exceeds venue maximum", c.MaxLeverage)
	}
	if c.ProfitMultiplier <= c.StopMultiplier {
		return fmt.Errorf("risk config: profit_multiplier must exceed stop_multiplier for a positive reward ratio")
	}
	return nil
}
