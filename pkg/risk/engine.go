// Package risk implements position sizing, leverage clamping and the
// position risk ledger that tracks what the process believes it is holding.
package risk

import (
	"fmt"
	"math"

	"github.com/zeromicro/go-zero/core/logx"
)

// epsilon guards riskPerShare divisions against degenerate stops.
const epsilon = 1e-9

// Assessment is the outcome of sizing a proposed trade.
type Assessment struct {
	CanTrade                bool     `json:"canTrade"`
	Reasons                 []string `json:"reasons,omitempty"`
	RecommendedPositionSize float64  `json:"recommendedPositionSize"`
	RecommendedLeverage     int      `json:"recommendedLeverage"`
	MaxQuantity             float64  `json:"maxQuantity"`
	RiskScore               float64  `json:"riskScore"`
}

// AssessmentInput describes a proposed trade. StopLoss and ATR may be zero;
// at least one should be present for meaningful risk sizing.
type AssessmentInput struct {
	Symbol           string
	EntryPrice       float64
	StopLoss         float64
	TakeProfit       float64
	AvailableCapital float64
	ATR              float64
	Confidence       float64
	Leverage         int
}

// Engine applies the configured limits to trade proposals and owns the
// position risk ledger.
type Engine struct {
	cfg    Config
	ledger *Ledger
}

// NewEngine constructs an engine with a fresh ledger.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, ledger: NewLedger(cfg)}, nil
}

// Ledger exposes the engine's position risk ledger.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Config returns a copy of the active limits.
func (e *Engine) Config() Config { return e.cfg }

// ConfidenceMultiplier maps confidence in [0,1] linearly onto [0.3, 1.0].
// Low-confidence trades are downsized, never zeroed.
func ConfidenceMultiplier(confidence float64) float64 {
	c := math.Max(0, math.Min(1, confidence))
	return 0.3 + 0.7*c
}

// ClampLeverage floors the requested leverage to an integer within
// [1, maxLeverage]. The boolean reports whether clamping occurred.
func (e *Engine) ClampLeverage(requested float64) (int, bool) {
	lev := int(math.Floor(requested))
	clamped := float64(lev) != requested
	if lev < 1 {
		lev = 1
		clamped = true
	}
	if lev > e.cfg.MaxLeverage {
		lev = e.cfg.MaxLeverage
		clamped = true
	}
	return lev, clamped
}

// AssessRisk sizes a proposed trade against the configured limits. Sizing is
// always computed; CanTrade only becomes false when the gate is enabled and
// a blocking reason exists.
func (e *Engine) AssessRisk(input AssessmentInput) (*Assessment, error) {
	if input.EntryPrice <= 0 {
		return nil, fmt.Errorf("risk: entry price must be positive, got %v", input.EntryPrice)
	}
	if input.AvailableCapital < 0 {
		return nil, fmt.Errorf("risk: available capital cannot be negative, got %v", input.AvailableCapital)
	}

	var reasons []string

	leverage, clamped := e.ClampLeverage(float64(input.Leverage))
	if clamped {
		logx.Slowf("risk: leverage %d for %s clamped to %d (max %d)",
			input.Leverage, input.Symbol, leverage, e.cfg.MaxLeverage)
	}

	riskPerShare := input.ATR
	if input.StopLoss > 0 {
		riskPerShare = math.Abs(input.EntryPrice - input.StopLoss)
	}
	if riskPerShare <= 0 {
		reasons = append(reasons, "no stop loss or ATR available for risk sizing")
	}

	maxSharesByRisk := (input.AvailableCapital * e.cfg.MaxRiskPerTrade) / math.Max(riskPerShare, epsilon)
	maxSharesByCapital := (e.cfg.MaxPositionSizeUSD * float64(leverage)) / input.EntryPrice

	maxQuantity := math.Min(maxSharesByRisk, maxSharesByCapital)
	recommended := maxQuantity * ConfidenceMultiplier(input.Confidence)

	if !e.LiquidationSafe(input.EntryPrice, input.StopLoss, 0, leverage) {
		reasons = append(reasons, fmt.Sprintf(
			"liquidation distance at %dx leverage is inside the protective stop", leverage))
	}

	metrics := e.ledger.Metrics()
	if e.ledger.ShouldHaltTrading() {
		reasons = append(reasons, "trading halted: daily loss or total risk limit breached")
	}

	assessment := &Assessment{
		CanTrade:                true,
		Reasons:                 reasons,
		RecommendedPositionSize: recommended,
		RecommendedLeverage:     leverage,
		MaxQuantity:             maxQuantity,
		RiskScore:               metrics.RiskScore,
	}
	if e.cfg.EnableGate && len(reasons) > 0 {
		assessment.CanTrade = false
	}
	return assessment, nil
}

// StopsFromATR derives protective levels from volatility. For a long the
// stop sits below entry and the target above; a short inverts both.
func (e *Engine) StopsFromATR(entry, atr float64, isLong bool) (stopLoss, takeProfit float64) {
	if entry <= 0 || atr <= 0 {
		return 0, 0
	}
	stopDistance := atr * e.cfg.StopMultiplier
	profitDistance := atr * e.cfg.ProfitMultiplier
	if isLong {
		return entry - stopDistance, entry + profitDistance
	}
	return entry + stopDistance, entry - profitDistance
}

// LiquidationSafe reports whether the liquidation price leaves enough room
// beyond the protective stop. The required distance is the greater of three
// stop-distances and the configured minimum buffer. When the liquidation
// price is unknown it is approximated from leverage as 1/leverage.
func (e *Engine) LiquidationSafe(entry, stopLoss, liquidation float64, leverage int) bool {
	if entry <= 0 {
		return false
	}

	required := e.cfg.MinLiquidationBuffer
	if stopLoss > 0 {
		stopRatio := math.Abs(entry-stopLoss) / entry
		required = math.Max(3*stopRatio, e.cfg.MinLiquidationBuffer)
	}

	var liqRatio float64
	switch {
	case liquidation > 0:
		liqRatio = math.Abs(entry-liquidation) / entry
	case leverage > 0:
		liqRatio = 1 / float64(leverage)
	default:
		return false
	}
	return liqRatio >= required
}
