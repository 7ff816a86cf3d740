package executor

import (
	"time"

	"quantra/pkg/market"
)

// Decision signals emitted by the oracle.
const (
	SignalBuyToEnter  = "buy_to_enter"
	SignalSellToEnter = "sell_to_enter"
	SignalHold        = "hold"
	SignalClose       = "close"
)

// PositionInfo holds a normalized view of an open position.
type PositionInfo struct {
	Symbol           string
	Side             string // "long" or "short"
	EntryPrice       float64
	MarkPrice        float64
	Quantity         float64
	Leverage         int
	UnrealizedPnl    float64
	LiquidationPrice float64
}

// AccountInfo summarizes account-level state for the prompt.
type AccountInfo struct {
	TotalEquity      float64
	AvailableBalance float64
	TotalReturnPct   float64
	SharpeRatio      float64
	PositionCount    int
}

// Context aggregates all inputs required to form a decision.
type Context struct {
	CurrentTime   string
	Account       AccountInfo
	Positions     []PositionInfo
	Symbols       []string // candidate universe
	MarketDataMap map[string]*market.Snapshot
	RiskMetrics   string // pre-rendered ledger summary, may be empty
}

// Decision captures a single trading action from the oracle. Quantity and
// Cost are alternatives: an explicit quantity wins, otherwise the execution
// service derives quantity from cost and leverage.
type Decision struct {
	Symbol                string  `json:"symbol"`
	Signal                string  `json:"signal"`
	Quantity              float64 `json:"quantity,omitempty"`
	Cost                  float64 `json:"cost,omitempty"`
	Leverage              int     `json:"leverage,omitempty"`
	StopLoss              float64 `json:"stop_loss,omitempty"`
	ProfitTarget          float64 `json:"profit_target,omitempty"`
	InvalidationCondition string  `json:"invalidation_condition,omitempty"`
	Confidence            float64 `json:"confidence"`
	RiskUSD               float64 `json:"risk_usd,omitempty"`
	Justification         string  `json:"justification,omitempty"`
}

// FullDecision is the complete oracle response with provenance for auditing.
type FullDecision struct {
	UserPrompt string
	Decisions  []Decision
	Reasoning  string
	Timestamp  time.Time
}
