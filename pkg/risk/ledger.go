package risk

import (
	"math"
	"sync"
	"time"

	"quantra/pkg/symbols"
)

// PositionRisk is one tracked position in the ledger. Quantity is signed:
// positive long, negative short.
type PositionRisk struct {
	Symbol         string    `json:"symbol"`
	Quantity       float64   `json:"quantity"`
	EntryPrice     float64   `json:"entryPrice"`
	CurrentPrice   float64   `json:"currentPrice"`
	Leverage       int       `json:"leverage"`
	StopLoss       float64   `json:"stopLoss"`
	TakeProfit     float64   `json:"takeProfit"`
	RiskUSD        float64   `json:"riskUsd"`
	RiskPercentage float64   `json:"riskPercentage"`
	UnrealizedPnl  float64   `json:"unrealizedPnl"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Side reports "long" or "short" from the sign of Quantity.
func (p PositionRisk) Side() string {
	if p.Quantity < 0 {
		return "short"
	}
	return "long"
}

// PositionMark is a venue observation used to reconcile a tracked position.
type PositionMark struct {
	Symbol        string
	Quantity      float64 // signed
	CurrentPrice  float64
	Leverage      int
	UnrealizedPnl float64
}

// Metrics summarizes the ledger for reporting and halting decisions.
type Metrics struct {
	TotalPositions     int     `json:"totalPositions"`
	TotalUnrealizedPnl float64 `json:"totalUnrealizedPnl"`
	TotalRisk          float64 `json:"totalRisk"`
	DailyPnl           float64 `json:"dailyPnl"`
	RiskScore          float64 `json:"riskScore"`
}

// Ledger tracks open position risk keyed by symbol. It is the process's own
// view of its holdings, reconciled against venue data at snapshot time. The
// execution service is the only writer.
type Ledger struct {
	mu sync.Mutex

	cfg       Config
	positions map[string]PositionRisk

	dailyPnl float64
	dailyDay int // day-of-year the daily counter belongs to
}

// NewLedger constructs an empty ledger.
func NewLedger(cfg Config) *Ledger {
	cfg.applyDefaults()
	return &Ledger{
		cfg:       cfg,
		positions: make(map[string]PositionRisk),
		dailyDay:  time.Now().YearDay(),
	}
}

// AddOrUpdatePosition upserts a position with replace semantics.
func (l *Ledger) AddOrUpdatePosition(risk PositionRisk) {
	l.mu.Lock()
	defer l.mu.Unlock()
	risk.Symbol = symbols.Normalize(risk.Symbol)
	if risk.UpdatedAt.IsZero() {
		risk.UpdatedAt = time.Now()
	}
	l.positions[risk.Symbol] = risk
}

// RemovePosition deletes a tracked position. Removing an unknown symbol is a
// no-op.
func (l *Ledger) RemovePosition(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.positions, symbols.Normalize(symbol))
}

// Reconcile refreshes tracked positions from venue observations taken at
// account-snapshot time: quantity, current price, leverage and unrealized PnL
// come from the venue, the persisted risk intent (stops, risk figures) stays.
// Tracked symbols the venue no longer reports are dropped, covering stops
// that triggered on the venue between cycles.
func (l *Ledger) Reconcile(marks []PositionMark) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool, len(marks))
	for _, mark := range marks {
		symbol := symbols.Normalize(mark.Symbol)
		seen[symbol] = true
		tracked, ok := l.positions[symbol]
		if !ok {
			continue
		}
		tracked.Quantity = mark.Quantity
		tracked.CurrentPrice = mark.CurrentPrice
		tracked.UnrealizedPnl = mark.UnrealizedPnl
		if mark.Leverage > 0 {
			tracked.Leverage = mark.Leverage
		}
		tracked.UpdatedAt = time.Now()
		l.positions[symbol] = tracked
	}
	for symbol := range l.positions {
		if !seen[symbol] {
			delete(l.positions, symbol)
		}
	}
}

// Position returns the tracked risk for a symbol.
func (l *Ledger) Position(symbol string) (PositionRisk, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	risk, ok := l.positions[symbols.Normalize(symbol)]
	return risk, ok
}

// Positions returns a copy of every tracked position.
func (l *Ledger) Positions() []PositionRisk {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]PositionRisk, 0, len(l.positions))
	for _, risk := range l.positions {
		out = append(out, risk)
	}
	return out
}

// TotalRisk sums riskPercentage across tracked positions.
func (l *Ledger) TotalRisk() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalRiskLocked()
}

func (l *Ledger) totalRiskLocked() float64 {
	total := 0.0
	for _, risk := range l.positions {
		total += risk.RiskPercentage
	}
	return total
}

// RecordRealizedPnl accumulates realized PnL into the daily counter. The
// counter resets automatically when the calendar day rolls over.
func (l *Ledger) RecordRealizedPnl(pnl float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked()
	l.dailyPnl += pnl
}

// DailyPnl reports cumulative realized PnL for the current day.
func (l *Ledger) DailyPnl() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked()
	return l.dailyPnl
}

func (l *Ledger) rollDayLocked() {
	day := time.Now().YearDay()
	if day != l.dailyDay {
		l.dailyDay = day
		l.dailyPnl = 0
	}
}

// ShouldHaltTrading reports whether daily losses or aggregate open risk have
// breached their limits.
func (l *Ledger) ShouldHaltTrading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked()
	if l.dailyPnl <= -l.cfg.MaxDailyLoss {
		return true
	}
	return l.totalRiskLocked() >= l.cfg.MaxTotalRisk
}

// Metrics assembles the reporting snapshot. The risk score is a weighted
// composite: a daily-loss breach contributes 0.4, a total-risk breach 0.3,
// more than five concurrent positions 0.2, and the remaining 0.1 scales with
// total risk relative to its limit. The result is clamped to [0,1].
func (l *Ledger) Metrics() Metrics {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDayLocked()

	totalRisk := l.totalRiskLocked()
	unrealized := 0.0
	for _, risk := range l.positions {
		unrealized += risk.UnrealizedPnl
	}

	score := 0.0
	if l.dailyPnl <= -l.cfg.MaxDailyLoss {
		score += 0.4
	}
	if totalRisk >= l.cfg.MaxTotalRisk {
		score += 0.3
	}
	if len(l.positions) > 5 {
		score += 0.2
	}
	if l.cfg.MaxTotalRisk > 0 {
		score += 0.1 * math.Min(totalRisk/l.cfg.MaxTotalRisk, 1)
	}

	return Metrics{
		TotalPositions:     len(l.positions),
		TotalUnrealizedPnl: unrealized,
		TotalRisk:          totalRisk,
		DailyPnl:           l.dailyPnl,
		RiskScore:          math.Max(0, math.Min(1, score)),
	}
}
