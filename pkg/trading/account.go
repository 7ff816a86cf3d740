package trading

import (
	"context"
	"math"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"quantra/pkg/exchange"
	"quantra/pkg/symbols"
)

// TradePlan is the persisted intent behind a position: the fields the venue
// itself does not retain.
type TradePlan struct {
	Symbol        string
	Signal        string
	Leverage      int
	Quantity      float64
	StopLoss      float64
	TakeProfit    float64
	Confidence    float64
	RiskUSD       float64
	Justification string
	CreatedAt     time.Time
}

// PlanSource yields the most recent trade plan per base symbol.
type PlanSource interface {
	LatestPlans(ctx context.Context, syms []string) (map[symbols.Base]TradePlan, error)
}

// PositionDetail joins a live venue position with its persisted plan.
type PositionDetail struct {
	exchange.Position
	Side          string  `json:"side"`
	StopLoss      float64 `json:"stopLoss,omitempty"`
	TakeProfit    float64 `json:"takeProfit,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
	RiskUSD       float64 `json:"riskUsd,omitempty"`
	Justification string  `json:"justification,omitempty"`
}

// AccountSnapshot is the per-cycle account view fed to the oracle and the
// operational API.
type AccountSnapshot struct {
	TotalEquity      float64          `json:"totalEquity"`
	AvailableBalance float64          `json:"availableBalance"`
	InitialCapital   float64          `json:"initialCapital"`
	TotalReturnPct   float64          `json:"totalReturnPct"`
	SharpeRatio      float64          `json:"sharpeRatio"`
	Positions        []PositionDetail `json:"positions"`
	Timestamp        time.Time        `json:"timestamp"`
}

// BuildAccountSnapshot assembles the account view: balance, non-zero
// positions joined against persisted plans by base symbol, total return and
// a simplified single-period Sharpe ratio.
func BuildAccountSnapshot(ctx context.Context, venue exchange.Provider, plans PlanSource, universe []string, initialCapital float64) (*AccountSnapshot, error) {
	balance, err := venue.GetBalance(ctx)
	if err != nil {
		return nil, err
	}

	positions, err := venue.GetPositions(ctx, universe)
	if err != nil {
		return nil, err
	}

	var planIndex map[symbols.Base]TradePlan
	if plans != nil {
		planIndex, err = plans.LatestPlans(ctx, universe)
		if err != nil {
			// Plans enrich the snapshot; their absence never fails it.
			logx.WithContext(ctx).Slowf("account: load trade plans: %v", err)
		}
	}

	details := make([]PositionDetail, 0, len(positions))
	for _, pos := range positions {
		if pos.Quantity == 0 || pos.Side() == "" {
			continue
		}
		sideName := "long"
		if pos.Quantity < 0 {
			sideName = "short"
		}
		detail := PositionDetail{Position: pos, Side: sideName}
		if plan, ok := planIndex[symbols.BaseOf(pos.Symbol)]; ok {
			detail.StopLoss = plan.StopLoss
			detail.TakeProfit = plan.TakeProfit
			detail.Confidence = plan.Confidence
			detail.RiskUSD = plan.RiskUSD
			detail.Justification = plan.Justification
		}
		details = append(details, detail)
	}

	snapshot := &AccountSnapshot{
		TotalEquity:      balance.Total,
		AvailableBalance: balance.Available,
		InitialCapital:   initialCapital,
		TotalReturnPct:   totalReturn(balance.Total, initialCapital),
		SharpeRatio:      sharpeRatio(details),
		Positions:        details,
		Timestamp:        time.Now(),
	}
	return snapshot, nil
}

func totalReturn(currentValue, initialCapital float64) float64 {
	if initialCapital == 0 {
		return 0
	}
	return (currentValue - initialCapital) / initialCapital
}

// sharpeRatio computes a simplified single-period statistic over per-position
// percentage returns. It is a rough health signal, not an annualized Sharpe.
// Every division is guarded: degenerate inputs yield 0, never NaN or Inf.
func sharpeRatio(positions []PositionDetail) float64 {
	returns := make([]float64, 0, len(positions))
	for _, p := range positions {
		notional := math.Abs(p.Quantity) * p.EntryPrice
		if notional == 0 {
			continue
		}
		returns = append(returns, p.UnrealizedPnl/notional)
	}
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}
	return mean / stdev
}
