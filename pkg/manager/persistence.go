package manager

import (
	"context"
	"time"

	"quantra/pkg/trading"
)

// EquitySnapshot is the normalized per-trader account update emitted after
// every decision cycle.
type EquitySnapshot struct {
	TraderID         string
	TotalEquity      float64
	AvailableBalance float64
	TotalReturnPct   float64
	SharpeRatio      float64
	PositionCount    int
	Timestamp        time.Time
}

// Store receives the durable side effects of a decision cycle: the trade
// plans behind new positions and the equity curve.
type Store interface {
	RecordPlan(ctx context.Context, traderID string, plan trading.TradePlan) error
	RecordEquity(ctx context.Context, snapshot EquitySnapshot) error
}

type noopStore struct{}

func (noopStore) RecordPlan(ctx context.Context, traderID string, plan trading.TradePlan) error {
	return nil
}

func (noopStore) RecordEquity(ctx context.Context, snapshot EquitySnapshot) error {
	return nil
}

// newNoopStore guarantees the manager always has a store to call.
func newNoopStore() Store {
	return noopStore{}
}
