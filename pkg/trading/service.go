// Package trading owns the execution state machine: it translates validated
// oracle decisions into venue orders, keeps the position risk ledger current
// and builds per-cycle account snapshots.
package trading

import (
	"context"
	"fmt"
	"math"

	"github.com/zeromicro/go-zero/core/logx"

	"quantra/pkg/exchange"
	"quantra/pkg/executor"
	"quantra/pkg/market"
	"quantra/pkg/risk"
	"quantra/pkg/symbols"
)

// ExecutionResult reports the outcome of one decision. A partially protected
// entry still reports Success=true with the protective failure in Warnings.
type ExecutionResult struct {
	Success          bool     `json:"success"`
	Symbol           string   `json:"symbol"`
	Signal           string   `json:"signal"`
	OrderID          int64    `json:"orderId,omitempty"`
	ExecutedPrice    float64  `json:"executedPrice,omitempty"`
	ExecutedQuantity float64  `json:"executedQuantity,omitempty"`
	Error            string   `json:"error,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Service executes decisions against a venue. It is the exclusive writer of
// the risk ledger.
type Service struct {
	venue      exchange.Provider
	prices     market.Provider
	engine     *risk.Engine
	marginMode exchange.MarginMode
}

// ServiceOption customises Service construction.
type ServiceOption func(*Service)

// WithMarginMode overrides the margin mode requested before each entry.
func WithMarginMode(mode exchange.MarginMode) ServiceOption {
	return func(s *Service) { s.marginMode = mode }
}

// NewService wires the execution service.
func NewService(venue exchange.Provider, prices market.Provider, engine *risk.Engine, opts ...ServiceOption) (*Service, error) {
	if venue == nil {
		return nil, fmt.Errorf("trading: venue is required")
	}
	if prices == nil {
		return nil, fmt.Errorf("trading: market provider is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("trading: risk engine is required")
	}
	s := &Service{
		venue:      venue,
		prices:     prices,
		engine:     engine,
		marginMode: exchange.MarginModeCrossed,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ledger exposes the risk ledger for reporting.
func (s *Service) Ledger() *risk.Ledger { return s.engine.Ledger() }

// Execute runs one decision through the state machine. availableCapital is
// the capital snapshot taken at the start of the cycle; it is not re-fetched
// between sibling decisions. snap is the symbol's market snapshot from the
// same cycle and may be nil; entries without an explicit stop fall back to
// its ATR for risk sizing.
func (s *Service) Execute(ctx context.Context, decision executor.Decision, availableCapital float64, snap *market.Snapshot) *ExecutionResult {
	symbol := symbols.Normalize(decision.Symbol)
	result := &ExecutionResult{Symbol: symbol, Signal: decision.Signal}

	var err error
	switch decision.Signal {
	case executor.SignalBuyToEnter:
		err = s.openPosition(ctx, result, decision, exchange.SideBuy, availableCapital, snap)
	case executor.SignalSellToEnter:
		err = s.openPosition(ctx, result, decision, exchange.SideSell, availableCapital, snap)
	case executor.SignalClose:
		err = s.closePosition(ctx, result, "")
	case executor.SignalHold:
		err = s.refreshProtection(ctx, result, decision)
	default:
		err = fmt.Errorf("trading: unknown signal %q", decision.Signal)
	}

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		logx.WithContext(ctx).Errorf("trading: %s %s failed: %v", decision.Signal, symbol, err)
		return result
	}
	result.Success = true
	return result
}

func (s *Service) openPosition(ctx context.Context, result *ExecutionResult, decision executor.Decision, side exchange.Side, availableCapital float64, snap *market.Snapshot) error {
	symbol := result.Symbol

	price, err := s.prices.CurrentPrice(ctx, symbol)
	if err != nil {
		return market.NewDataFetchError(symbol, "fetch current price", err)
	}
	if price <= 0 {
		return market.NewDataFetchError(symbol, "current price is zero", nil)
	}
	atr := snapshotATR(snap)

	leverage, clamped := s.engine.ClampLeverage(float64(decision.Leverage))
	if clamped {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"leverage %d clamped to %d", decision.Leverage, leverage))
	}

	// Notional-value sizing: an explicit quantity wins, otherwise cost is
	// margin and the traded quantity is (cost * leverage) / price.
	quantity := decision.Quantity
	if quantity <= 0 {
		if decision.Cost <= 0 {
			return &InsufficientCapitalError{Symbol: symbol}
		}
		quantity = (decision.Cost * float64(leverage)) / price
	}

	assessment, err := s.engine.AssessRisk(risk.AssessmentInput{
		Symbol:           symbol,
		EntryPrice:       price,
		StopLoss:         decision.StopLoss,
		TakeProfit:       decision.ProfitTarget,
		AvailableCapital: availableCapital,
		ATR:              atr,
		Confidence:       decision.Confidence,
		Leverage:         leverage,
	})
	if err != nil {
		return err
	}
	if !assessment.CanTrade {
		return fmt.Errorf("trading: risk gate blocked %s: %v", symbol, assessment.Reasons)
	}
	leverage = assessment.RecommendedLeverage

	// Leverage and margin-mode rejections are never fatal to the trade.
	if err := s.venue.SetLeverage(ctx, symbol, leverage); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("set leverage: %v", err))
	}
	if err := s.venue.SetMarginMode(ctx, symbol, s.marginMode); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("set margin mode: %v", err))
	}

	entry, err := s.venue.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     exchange.OrderTypeMarket,
		Quantity: quantity,
	})
	if err != nil {
		return &VenueRejectionError{Op: "entry order", Symbol: symbol, Err: err}
	}

	result.OrderID = entry.OrderID
	result.ExecutedPrice = entry.AvgPrice
	result.ExecutedQuantity = entry.ExecutedQuantity
	if result.ExecutedPrice <= 0 {
		result.ExecutedPrice = price
	}
	if result.ExecutedQuantity <= 0 {
		result.ExecutedQuantity = quantity
	}

	// A decision without protective levels still gets them when volatility
	// data is available: ATR-derived stop and target.
	stopLoss, takeProfit := decision.StopLoss, decision.ProfitTarget
	if stopLoss <= 0 && takeProfit <= 0 && atr > 0 {
		stopLoss, takeProfit = s.engine.StopsFromATR(price, atr, side == exchange.SideBuy)
		logx.WithContext(ctx).Infof("trading: %s levels derived from ATR %.6f: stop %.6f target %.6f",
			symbol, atr, stopLoss, takeProfit)
	}

	s.placeProtectiveOrders(ctx, result, stopLoss, takeProfit, side)
	s.recordPosition(result, decision, side, leverage, stopLoss, takeProfit, availableCapital)
	return nil
}

// placeProtectiveOrders submits the stop-loss and take-profit legs. Both use
// the inverted side and reduceOnly so they can only shrink the position.
// Failures surface as warnings: the entry already filled and the caller must
// know the position is live even when unprotected.
func (s *Service) placeProtectiveOrders(ctx context.Context, result *ExecutionResult, stopLoss, takeProfit float64, entrySide exchange.Side) {
	protectSide := entrySide.Opposite()

	if stopLoss > 0 {
		if _, err := s.venue.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:     result.Symbol,
			Side:       protectSide,
			Type:       exchange.OrderTypeStopMarket,
			StopPrice:  stopLoss,
			Quantity:   result.ExecutedQuantity,
			ReduceOnly: true,
		}); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("stop loss order failed: %v", err))
		}
	}
	if takeProfit > 0 {
		if _, err := s.venue.PlaceOrder(ctx, exchange.OrderRequest{
			Symbol:     result.Symbol,
			Side:       protectSide,
			Type:       exchange.OrderTypeTakeProfitMarket,
			StopPrice:  takeProfit,
			Quantity:   result.ExecutedQuantity,
			ReduceOnly: true,
		}); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("take profit order failed: %v", err))
		}
	}
}

func (s *Service) recordPosition(result *ExecutionResult, decision executor.Decision, side exchange.Side, leverage int, stopLoss, takeProfit, availableCapital float64) {
	riskUSD := decision.RiskUSD
	if riskUSD <= 0 && stopLoss > 0 {
		riskUSD = math.Abs(result.ExecutedPrice-stopLoss) * result.ExecutedQuantity
	}
	riskPct := 0.0
	if availableCapital > 0 {
		riskPct = riskUSD / availableCapital
	}
	quantity := result.ExecutedQuantity
	if side == exchange.SideSell {
		quantity = -quantity
	}
	s.engine.Ledger().AddOrUpdatePosition(risk.PositionRisk{
		Symbol:         result.Symbol,
		Quantity:       quantity,
		EntryPrice:     result.ExecutedPrice,
		CurrentPrice:   result.ExecutedPrice,
		Leverage:       leverage,
		StopLoss:       stopLoss,
		TakeProfit:     takeProfit,
		RiskUSD:        riskUSD,
		RiskPercentage: riskPct,
	})
}

// ClosePosition closes the live position for a symbol. expectSide, when
// non-empty, asserts the position direction before closing.
func (s *Service) ClosePosition(ctx context.Context, symbol string, expectSide exchange.Side) *ExecutionResult {
	result := &ExecutionResult{Symbol: symbols.Normalize(symbol), Signal: executor.SignalClose}
	if err := s.closePosition(ctx, result, expectSide); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Success = true
	return result
}

// closePosition nets the live position to zero. The closing side comes from
// the live signed quantity, never from an assumed direction.
func (s *Service) closePosition(ctx context.Context, result *ExecutionResult, expectSide exchange.Side) error {
	symbol := result.Symbol

	positions, err := s.venue.GetPositions(ctx, []string{symbol})
	if err != nil {
		return market.NewDataFetchError(symbol, "fetch positions", err)
	}
	var live *exchange.Position
	for i := range positions {
		if positions[i].Symbol == symbol && positions[i].Quantity != 0 {
			live = &positions[i]
			break
		}
	}
	if live == nil {
		return &NoOpenPositionError{Symbol: symbol}
	}
	if expectSide != "" && live.Side() != expectSide {
		return &IncompatiblePositionError{
			Symbol:   symbol,
			Expected: string(expectSide),
			Actual:   string(live.Side()),
		}
	}

	closeSide := exchange.SideSell
	if live.Quantity < 0 {
		closeSide = exchange.SideBuy
	}

	order, err := s.venue.PlaceOrder(ctx, exchange.OrderRequest{
		Symbol:     symbol,
		Side:       closeSide,
		Type:       exchange.OrderTypeMarket,
		Quantity:   math.Abs(live.Quantity),
		ReduceOnly: true,
	})
	if err != nil {
		return &VenueRejectionError{Op: "close order", Symbol: symbol, Err: err}
	}

	if err := s.venue.CancelAllOrders(ctx, symbol); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("cancel standing orders: %v", err))
	}

	result.OrderID = order.OrderID
	result.ExecutedPrice = order.AvgPrice
	result.ExecutedQuantity = order.ExecutedQuantity

	// Binance reports avgPrice "0" on market orders until the fill settles;
	// recover the price from order history so the journal records a real fill.
	if result.ExecutedPrice == 0 {
		if price, ok := s.lookupFillPrice(ctx, symbol, order.OrderID); ok {
			result.ExecutedPrice = price
		} else {
			result.Warnings = append(result.Warnings, "fill price unavailable from venue")
		}
	}

	s.engine.Ledger().RemovePosition(symbol)
	s.engine.Ledger().RecordRealizedPnl(live.UnrealizedPnl)
	return nil
}

// lookupFillPrice scans recent closed orders for the fill price of orderID.
func (s *Service) lookupFillPrice(ctx context.Context, symbol string, orderID int64) (float64, bool) {
	closed, err := s.venue.GetClosedOrders(ctx, symbol, 10)
	if err != nil {
		logx.WithContext(ctx).Slowf("trading: fetch closed orders for %s: %v", symbol, err)
		return 0, false
	}
	for _, o := range closed {
		if o.OrderID == orderID && o.AvgPrice > 0 {
			return o.AvgPrice, true
		}
	}
	return 0, false
}

// refreshProtection replaces standing conditional orders on hold decisions
// that carry new stop or target levels. The position itself is untouched.
func (s *Service) refreshProtection(ctx context.Context, result *ExecutionResult, decision executor.Decision) error {
	if decision.StopLoss <= 0 && decision.ProfitTarget <= 0 {
		return nil
	}
	symbol := result.Symbol

	positions, err := s.venue.GetPositions(ctx, []string{symbol})
	if err != nil {
		return market.NewDataFetchError(symbol, "fetch positions", err)
	}
	var live *exchange.Position
	for i := range positions {
		if positions[i].Symbol == symbol && positions[i].Quantity != 0 {
			live = &positions[i]
			break
		}
	}
	if live == nil {
		// Nothing to protect; hold on a flat symbol is a no-op.
		return nil
	}

	if err := s.venue.CancelAllOrders(ctx, symbol); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("cancel standing orders: %v", err))
	}

	entrySide := exchange.SideBuy
	if live.Quantity < 0 {
		entrySide = exchange.SideSell
	}
	result.ExecutedQuantity = math.Abs(live.Quantity)
	s.placeProtectiveOrders(ctx, result, decision.StopLoss, decision.ProfitTarget, entrySide)

	if tracked, ok := s.engine.Ledger().Position(symbol); ok {
		if decision.StopLoss > 0 {
			tracked.StopLoss = decision.StopLoss
		}
		if decision.ProfitTarget > 0 {
			tracked.TakeProfit = decision.ProfitTarget
		}
		s.engine.Ledger().AddOrUpdatePosition(tracked)
	}
	return nil
}

// ReconcileLedger aligns the risk ledger with the venue positions captured in
// an account snapshot: live quantity, mark price, leverage and unrealized PnL
// replace the entry-time values, and positions the venue no longer reports
// are dropped.
func (s *Service) ReconcileLedger(positions []PositionDetail) {
	marks := make([]risk.PositionMark, 0, len(positions))
	for _, pos := range positions {
		marks = append(marks, risk.PositionMark{
			Symbol:        pos.Symbol,
			Quantity:      pos.Quantity,
			CurrentPrice:  pos.MarkPrice,
			Leverage:      pos.Leverage,
			UnrealizedPnl: pos.UnrealizedPnl,
		})
	}
	s.engine.Ledger().Reconcile(marks)
}

// snapshotATR extracts the volatility proxy used for sizing stopless entries.
func snapshotATR(snap *market.Snapshot) float64 {
	if snap == nil {
		return 0
	}
	if atr := snap.Indicators.ATR["ATR14"]; atr > 0 {
		return atr
	}
	return snap.Indicators.ATR["ATR3"]
}
