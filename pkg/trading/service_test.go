package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantra/pkg/exchange"
	"quantra/pkg/exchange/sim"
	"quantra/pkg/executor"
	"quantra/pkg/market"
	"quantra/pkg/risk"
)

type stubPrices struct {
	prices map[string]float64
}

func (p *stubPrices) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	return nil, errors.New("not implemented")
}

func (p *stubPrices) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	price, ok := p.prices[symbol]
	if !ok {
		return 0, errors.New("unknown symbol")
	}
	return price, nil
}

func (p *stubPrices) ListAssets(ctx context.Context) ([]market.Asset, error) { return nil, nil }

func newTestService(t *testing.T, venue exchange.Provider, prices map[string]float64) *Service {
	t.Helper()
	engine, err := risk.NewEngine(risk.Config{MaxPositionSizeUSD: 100000})
	require.NoError(t, err)
	svc, err := NewService(venue, &stubPrices{prices: prices}, engine)
	require.NoError(t, err)
	return svc
}

func entryDecision(symbol, signal string) executor.Decision {
	return executor.Decision{
		Symbol:       symbol,
		Signal:       signal,
		Cost:         500,
		Leverage:     10,
		StopLoss:     48000,
		ProfitTarget: 55000,
		Confidence:   0.8,
	}
}

func TestExecuteBuyToEnterSizesFromCost(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	result := svc.Execute(context.Background(), entryDecision("BTC", executor.SignalBuyToEnter), 10000, nil)

	require.True(t, result.Success, "error: %s", result.Error)
	// quantity = (500 * 10) / 50000 = 0.1
	assert.InDelta(t, 0.1, result.ExecutedQuantity, 1e-9)
	assert.InDelta(t, 50000.0, result.ExecutedPrice, 1e-9)
	assert.Empty(t, result.Warnings)

	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.1, positions[0].Quantity, 1e-9)

	// Both protective legs rest as reduce-only sells.
	orders, err := venue.GetOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, exchange.SideSell, o.Side)
		assert.True(t, o.ReduceOnly)
	}

	tracked, ok := svc.Ledger().Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "long", tracked.Side())
	assert.InDelta(t, 0.1, tracked.Quantity, 1e-9)
	assert.InDelta(t, 50000.0, tracked.CurrentPrice, 1e-9)
	assert.Equal(t, 10, tracked.Leverage)
	assert.InDelta(t, 55000.0, tracked.TakeProfit, 1e-9)
	// riskUSD = |50000 - 48000| * 0.1 = 200, riskPct = 200/10000.
	assert.InDelta(t, 200.0, tracked.RiskUSD, 1e-6)
	assert.InDelta(t, 0.02, tracked.RiskPercentage, 1e-9)
}

func TestExecuteSellToEnterInvertsProtectiveSide(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("ETHUSDT", 3000))
	svc := newTestService(t, venue, map[string]float64{"ETHUSDT": 3000})

	decision := executor.Decision{
		Symbol:       "ETHUSDT",
		Signal:       executor.SignalSellToEnter,
		Cost:         300,
		Leverage:     5,
		StopLoss:     3100,
		ProfitTarget: 2800,
		Confidence:   0.7,
	}
	result := svc.Execute(context.Background(), decision, 10000, nil)
	require.True(t, result.Success, "error: %s", result.Error)

	orders, err := venue.GetOpenOrders(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, exchange.SideBuy, o.Side, "short protective orders buy back")
		assert.True(t, o.ReduceOnly)
	}

	tracked, ok := svc.Ledger().Position("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, "short", tracked.Side())
	assert.Negative(t, tracked.Quantity, "short quantity is signed")
}

func TestExecuteExplicitQuantityWins(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	decision := entryDecision("BTCUSDT", executor.SignalBuyToEnter)
	decision.Quantity = 0.25

	result := svc.Execute(context.Background(), decision, 10000, nil)
	require.True(t, result.Success)
	assert.InDelta(t, 0.25, result.ExecutedQuantity, 1e-9)
}

func TestExecuteEntryWithoutSizingFails(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	decision := executor.Decision{
		Symbol:     "BTCUSDT",
		Signal:     executor.SignalBuyToEnter,
		Confidence: 0.8,
	}
	result := svc.Execute(context.Background(), decision, 10000, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "insufficient capital")

	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, positions, "no order reaches the venue")
}

func TestExecuteCloseOnFlatSymbolFails(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("ETHUSDT", 3000))
	svc := newTestService(t, venue, map[string]float64{"ETHUSDT": 3000})

	result := svc.Execute(context.Background(), executor.Decision{
		Symbol: "ETH",
		Signal: executor.SignalClose,
	}, 10000, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "No open position found for ETHUSDT", result.Error)
	assert.Zero(t, result.OrderID)
}

func TestExecuteEnterThenCloseNetsFlat(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	entry := svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil)
	require.True(t, entry.Success)

	closeResult := svc.Execute(context.Background(), executor.Decision{
		Symbol: "BTCUSDT",
		Signal: executor.SignalClose,
	}, 10000, nil)
	require.True(t, closeResult.Success, "error: %s", closeResult.Error)
	assert.InDelta(t, 0.1, closeResult.ExecutedQuantity, 1e-9)

	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, positions)

	// Standing protective orders were cancelled with the close.
	orders, err := venue.GetOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, ok := svc.Ledger().Position("BTCUSDT")
	assert.False(t, ok, "ledger entry removed on close")
}

func TestExecuteCloseUsesLiveSideForShort(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("ETHUSDT", 3000))
	svc := newTestService(t, venue, map[string]float64{"ETHUSDT": 3000})

	short := executor.Decision{
		Symbol:     "ETHUSDT",
		Signal:     executor.SignalSellToEnter,
		Quantity:   2,
		Leverage:   5,
		Confidence: 0.6,
	}
	require.True(t, svc.Execute(context.Background(), short, 10000, nil).Success)

	// Closing a short must buy back, which the sim only accepts as a
	// reduce-only buy.
	result := svc.Execute(context.Background(), executor.Decision{
		Symbol: "ETHUSDT",
		Signal: executor.SignalClose,
	}, 10000, nil)
	require.True(t, result.Success, "error: %s", result.Error)

	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestClosePositionIncompatibleSide(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	require.True(t, svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil).Success)

	result := svc.ClosePosition(context.Background(), "BTCUSDT", exchange.SideSell)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "expected SELL")

	// Position untouched.
	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestExecuteHoldRefreshesProtection(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	require.True(t, svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil).Success)

	hold := executor.Decision{
		Symbol:       "BTCUSDT",
		Signal:       executor.SignalHold,
		StopLoss:     49000,
		ProfitTarget: 56000,
		Confidence:   0.6,
	}
	result := svc.Execute(context.Background(), hold, 10000, nil)
	require.True(t, result.Success, "error: %s", result.Error)

	orders, err := venue.GetOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	stops := map[float64]bool{}
	for _, o := range orders {
		stops[o.StopPrice] = true
	}
	assert.True(t, stops[49000.0])
	assert.True(t, stops[56000.0])

	// Position quantity is untouched by the refresh.
	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.1, positions[0].Quantity, 1e-9)

	tracked, ok := svc.Ledger().Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 49000.0, tracked.StopLoss, 1e-9)
	assert.InDelta(t, 56000.0, tracked.TakeProfit, 1e-9)
}

func TestExecuteHoldWithoutLevelsIsNoop(t *testing.T) {
	venue := sim.New()
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	result := svc.Execute(context.Background(), executor.Decision{
		Symbol: "BTCUSDT",
		Signal: executor.SignalHold,
	}, 10000, nil)
	assert.True(t, result.Success)
	assert.Zero(t, result.OrderID)
}

// protectiveFailVenue fails conditional orders while letting market orders
// through, emulating a venue that rejects the protective legs after a fill.
type protectiveFailVenue struct {
	*sim.Provider
}

func (v *protectiveFailVenue) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if req.Type == exchange.OrderTypeStopMarket || req.Type == exchange.OrderTypeTakeProfitMarket {
		return nil, errors.New("would immediately trigger")
	}
	return v.Provider.PlaceOrder(ctx, req)
}

func TestExecutePartialFailureAfterEntry(t *testing.T) {
	inner := sim.New()
	require.NoError(t, inner.SetMarkPrice("BTCUSDT", 50000))
	venue := &protectiveFailVenue{Provider: inner}
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	result := svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil)

	// The position is live even though unprotected: success with warnings.
	require.True(t, result.Success)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "stop loss order failed")
	assert.Contains(t, result.Warnings[1], "take profit order failed")

	positions, err := venue.GetPositions(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

// leverageFailVenue rejects leverage and margin-mode changes.
type leverageFailVenue struct {
	*sim.Provider
}

func (v *leverageFailVenue) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	return errors.New("leverage locked by open orders")
}

func (v *leverageFailVenue) SetMarginMode(ctx context.Context, symbol string, mode exchange.MarginMode) error {
	return errors.New("margin mode locked")
}

func TestExecuteLeverageRejectionIsNonFatal(t *testing.T) {
	inner := sim.New()
	require.NoError(t, inner.SetMarkPrice("BTCUSDT", 50000))
	venue := &leverageFailVenue{Provider: inner}
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	result := svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil)

	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "set leverage")
	assert.Contains(t, result.Warnings[1], "set margin mode")
}

// rejectAllVenue rejects every order.
type rejectAllVenue struct {
	*sim.Provider
}

func (v *rejectAllVenue) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	return nil, errors.New("Margin is insufficient")
}

func TestExecuteEntryRejectionCarriesVenueMessage(t *testing.T) {
	inner := sim.New()
	require.NoError(t, inner.SetMarkPrice("BTCUSDT", 50000))
	venue := &rejectAllVenue{Provider: inner}
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	result := svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "venue rejected entry order")
	assert.Contains(t, result.Error, "Margin is insufficient", "venue message carried verbatim")
}

func TestExecuteUnknownSignal(t *testing.T) {
	venue := sim.New()
	svc := newTestService(t, venue, map[string]float64{})

	result := svc.Execute(context.Background(), executor.Decision{Symbol: "BTCUSDT", Signal: "noop"}, 10000, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown signal")
}

func TestExecuteStoplessEntryDerivesLevelsFromATR(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	snap := &market.Snapshot{
		Symbol:     "BTCUSDT",
		Price:      market.PriceInfo{Last: 50000},
		Indicators: market.IndicatorInfo{ATR: map[string]float64{"ATR14": 800}},
	}
	decision := executor.Decision{
		Symbol:     "BTCUSDT",
		Signal:     executor.SignalBuyToEnter,
		Cost:       500,
		Leverage:   10,
		Confidence: 0.8,
	}
	result := svc.Execute(context.Background(), decision, 10000, snap)
	require.True(t, result.Success, "error: %s", result.Error)

	// StopMultiplier 2 / ProfitMultiplier 3 against ATR 800.
	orders, err := venue.GetOpenOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	stops := map[float64]bool{}
	for _, o := range orders {
		assert.True(t, o.ReduceOnly)
		stops[o.StopPrice] = true
	}
	assert.True(t, stops[48400.0], "stop at entry - 2*ATR")
	assert.True(t, stops[52400.0], "target at entry + 3*ATR")

	tracked, ok := svc.Ledger().Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 48400.0, tracked.StopLoss, 1e-9)
	assert.InDelta(t, 52400.0, tracked.TakeProfit, 1e-9)
	// riskUSD = |50000 - 48400| * 0.1 = 160.
	assert.InDelta(t, 160.0, tracked.RiskUSD, 1e-6)
}

func TestReconcileLedgerTracksVenueState(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	require.True(t, svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil).Success)

	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 55000))
	snapshot, err := BuildAccountSnapshot(context.Background(), venue, nil, nil, 10000)
	require.NoError(t, err)
	svc.ReconcileLedger(snapshot.Positions)

	// 0.1 BTC marked 5000 up: the ledger now carries the venue's view.
	metrics := svc.Ledger().Metrics()
	assert.InDelta(t, 500.0, metrics.TotalUnrealizedPnl, 1e-6)

	tracked, ok := svc.Ledger().Position("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 55000.0, tracked.CurrentPrice, 1e-9)
	assert.InDelta(t, 500.0, tracked.UnrealizedPnl, 1e-6)
	assert.InDelta(t, 48000.0, tracked.StopLoss, 1e-9, "risk intent survives reconciliation")
}

func TestReconcileLedgerDropsPositionsClosedOnVenue(t *testing.T) {
	venue := sim.New()
	require.NoError(t, venue.SetMarkPrice("BTCUSDT", 50000))
	svc := newTestService(t, venue, map[string]float64{"BTCUSDT": 50000})

	require.True(t, svc.Execute(context.Background(), entryDecision("BTCUSDT", executor.SignalBuyToEnter), 10000, nil).Success)

	// The stop fires on the venue between cycles: the position is gone there
	// but the ledger still tracks it.
	_, err := venue.PlaceOrder(context.Background(), exchange.OrderRequest{
		Symbol:     "BTCUSDT",
		Side:       exchange.SideSell,
		Type:       exchange.OrderTypeMarket,
		Quantity:   0.1,
		ReduceOnly: true,
	})
	require.NoError(t, err)

	snapshot, err := BuildAccountSnapshot(context.Background(), venue, nil, nil, 10000)
	require.NoError(t, err)
	svc.ReconcileLedger(snapshot.Positions)

	_, ok := svc.Ledger().Position("BTCUSDT")
	assert.False(t, ok)
	assert.Zero(t, svc.Ledger().Metrics().TotalPositions)
}
