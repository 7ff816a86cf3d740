// Package sim implements a paper-trading venue that keeps positions, orders
// and balances in-memory. Market orders fill synchronously at the latest mark
// price; conditional orders rest until cancelled.
package sim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"quantra/pkg/exchange"
	"quantra/pkg/symbols"
)

const (
	defaultInitialBalance = 10000.0
	defaultFallbackPrice  = 100.0
)

// Provider is the in-memory venue implementation.
type Provider struct {
	mu sync.Mutex

	nextOrderID int64

	markPx     map[string]float64
	positions  map[string]*positionState
	openOrders map[string][]exchange.OpenOrder
	closed     map[string][]exchange.OrderResult
	leverage   map[string]int
	marginMode map[string]exchange.MarginMode

	initialBalance float64
	cash           float64
}

type positionState struct {
	Symbol string
	Qty    float64 // positive long, negative short
	Entry  float64 // average entry price
}

// New constructs a simulator seeded with the default balance.
func New() *Provider {
	return NewWithBalance(defaultInitialBalance)
}

// NewWithBalance constructs a simulator with a custom starting balance.
func NewWithBalance(balance float64) *Provider {
	if balance <= 0 {
		balance = defaultInitialBalance
	}
	return &Provider{
		nextOrderID:    1,
		markPx:         make(map[string]float64),
		positions:      make(map[string]*positionState),
		openOrders:     make(map[string][]exchange.OpenOrder),
		closed:         make(map[string][]exchange.OrderResult),
		leverage:       make(map[string]int),
		marginMode:     make(map[string]exchange.MarginMode),
		initialBalance: balance,
		cash:           balance,
	}
}

func init() {
	exchange.RegisterProvider("sim", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		if cfg.InitialBalance > 0 {
			return NewWithBalance(cfg.InitialBalance), nil
		}
		return New(), nil
	})
}

// SetMarkPrice updates the reference price used for fills and unrealized PnL.
func (p *Provider) SetMarkPrice(symbol string, price float64) error {
	if price <= 0 {
		return fmt.Errorf("sim: mark price must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markPx[symbols.Normalize(symbol)] = price
	return nil
}

// PlaceOrder fills market orders immediately at the mark price. Conditional
// orders are recorded as resting orders and never trigger on their own.
func (p *Provider) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	symbol := symbols.Normalize(req.Symbol)
	if req.Side != exchange.SideBuy && req.Side != exchange.SideSell {
		return nil, fmt.Errorf("sim: invalid side %q", req.Side)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch req.Type {
	case exchange.OrderTypeMarket:
		return p.fillMarketLocked(symbol, req)
	case exchange.OrderTypeStopMarket, exchange.OrderTypeTakeProfitMarket:
		if req.StopPrice <= 0 {
			return nil, fmt.Errorf("sim: %s order requires a stop price", req.Type)
		}
		return p.restOrderLocked(symbol, req), nil
	case exchange.OrderTypeLimit:
		if req.Price <= 0 {
			return nil, fmt.Errorf("sim: limit order requires a price")
		}
		return p.restOrderLocked(symbol, req), nil
	default:
		return nil, fmt.Errorf("sim: unsupported order type %q", req.Type)
	}
}

func (p *Provider) fillMarketLocked(symbol string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("sim: quantity must be positive")
	}
	price := p.resolveMarkPriceLocked(symbol)

	realized, filled, err := p.applyFillLocked(symbol, price, req.Quantity, req.Side == exchange.SideBuy, req.ReduceOnly)
	if err != nil {
		return nil, err
	}
	p.cash += realized

	id := p.nextOrderID
	p.nextOrderID++
	result := exchange.OrderResult{
		OrderID:          id,
		Symbol:           symbol,
		Side:             req.Side,
		Type:             req.Type,
		Status:           "FILLED",
		AvgPrice:         price,
		ExecutedQuantity: filled,
		Timestamp:        time.Now().UnixMilli(),
	}
	p.closed[symbol] = append(p.closed[symbol], result)
	return &result, nil
}

func (p *Provider) restOrderLocked(symbol string, req exchange.OrderRequest) *exchange.OrderResult {
	id := p.nextOrderID
	p.nextOrderID++
	p.openOrders[symbol] = append(p.openOrders[symbol], exchange.OpenOrder{
		OrderID:    id,
		Symbol:     symbol,
		Side:       req.Side,
		Type:       req.Type,
		Quantity:   req.Quantity,
		Price:      req.Price,
		StopPrice:  req.StopPrice,
		ReduceOnly: req.ReduceOnly,
	})
	return &exchange.OrderResult{
		OrderID: id,
		Symbol:  symbol,
		Side:    req.Side,
		Type:    req.Type,
		Status:  "NEW",
	}
}

// applyFillLocked nets a fill into the position, returning realized PnL and
// the executed quantity. Reduce-only fills are capped at the open quantity
// and rejected when they would flip or increase the position.
func (p *Provider) applyFillLocked(symbol string, price, qty float64, isBuy, reduceOnly bool) (float64, float64, error) {
	state := p.positions[symbol]
	if reduceOnly {
		if state == nil || state.Qty == 0 {
			return 0, 0, fmt.Errorf("sim: reduce-only order with no open position for %s", symbol)
		}
	} else if state == nil {
		state = &positionState{Symbol: symbol}
		p.positions[symbol] = state
	}

	execQty := qty
	delta := execQty
	if !isBuy {
		delta = -execQty
	}

	if reduceOnly {
		if state.Qty*delta > 0 {
			return 0, 0, fmt.Errorf("sim: reduce-only order would increase position for %s", symbol)
		}
		maxQty := math.Abs(state.Qty)
		if execQty > maxQty {
			execQty = maxQty
		}
		delta = execQty
		if !isBuy {
			delta = -execQty
		}
	}

	oldQty := state.Qty
	newQty := oldQty + delta

	realized := 0.0
	if oldQty != 0 && oldQty*delta < 0 {
		closeQty := math.Min(math.Abs(oldQty), math.Abs(delta))
		dir := 1.0
		if oldQty < 0 {
			dir = -1.0
		}
		realized = closeQty * (price - state.Entry) * dir
	}

	switch {
	case oldQty == 0:
		state.Entry = price
	case oldQty*delta > 0:
		state.Entry = ((oldQty * state.Entry) + (delta * price)) / newQty
	case oldQty*delta < 0:
		if newQty == 0 || oldQty*newQty < 0 {
			state.Entry = price
		}
	}

	state.Qty = newQty
	if math.Abs(state.Qty) < 1e-10 {
		state.Qty = 0
	}
	if state.Qty == 0 {
		delete(p.positions, symbol)
	}
	return realized, math.Abs(delta), nil
}

// CancelAllOrders drops every resting order for a symbol.
func (p *Provider) CancelAllOrders(ctx context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.openOrders, symbols.Normalize(symbol))
	return nil
}

// GetOpenOrders lists resting conditional and limit orders for a symbol.
func (p *Provider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OpenOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	orders := p.openOrders[symbols.Normalize(symbol)]
	out := make([]exchange.OpenOrder, len(orders))
	copy(out, orders)
	return out, nil
}

// GetClosedOrders returns filled orders for a symbol, newest first.
func (p *Provider) GetClosedOrders(ctx context.Context, symbol string, limit int) ([]exchange.OrderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	history := p.closed[symbols.Normalize(symbol)]
	out := make([]exchange.OrderResult, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, history[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetPositions returns open positions marked to the latest prices.
func (p *Provider) GetPositions(ctx context.Context, syms []string) ([]exchange.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	want := make(map[string]bool, len(syms))
	for _, s := range syms {
		want[symbols.Normalize(s)] = true
	}

	positions := make([]exchange.Position, 0, len(p.positions))
	for symbol, state := range p.positions {
		if len(want) > 0 && !want[symbol] {
			continue
		}
		mark := p.resolveMarkPriceLocked(symbol)
		lev := p.leverage[symbol]
		if lev <= 0 {
			lev = 1
		}
		positions = append(positions, exchange.Position{
			Symbol:           symbol,
			Quantity:         state.Qty,
			EntryPrice:       state.Entry,
			MarkPrice:        mark,
			LiquidationPrice: estimateLiquidation(state.Qty, state.Entry, lev),
			UnrealizedPnl:    state.Qty * (mark - state.Entry),
			Leverage:         lev,
			Notional:         state.Qty * mark,
		})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})
	return positions, nil
}

// estimateLiquidation approximates the liquidation price from leverage alone,
// ignoring maintenance margin tiers.
func estimateLiquidation(qty, entry float64, leverage int) float64 {
	if qty == 0 || entry <= 0 || leverage <= 0 {
		return 0
	}
	move := entry / float64(leverage)
	if qty > 0 {
		return math.Max(0, entry-move)
	}
	return entry + move
}

// SetLeverage records the leverage preference for a symbol.
func (p *Provider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if leverage <= 0 {
		return fmt.Errorf("sim: leverage must be positive")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.leverage[symbols.Normalize(symbol)] = leverage
	return nil
}

// SetMarginMode records the margin mode preference for a symbol.
func (p *Provider) SetMarginMode(ctx context.Context, symbol string, mode exchange.MarginMode) error {
	if mode != exchange.MarginModeIsolated && mode != exchange.MarginModeCrossed {
		return fmt.Errorf("sim: invalid margin mode %q", mode)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marginMode[symbols.Normalize(symbol)] = mode
	return nil
}

// GetBalance reports cash plus unrealized PnL as total equity. Available
// balance subtracts margin locked by open positions.
func (p *Provider) GetBalance(ctx context.Context) (*exchange.Balance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	unrealized := 0.0
	margin := 0.0
	for symbol, state := range p.positions {
		mark := p.resolveMarkPriceLocked(symbol)
		unrealized += state.Qty * (mark - state.Entry)
		lev := p.leverage[symbol]
		if lev <= 0 {
			lev = 1
		}
		margin += math.Abs(state.Qty*mark) / float64(lev)
	}

	equity := p.cash + unrealized
	return &exchange.Balance{
		Total:     equity,
		Available: math.Max(0, equity-margin),
	}, nil
}

func (p *Provider) resolveMarkPriceLocked(symbol string) float64 {
	if price, ok := p.markPx[symbol]; ok && price > 0 {
		return price
	}
	if state, ok := p.positions[symbol]; ok && state.Entry > 0 {
		return state.Entry
	}
	return defaultFallbackPrice
}
