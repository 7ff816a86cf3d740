// Package binance implements the exchange.Provider interface against Binance
// USDT-margined futures.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/zeromicro/go-zero/core/logx"

	"quantra/pkg/exchange"
	"quantra/pkg/symbols"
)

const defaultTimeout = 10 * time.Second

// Provider trades on Binance futures through the official REST API.
type Provider struct {
	client  *futures.Client
	timeout time.Duration

	// quantityPrecision caches per-symbol step precision from exchange info.
	precisionMu       sync.RWMutex
	quantityPrecision map[string]int
	pricePrecision    map[string]int
}

// ProviderOption customizes provider construction.
type ProviderOption func(*Provider)

// WithClient replaces the underlying futures client, primarily for tests.
func WithClient(client *futures.Client) ProviderOption {
	return func(p *Provider) { p.client = client }
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewProvider constructs a Binance futures trading provider.
func NewProvider(apiKey, apiSecret string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:            futures.NewClient(apiKey, apiSecret),
		timeout:           defaultTimeout,
		quantityPrecision: make(map[string]int),
		pricePrecision:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func init() {
	exchange.RegisterProvider("binance", func(name string, cfg *exchange.ProviderConfig) (exchange.Provider, error) {
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return nil, fmt.Errorf("binance venue %s: api_key and api_secret are required", name)
		}
		futures.UseTestnet = cfg.Testnet
		opts := []ProviderOption{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewProvider(cfg.APIKey, cfg.APISecret, opts...), nil
	})
}

func (p *Provider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// PlaceOrder submits a normalized order to the venue.
func (p *Provider) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	symbol := symbols.Normalize(req.Symbol)

	svc := p.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderType(req.Type))

	switch req.Type {
	case exchange.OrderTypeMarket:
		svc = svc.Quantity(p.formatQuantity(ctx, symbol, req.Quantity))
	case exchange.OrderTypeLimit:
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		svc = svc.
			Quantity(p.formatQuantity(ctx, symbol, req.Quantity)).
			Price(p.formatPrice(ctx, symbol, req.Price)).
			TimeInForce(futures.TimeInForceType(tif))
	case exchange.OrderTypeStopMarket, exchange.OrderTypeTakeProfitMarket:
		svc = svc.
			StopPrice(p.formatPrice(ctx, symbol, req.StopPrice)).
			WorkingType(futures.WorkingTypeContractPrice)
		if req.ReduceOnly {
			// ClosePosition closes the whole position on trigger without
			// requiring a quantity, so it cannot overshoot into a reversal.
			svc = svc.ClosePosition(true)
		} else {
			svc = svc.Quantity(p.formatQuantity(ctx, symbol, req.Quantity))
		}
	default:
		return nil, fmt.Errorf("binance: unsupported order type %q", req.Type)
	}

	if req.ReduceOnly && req.Type == exchange.OrderTypeMarket {
		svc = svc.ReduceOnly(true)
	}

	cctx, cancel := p.callContext(ctx)
	defer cancel()
	resp, err := svc.Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("binance: place %s %s order for %s: %w", req.Side, req.Type, symbol, err)
	}

	result := &exchange.OrderResult{
		OrderID:   resp.OrderID,
		Symbol:    resp.Symbol,
		Side:      exchange.Side(resp.Side),
		Type:      exchange.OrderType(resp.Type),
		Status:    string(resp.Status),
		Timestamp: resp.UpdateTime,
	}
	result.AvgPrice, _ = strconv.ParseFloat(resp.AvgPrice, 64)
	result.ExecutedQuantity, _ = strconv.ParseFloat(resp.ExecutedQuantity, 64)
	return result, nil
}

// CancelAllOrders cancels every resting order for a symbol.
func (p *Provider) CancelAllOrders(ctx context.Context, symbol string) error {
	symbol = symbols.Normalize(symbol)
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	if err := p.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(cctx); err != nil {
		return fmt.Errorf("binance: cancel open orders for %s: %w", symbol, err)
	}
	return nil
}

// GetOpenOrders lists resting orders for a symbol.
func (p *Provider) GetOpenOrders(ctx context.Context, symbol string) ([]exchange.OpenOrder, error) {
	symbol = symbols.Normalize(symbol)
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	raw, err := p.client.NewListOpenOrdersService().Symbol(symbol).Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("binance: list open orders for %s: %w", symbol, err)
	}

	orders := make([]exchange.OpenOrder, 0, len(raw))
	for _, o := range raw {
		order := exchange.OpenOrder{
			OrderID:    o.OrderID,
			Symbol:     o.Symbol,
			Side:       exchange.Side(o.Side),
			Type:       exchange.OrderType(o.Type),
			ReduceOnly: o.ReduceOnly,
		}
		order.Quantity, _ = strconv.ParseFloat(o.OrigQuantity, 64)
		order.Price, _ = strconv.ParseFloat(o.Price, 64)
		order.StopPrice, _ = strconv.ParseFloat(o.StopPrice, 64)
		orders = append(orders, order)
	}
	return orders, nil
}

// GetClosedOrders returns orders that reached a terminal state for a symbol,
// newest first. Binance delivers order history oldest first, so the slice is
// reversed after filtering.
func (p *Provider) GetClosedOrders(ctx context.Context, symbol string, limit int) ([]exchange.OrderResult, error) {
	symbol = symbols.Normalize(symbol)
	svc := p.client.NewListOrdersService().Symbol(symbol)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	raw, err := svc.Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("binance: list orders for %s: %w", symbol, err)
	}

	orders := make([]exchange.OrderResult, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		o := raw[i]
		switch o.Status {
		case futures.OrderStatusTypeFilled, futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		default:
			continue
		}
		result := exchange.OrderResult{
			OrderID:   o.OrderID,
			Symbol:    o.Symbol,
			Side:      exchange.Side(o.Side),
			Type:      exchange.OrderType(o.Type),
			Status:    string(o.Status),
			Timestamp: o.UpdateTime,
		}
		result.AvgPrice, _ = strconv.ParseFloat(o.AvgPrice, 64)
		result.ExecutedQuantity, _ = strconv.ParseFloat(o.ExecutedQuantity, 64)
		orders = append(orders, result)
		if limit > 0 && len(orders) >= limit {
			break
		}
	}
	return orders, nil
}

// GetPositions returns non-zero positions. With an empty symbol list every
// open position is returned.
func (p *Provider) GetPositions(ctx context.Context, syms []string) ([]exchange.Position, error) {
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	raw, err := p.client.NewGetPositionRiskService().Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch position risk: %w", err)
	}

	want := make(map[string]bool, len(syms))
	for _, s := range syms {
		want[symbols.Normalize(s)] = true
	}

	positions := make([]exchange.Position, 0, len(raw))
	for _, r := range raw {
		if len(want) > 0 && !want[r.Symbol] {
			continue
		}
		pos, err := parsePosition(r)
		if err != nil {
			logx.WithContext(ctx).Errorf("binance: skip malformed position for %s: %v", r.Symbol, err)
			continue
		}
		if pos.Quantity == 0 {
			continue
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func parsePosition(r *futures.PositionRisk) (exchange.Position, error) {
	pos := exchange.Position{Symbol: r.Symbol}

	var err error
	if pos.Quantity, err = strconv.ParseFloat(r.PositionAmt, 64); err != nil {
		return pos, fmt.Errorf("parse positionAmt %q: %w", r.PositionAmt, err)
	}
	if pos.EntryPrice, err = strconv.ParseFloat(r.EntryPrice, 64); err != nil {
		return pos, fmt.Errorf("parse entryPrice %q: %w", r.EntryPrice, err)
	}
	if pos.MarkPrice, err = strconv.ParseFloat(r.MarkPrice, 64); err != nil {
		return pos, fmt.Errorf("parse markPrice %q: %w", r.MarkPrice, err)
	}
	if pos.UnrealizedPnl, err = strconv.ParseFloat(r.UnRealizedProfit, 64); err != nil {
		return pos, fmt.Errorf("parse unRealizedProfit %q: %w", r.UnRealizedProfit, err)
	}
	// Liquidation price is "0" for cross positions with ample margin.
	pos.LiquidationPrice, _ = strconv.ParseFloat(r.LiquidationPrice, 64)
	if lev, err := strconv.Atoi(r.Leverage); err == nil {
		pos.Leverage = lev
	}
	pos.Notional = pos.Quantity * pos.MarkPrice
	return pos, nil
}

// SetLeverage adjusts position leverage for a symbol. Binance rejects
// no-op changes with a benign error which is swallowed here.
func (p *Provider) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	symbol = symbols.Normalize(symbol)
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	_, err := p.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(cctx)
	if err != nil {
		if strings.Contains(err.Error(), "No need to change") {
			return nil
		}
		return fmt.Errorf("binance: set leverage %dx for %s: %w", leverage, symbol, err)
	}
	return nil
}

// SetMarginMode switches between isolated and cross margin for a symbol.
// The venue rejects switching to the mode already in effect; that rejection
// is not an error from the caller's point of view.
func (p *Provider) SetMarginMode(ctx context.Context, symbol string, mode exchange.MarginMode) error {
	symbol = symbols.Normalize(symbol)
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	err := p.client.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(futures.MarginType(mode)).
		Do(cctx)
	if err != nil {
		if strings.Contains(err.Error(), "No need to change") ||
			strings.Contains(err.Error(), "-4046") {
			return nil
		}
		return fmt.Errorf("binance: set margin mode %s for %s: %w", mode, symbol, err)
	}
	return nil
}

// GetBalance reports the USDT futures wallet.
func (p *Provider) GetBalance(ctx context.Context) (*exchange.Balance, error) {
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	account, err := p.client.NewGetAccountService().Do(cctx)
	if err != nil {
		return nil, fmt.Errorf("binance: fetch account: %w", err)
	}

	balance := &exchange.Balance{}
	balance.Total, _ = strconv.ParseFloat(account.TotalWalletBalance, 64)
	balance.Available, _ = strconv.ParseFloat(account.AvailableBalance, 64)
	return balance, nil
}

// formatQuantity renders a quantity string at the symbol's step precision,
// falling back to 3 decimals when exchange info is unavailable.
func (p *Provider) formatQuantity(ctx context.Context, symbol string, quantity float64) string {
	precision, ok := p.lookupPrecision(p.quantityPrecision, symbol)
	if !ok {
		p.loadPrecisions(ctx)
		if precision, ok = p.lookupPrecision(p.quantityPrecision, symbol); !ok {
			precision = 3
		}
	}
	return strconv.FormatFloat(quantity, 'f', precision, 64)
}

func (p *Provider) formatPrice(ctx context.Context, symbol string, price float64) string {
	precision, ok := p.lookupPrecision(p.pricePrecision, symbol)
	if !ok {
		p.loadPrecisions(ctx)
		if precision, ok = p.lookupPrecision(p.pricePrecision, symbol); !ok {
			precision = 2
		}
	}
	return strconv.FormatFloat(price, 'f', precision, 64)
}

func (p *Provider) lookupPrecision(cache map[string]int, symbol string) (int, bool) {
	p.precisionMu.RLock()
	defer p.precisionMu.RUnlock()
	precision, ok := cache[symbol]
	return precision, ok
}

func (p *Provider) loadPrecisions(ctx context.Context) {
	cctx, cancel := p.callContext(ctx)
	defer cancel()
	info, err := p.client.NewExchangeInfoService().Do(cctx)
	if err != nil {
		logx.WithContext(ctx).Slowf("binance: fetch exchange info for precisions: %v", err)
		return
	}
	p.precisionMu.Lock()
	defer p.precisionMu.Unlock()
	for _, s := range info.Symbols {
		p.quantityPrecision[s.Symbol] = s.QuantityPrecision
		p.pricePrecision[s.Symbol] = s.PricePrecision
	}
}
