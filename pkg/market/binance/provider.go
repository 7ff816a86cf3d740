// Package binance implements the market data provider backed by Binance
// USDT-margined futures endpoints.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"quantra/pkg/market"
	"quantra/pkg/symbols"
)

const defaultRequestTimeout = 8 * time.Second

// Provider implements market.Provider via Binance futures endpoints.
type Provider struct {
	client  *futures.Client
	timeout time.Duration
}

// ProviderOption customises the Binance provider.
type ProviderOption func(*Provider)

// WithClient injects a custom futures client.
func WithClient(client *futures.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewProvider constructs a provider. Market data endpoints work without
// credentials, so empty keys are fine for read-only use.
func NewProvider(apiKey, apiSecret string, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:  futures.NewClient(apiKey, apiSecret),
		timeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Snapshot assembles the full market snapshot for the supplied symbol.
func (p *Provider) Snapshot(ctx context.Context, symbol string) (*market.Snapshot, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()
	return p.buildSnapshot(ctx, symbols.Normalize(symbol))
}

// CurrentPrice returns the latest traded price for the symbol.
func (p *Provider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	pair := symbols.Normalize(symbol)
	prices, err := p.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		return 0, market.NewDataFetchError(pair, "fetch price", err)
	}
	if len(prices) == 0 {
		return 0, market.NewDataFetchError(pair, "price not available", nil)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, market.NewDataFetchError(pair, fmt.Sprintf("parse price %q", prices[0].Price), err)
	}
	return price, nil
}

// ListAssets returns the tradeable USDT perpetual symbols with precision data.
func (p *Provider) ListAssets(ctx context.Context) ([]market.Asset, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()

	info, err := p.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance: exchange info: %w", err)
	}

	assets := make([]market.Asset, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset != symbols.DefaultQuote {
			continue
		}
		assets = append(assets, market.Asset{
			Symbol:            s.Symbol,
			Base:              s.BaseAsset,
			Quote:             s.QuoteAsset,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
			IsActive:          s.Status == "TRADING",
		})
	}
	return assets, nil
}

func (p *Provider) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, p.timeout)
}

func init() {
	market.RegisterProvider("binance", func(name string, cfg *market.ProviderConfig) (market.Provider, error) {
		if cfg.Testnet {
			futures.UseTestnet = true
		}
		opts := []ProviderOption{}
		if cfg.Timeout > 0 {
			opts = append(opts, WithTimeout(cfg.Timeout))
		}
		return NewProvider(cfg.APIKey, cfg.APISecret, opts...), nil
	})
}
