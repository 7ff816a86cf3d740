package market

import "context"

// Provider exposes exchange-agnostic market data.
type Provider interface {
	// Snapshot returns a normalized market snapshot for the specified symbol.
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
	// CurrentPrice returns the latest traded price for the symbol.
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
	// ListAssets returns all supported symbols along with metadata.
	ListAssets(ctx context.Context) ([]Asset, error)
}

// Snapshot captures a normalized market view for a trading symbol.
type Snapshot struct {
	Symbol       string            // Venue symbol as traded
	Price        PriceInfo         // Latest price data
	Change       ChangeInfo        // Fractional changes across time windows
	Indicators   IndicatorInfo     // Calculated technical indicators
	OpenInterest *OpenInterestInfo // Derivatives interest data, if available
	Funding      *FundingInfo      // Perpetual funding information, if available
	Volume       *VolumeInfo       // Longer-timeframe volume context, if available
	Intraday     *SeriesBundle     // Short-term time series context
	LongTerm     *SeriesBundle     // Longer-term time series context
}

// Asset describes a tradeable instrument.
type Asset struct {
	Symbol            string // Venue-native symbol, e.g. "BTCUSDT"
	Base              string // Base asset
	Quote             string // Quote asset
	PricePrecision    int    // Decimal places for prices
	QuantityPrecision int    // Decimal places for order quantities
	IsActive          bool   // Whether the asset is currently tradeable
}

// PriceInfo holds last trade data.
type PriceInfo struct {
	Last float64
}

// ChangeInfo describes fractional changes over standard windows.
type ChangeInfo struct {
	OneHour  float64
	FourHour float64
}

// IndicatorInfo aggregates the latest computed indicator values.
type IndicatorInfo struct {
	EMA        map[string]float64 // e.g., {"EMA20": 1234.5}
	MACD       float64
	RSI        map[string]float64 // e.g., {"RSI7": 70.1}
	ATR        map[string]float64 // e.g., {"ATR14": 42.0}
	Bollinger  *BollingerInfo     // Bollinger band levels, if computable
	Stochastic *StochasticInfo    // Stochastic oscillator, if computable
	Trend      *TrendInfo         // Directional movement readings, if computable
}

// BollingerInfo carries the current Bollinger band levels.
type BollingerInfo struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// StochasticInfo carries the current stochastic oscillator readings.
type StochasticInfo struct {
	K float64
	D float64
}

// TrendInfo carries directional movement index readings.
type TrendInfo struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// OpenInterestInfo reports derivatives open interest metrics.
type OpenInterestInfo struct {
	Latest  float64
	Average float64
}

// FundingInfo captures perpetual funding rate data.
type FundingInfo struct {
	Rate float64 // fractional rate per funding interval
}

// VolumeInfo reports current and recent average traded volume.
type VolumeInfo struct {
	Current float64
	Average float64
}

// SeriesBundle provides supporting time series data for analysis layers.
// All series are ordered oldest to newest and trimmed to a fixed length.
type SeriesBundle struct {
	Prices []float64            // Close prices
	EMA    map[string][]float64 // EMA series keyed by window
	MACD   []float64            // MACD values
	RSI    map[string][]float64 // RSI series keyed by window
	ATR    map[string][]float64 // ATR series keyed by window
	Volume []float64            // Volume series when available
}
