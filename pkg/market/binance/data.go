package binance

import (
	"context"
	"math"
	"strconv"

	"github.com/zeromicro/go-zero/core/logx"

	"quantra/pkg/market"
	"quantra/pkg/market/indicators"
)

const (
	intradayInterval       = "3m"
	intradayLookback       = 40
	intradaySeriesLength   = 10
	intradayChangeLookback = 20
	longerInterval         = "4h"
	longerLookback         = 60
	priceChange4hLookback  = 1

	// MACD needs 26 candles for the slow EMA plus 9 for the signal line.
	minCandleHistory = 35
)

func (p *Provider) buildSnapshot(ctx context.Context, pair string) (*market.Snapshot, error) {
	intradayKlines, err := p.fetchKlines(ctx, pair, intradayInterval, intradayLookback)
	if err != nil {
		return nil, err
	}
	if len(intradayKlines) < minCandleHistory {
		return nil, market.NewDataFetchError(pair, "insufficient candle history", nil)
	}
	longerKlines, err := p.fetchKlines(ctx, pair, longerInterval, longerLookback)
	if err != nil {
		return nil, err
	}

	lastPrice, err := p.CurrentPrice(ctx, pair)
	if err != nil {
		return nil, err
	}

	intradaySeries, intradaySignals := buildIntradaySeries(intradayKlines)
	longerSeries, longerSignals := buildLongerSeries(longerKlines)

	change1h := calculatePriceChange(lastPrice, priceAt(intradayKlines, intradayChangeLookback))
	change4h := calculatePriceChange(lastPrice, priceAt(longerKlines, priceChange4hLookback))

	indicator := assembleIndicators(intradaySignals, longerSignals)

	snapshot := &market.Snapshot{
		Symbol:     pair,
		Price:      market.PriceInfo{Last: lastPrice},
		Change:     market.ChangeInfo{OneHour: change1h, FourHour: change4h},
		Indicators: indicator,
		Intraday:   intradaySeries,
		LongTerm:   longerSeries,
	}

	if volumes := extractVolumes(longerKlines); len(volumes) > 0 {
		snapshot.Volume = &market.VolumeInfo{
			Current: volumes[len(volumes)-1],
			Average: mean(volumes),
		}
	}

	// Funding and open interest are enrichments; failures degrade to absent
	// values instead of failing the snapshot.
	snapshot.Funding = p.fetchFunding(ctx, pair)
	snapshot.OpenInterest = p.fetchOpenInterest(ctx, pair)

	return snapshot, nil
}

func (p *Provider) fetchKlines(ctx context.Context, pair, interval string, limit int) ([]Kline, error) {
	raw, err := p.client.NewKlinesService().
		Symbol(pair).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, market.NewDataFetchError(pair, "fetch klines "+interval, err)
	}
	klines, err := parseKlines(raw)
	if err != nil {
		return nil, market.NewDataFetchError(pair, "parse klines "+interval, err)
	}
	return klines, nil
}

func (p *Provider) fetchFunding(ctx context.Context, pair string) *market.FundingInfo {
	premiums, err := p.client.NewPremiumIndexService().Symbol(pair).Do(ctx)
	if err != nil || len(premiums) == 0 {
		logx.WithContext(ctx).Slowf("funding rate for %s unavailable: %v", pair, err)
		return nil
	}
	rate, err := strconv.ParseFloat(premiums[0].LastFundingRate, 64)
	if err != nil || rate == 0 {
		return nil
	}
	return &market.FundingInfo{Rate: rate}
}

func (p *Provider) fetchOpenInterest(ctx context.Context, pair string) *market.OpenInterestInfo {
	oi, err := p.client.NewGetOpenInterestService().Symbol(pair).Do(ctx)
	if err != nil {
		logx.WithContext(ctx).Slowf("open interest for %s unavailable: %v", pair, err)
		return nil
	}
	latest, err := strconv.ParseFloat(oi.OpenInterest, 64)
	if err != nil || latest == 0 {
		return nil
	}
	// The REST endpoint only reports the current value; use it for the
	// average as well until historical aggregation is wired in.
	return &market.OpenInterestInfo{Latest: latest, Average: latest}
}

type indicatorSnapshot struct {
	ema20      float64
	ema50      float64
	macd       float64
	rsi7       float64
	rsi14      float64
	atr3       float64
	atr14      float64
	bollUpper  float64
	bollMiddle float64
	bollLower  float64
	stochK     float64
	stochD     float64
	adx        float64
	plusDI     float64
	minusDI    float64
}

func buildIntradaySeries(klines []Kline) (*market.SeriesBundle, *indicatorSnapshot) {
	if len(klines) == 0 {
		return nil, nil
	}
	closes := extractCloses(klines)
	volumes := extractVolumes(klines)
	ranges := convertForRange(klines)

	ema20 := indicators.EMA(closes, 20)
	macd, _, _ := indicators.MACD(closes)
	rsi7 := indicators.RSI(closes, 7)
	rsi14 := indicators.RSI(closes, 14)
	bollUpper, bollMiddle, bollLower := indicators.Bollinger(closes, 20, 2)
	stochK, stochD := indicators.Stochastic(ranges, 14, 3)
	adx, plusDI, minusDI := indicators.ADX(ranges, 14)

	series := &market.SeriesBundle{
		Prices: lastN(closes, intradaySeriesLength),
		EMA:    map[string][]float64{"EMA20": lastN(ema20, intradaySeriesLength)},
		MACD:   lastN(macd, intradaySeriesLength),
		RSI: map[string][]float64{
			"RSI7":  lastN(rsi7, intradaySeriesLength),
			"RSI14": lastN(rsi14, intradaySeriesLength),
		},
		Volume: lastN(volumes, intradaySeriesLength),
	}

	snapshot := &indicatorSnapshot{
		ema20:      latestNonNaN(ema20),
		macd:       latestNonNaN(macd),
		rsi7:       latestNonNaN(rsi7),
		rsi14:      latestNonNaN(rsi14),
		bollUpper:  latestNonNaN(bollUpper),
		bollMiddle: latestNonNaN(bollMiddle),
		bollLower:  latestNonNaN(bollLower),
		stochK:     latestNonNaN(stochK),
		stochD:     latestNonNaN(stochD),
		adx:        latestNonNaN(adx),
		plusDI:     latestNonNaN(plusDI),
		minusDI:    latestNonNaN(minusDI),
	}
	return series, snapshot
}

func buildLongerSeries(klines []Kline) (*market.SeriesBundle, *indicatorSnapshot) {
	if len(klines) == 0 {
		return nil, nil
	}
	closes := extractCloses(klines)
	volumes := extractVolumes(klines)
	ranges := convertForRange(klines)

	ema20 := indicators.EMA(closes, 20)
	ema50 := indicators.EMA(closes, 50)
	macd, _, _ := indicators.MACD(closes)
	rsi14 := indicators.RSI(closes, 14)
	atr3 := indicators.ATR(ranges, 3)
	atr14 := indicators.ATR(ranges, 14)

	series := &market.SeriesBundle{
		Prices: lastN(closes, intradaySeriesLength),
		EMA: map[string][]float64{
			"EMA20": lastN(ema20, intradaySeriesLength),
			"EMA50": lastN(ema50, intradaySeriesLength),
		},
		MACD: lastN(macd, intradaySeriesLength),
		RSI: map[string][]float64{
			"RSI14": lastN(rsi14, intradaySeriesLength),
		},
		ATR: map[string][]float64{
			"ATR3":  lastN(atr3, intradaySeriesLength),
			"ATR14": lastN(atr14, intradaySeriesLength),
		},
		Volume: lastN(volumes, intradaySeriesLength),
	}

	snapshot := &indicatorSnapshot{
		ema20: latestNonNaN(ema20),
		ema50: latestNonNaN(ema50),
		macd:  latestNonNaN(macd),
		rsi14: latestNonNaN(rsi14),
		atr3:  latestNonNaN(atr3),
		atr14: latestNonNaN(atr14),
	}
	return series, snapshot
}

func assembleIndicators(intraday, longer *indicatorSnapshot) market.IndicatorInfo {
	ema := make(map[string]float64)
	rsi := make(map[string]float64)
	atr := make(map[string]float64)

	info := market.IndicatorInfo{EMA: ema, RSI: rsi, ATR: atr}

	if intraday != nil {
		putNonNaN(ema, "EMA20", intraday.ema20)
		putNonNaN(rsi, "RSI7", intraday.rsi7)
		putNonNaN(rsi, "RSI14", intraday.rsi14)
		if !math.IsNaN(intraday.macd) {
			info.MACD = intraday.macd
		}
		if !math.IsNaN(intraday.bollMiddle) {
			info.Bollinger = &market.BollingerInfo{
				Upper:  intraday.bollUpper,
				Middle: intraday.bollMiddle,
				Lower:  intraday.bollLower,
			}
		}
		if !math.IsNaN(intraday.stochK) && !math.IsNaN(intraday.stochD) {
			info.Stochastic = &market.StochasticInfo{K: intraday.stochK, D: intraday.stochD}
		}
		if !math.IsNaN(intraday.adx) {
			info.Trend = &market.TrendInfo{
				ADX:     intraday.adx,
				PlusDI:  intraday.plusDI,
				MinusDI: intraday.minusDI,
			}
		}
	}
	if longer != nil {
		putNonNaN(ema, "EMA20_Long", longer.ema20)
		putNonNaN(ema, "EMA50", longer.ema50)
		putNonNaN(rsi, "RSI14_Long", longer.rsi14)
		putNonNaN(atr, "ATR3", longer.atr3)
		putNonNaN(atr, "ATR14", longer.atr14)
		if info.MACD == 0 && !math.IsNaN(longer.macd) {
			info.MACD = longer.macd
		}
	}
	return info
}

func putNonNaN(m map[string]float64, key string, value float64) {
	if !math.IsNaN(value) {
		m[key] = value
	}
}

// calculatePriceChange returns the fractional change (0.01 == +1%).
func calculatePriceChange(currentPrice, previousPrice float64) float64 {
	if previousPrice == 0 {
		return 0
	}
	return (currentPrice - previousPrice) / previousPrice
}

func priceAt(klines []Kline, stepsBack int) float64 {
	if len(klines) == 0 || stepsBack <= 0 || len(klines) <= stepsBack {
		return 0
	}
	return klines[len(klines)-1-stepsBack].Close
}

func lastN(values []float64, count int) []float64 {
	if len(values) == 0 {
		return []float64{}
	}
	if len(values) <= count {
		return append([]float64(nil), values...)
	}
	return append([]float64(nil), values[len(values)-count:]...)
}

func latestNonNaN(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
