package binance

import (
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"

	"quantra/pkg/market/indicators"
)

// Kline is a parsed OHLCV candlestick.
type Kline struct {
	OpenTime  int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime int64
}

func parseKlines(raw []*futures.Kline) ([]Kline, error) {
	out := make([]Kline, 0, len(raw))
	for i, k := range raw {
		parsed, err := parseKline(k)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

func parseKline(k *futures.Kline) (Kline, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("parse open %q: %w", k.Open, err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("parse high %q: %w", k.High, err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("parse low %q: %w", k.Low, err)
	}
	closePx, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("parse close %q: %w", k.Close, err)
	}
	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return Kline{}, fmt.Errorf("parse volume %q: %w", k.Volume, err)
	}
	return Kline{
		OpenTime:  k.OpenTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
		CloseTime: k.CloseTime,
	}, nil
}

func extractCloses(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

func extractVolumes(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Volume
	}
	return out
}

func convertForRange(klines []Kline) []indicators.Kline {
	out := make([]indicators.Kline, len(klines))
	for i, k := range klines {
		out[i] = indicators.Kline{
			High:  k.High,
			Low:   k.Low,
			Close: k.Close,
		}
	}
	return out
}
