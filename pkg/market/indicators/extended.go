package indicators

import "math"

// Bollinger computes upper, middle and lower band series using a simple
// moving average and k standard deviations.
func Bollinger(prices []float64, period int, k float64) ([]float64, []float64, []float64) {
	n := len(prices)
	upper := nanSlice(n)
	middle := nanSlice(n)
	lower := nanSlice(n)
	if period <= 0 || n < period {
		return upper, middle, lower
	}

	for i := period - 1; i < n; i++ {
		window := prices[i-period+1 : i+1]
		if hasNaN(window) {
			continue
		}
		mean := sum(window) / float64(period)
		var variance float64
		for _, v := range window {
			variance += (v - mean) * (v - mean)
		}
		std := math.Sqrt(variance / float64(period))

		middle[i] = mean
		upper[i] = mean + k*std
		lower[i] = mean - k*std
	}
	return upper, middle, lower
}

// Stochastic computes the %K and %D oscillator series. %K compares the close
// to the high/low range over kPeriod candles; %D is an SMA of %K over dPeriod.
func Stochastic(klines []Kline, kPeriod, dPeriod int) ([]float64, []float64) {
	n := len(klines)
	kSeries := nanSlice(n)
	dSeries := nanSlice(n)
	if kPeriod <= 0 || dPeriod <= 0 || n < kPeriod {
		return kSeries, dSeries
	}

	for i := kPeriod - 1; i < n; i++ {
		highest := math.Inf(-1)
		lowest := math.Inf(1)
		for j := i - kPeriod + 1; j <= i; j++ {
			highest = math.Max(highest, klines[j].High)
			lowest = math.Min(lowest, klines[j].Low)
		}
		if highest == lowest {
			kSeries[i] = 50.0
			continue
		}
		kSeries[i] = 100.0 * (klines[i].Close - lowest) / (highest - lowest)
	}

	for i := range dSeries {
		if i < dPeriod-1 {
			continue
		}
		window := kSeries[i-dPeriod+1 : i+1]
		if hasNaN(window) {
			continue
		}
		dSeries[i] = sum(window) / float64(dPeriod)
	}
	return kSeries, dSeries
}

// ADX computes the Average Directional Index along with the +DI and -DI
// series using Wilder smoothing.
func ADX(klines []Kline, period int) ([]float64, []float64, []float64) {
	n := len(klines)
	adx := nanSlice(n)
	plusDI := nanSlice(n)
	minusDI := nanSlice(n)
	if period <= 0 || n <= period {
		return adx, plusDI, minusDI
	}

	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	for i := 1; i < n; i++ {
		highLow := klines[i].High - klines[i].Low
		highClose := math.Abs(klines[i].High - klines[i-1].Close)
		lowClose := math.Abs(klines[i].Low - klines[i-1].Close)
		tr[i] = math.Max(highLow, math.Max(highClose, lowClose))

		upMove := klines[i].High - klines[i-1].High
		downMove := klines[i-1].Low - klines[i].Low
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothTR := sum(tr[1 : period+1])
	smoothPlus := sum(plusDM[1 : period+1])
	smoothMinus := sum(minusDM[1 : period+1])

	dx := nanSlice(n)
	for i := period; i < n; i++ {
		if i > period {
			smoothTR = smoothTR - smoothTR/float64(period) + tr[i]
			smoothPlus = smoothPlus - smoothPlus/float64(period) + plusDM[i]
			smoothMinus = smoothMinus - smoothMinus/float64(period) + minusDM[i]
		}
		if smoothTR == 0 {
			continue
		}
		pdi := 100.0 * smoothPlus / smoothTR
		mdi := 100.0 * smoothMinus / smoothTR
		plusDI[i] = pdi
		minusDI[i] = mdi
		if pdi+mdi == 0 {
			dx[i] = 0
			continue
		}
		dx[i] = 100.0 * math.Abs(pdi-mdi) / (pdi + mdi)
	}

	// ADX seeds with the average DX over the first full window, then Wilder-smooths.
	seedEnd := 2 * period
	if seedEnd >= n {
		return adx, plusDI, minusDI
	}
	seedWindow := dx[period:seedEnd]
	if hasNaN(seedWindow) {
		return adx, plusDI, minusDI
	}
	adx[seedEnd-1] = sum(seedWindow) / float64(period)
	for i := seedEnd; i < n; i++ {
		if math.IsNaN(dx[i]) {
			adx[i] = adx[i-1]
			continue
		}
		adx[i] = (adx[i-1]*float64(period-1) + dx[i]) / float64(period)
	}
	return adx, plusDI, minusDI
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
