// Package symbols holds the canonical symbol normalization used wherever a
// symbol crosses a boundary between the venue, the ledger and persistence.
package symbols

import "strings"

// DefaultQuote is the quote currency appended to bare coin tickers.
const DefaultQuote = "USDT"

var quoteSuffixes = []string{"USDT", "USDC", "BUSD", "USD"}

// Base identifies a coin independent of quote currency, e.g. "BTC".
type Base string

// BaseOf strips separators and any known quote-currency suffix from a symbol
// and returns the uppercased base coin. "btc/usdt", "BTC-USDT", "BTCUSDT"
// and "BTC" all map to Base("BTC").
func BaseOf(symbol string) Base {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "", "-", "", "_", "", ":", "").Replace(s)
	for _, quote := range quoteSuffixes {
		if len(s) > len(quote) && strings.HasSuffix(s, quote) {
			return Base(s[:len(s)-len(quote)])
		}
	}
	return Base(s)
}

// Pair returns the venue-native pair for the base with the given quote
// currency, e.g. Base("BTC").Pair("USDT") == "BTCUSDT".
func (b Base) Pair(quote string) string {
	if quote == "" {
		quote = DefaultQuote
	}
	return string(b) + strings.ToUpper(quote)
}

// String implements fmt.Stringer.
func (b Base) String() string { return string(b) }

// Normalize maps any accepted symbol spelling to the venue-native pair with
// the default quote currency. Bare tickers gain the suffix; already-suffixed
// symbols are canonicalised.
func Normalize(symbol string) string {
	return BaseOf(symbol).Pair(DefaultQuote)
}

// Equal reports whether two symbols refer to the same base coin.
func Equal(a, b string) bool {
	return BaseOf(a) == BaseOf(b)
}
