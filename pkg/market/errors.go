package market

import "fmt"

// DataFetchError reports a venue read failure while building a snapshot.
// Auxiliary metrics (open interest, funding) never produce this error; it is
// reserved for failures that make the snapshot itself unusable, such as
// missing candle history.
type DataFetchError struct {
	Symbol string
	Reason string
	Err    error
}

func (e *DataFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market data for %s: %s: %v", e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("market data for %s: %s", e.Symbol, e.Reason)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// NewDataFetchError wraps a venue failure for the given symbol.
func NewDataFetchError(symbol, reason string, err error) *DataFetchError {
	return &DataFetchError{Symbol: symbol, Reason: reason, Err: err}
}
