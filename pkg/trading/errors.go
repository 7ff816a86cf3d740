package trading

import "fmt"

// InsufficientCapitalError signals an entry decision with no usable sizing
// information.
type InsufficientCapitalError struct {
	Symbol string
}

func (e *InsufficientCapitalError) Error() string {
	return fmt.Sprintf("insufficient capital: no quantity or cost specified for %s", e.Symbol)
}

// NoOpenPositionError signals a close against a flat symbol.
type NoOpenPositionError struct {
	Symbol string
}

func (e *NoOpenPositionError) Error() string {
	return fmt.Sprintf("No open position found for %s", e.Symbol)
}

// IncompatiblePositionError signals a close whose expected direction
// contradicts the live position sign.
type IncompatiblePositionError struct {
	Symbol   string
	Expected string
	Actual   string
}

func (e *IncompatiblePositionError) Error() string {
	return fmt.Sprintf("position for %s is %s, expected %s", e.Symbol, e.Actual, e.Expected)
}

// VenueRejectionError wraps an order, leverage or margin rejection. The venue
// message is carried verbatim for observability.
type VenueRejectionError struct {
	Op     string
	Symbol string
	Err    error
}

func (e *VenueRejectionError) Error() string {
	return fmt.Sprintf("venue rejected %s for %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *VenueRejectionError) Unwrap() error { return e.Err }
