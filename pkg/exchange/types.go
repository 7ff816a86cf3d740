package exchange

// Core trading domain types shared across venue implementations. The shapes
// follow USDT-margined futures conventions while staying venue-agnostic so a
// simulated venue can stand in for the real one.

// Side represents order direction.
type Side string

const (
	// SideBuy executes a buy.
	SideBuy Side = "BUY"
	// SideSell executes a sell.
	SideSell Side = "SELL"
)

// Opposite returns the inverted side, used for protective orders.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType enumerates supported order types.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeLimit            OrderType = "LIMIT"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// MarginMode selects how margin is allocated for a symbol.
type MarginMode string

const (
	MarginModeIsolated MarginMode = "ISOLATED"
	MarginModeCrossed  MarginMode = "CROSSED"
)

// OrderRequest describes a normalized order. Optional fields are explicit and
// validated before reaching the venue rather than passed as loose parameter
// bags.
type OrderRequest struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Type        OrderType `json:"type"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price,omitempty"`       // Limit orders only.
	StopPrice   float64   `json:"stopPrice,omitempty"`   // Conditional orders only.
	ReduceOnly  bool      `json:"reduceOnly,omitempty"`  // Never opens or increases a position.
	TimeInForce string    `json:"timeInForce,omitempty"` // Limit orders, defaults to GTC.
}

// OrderResult captures the venue response after an order submission.
type OrderResult struct {
	OrderID          int64     `json:"orderId"`
	Symbol           string    `json:"symbol"`
	Side             Side      `json:"side"`
	Type             OrderType `json:"type"`
	Status           string    `json:"status"`
	AvgPrice         float64   `json:"avgPrice"`
	ExecutedQuantity float64   `json:"executedQty"`
	Timestamp        int64     `json:"timestamp"`
}

// Position captures live position details. Quantity is signed: positive for
// long, negative for short.
type Position struct {
	Symbol           string  `json:"symbol"`
	Quantity         float64 `json:"quantity"`
	EntryPrice       float64 `json:"entryPrice"`
	MarkPrice        float64 `json:"markPrice"`
	LiquidationPrice float64 `json:"liquidationPrice"`
	UnrealizedPnl    float64 `json:"unrealizedPnl"`
	Leverage         int     `json:"leverage"`
	Notional         float64 `json:"notional"`
}

// Side reports the direction of the position, or "" when flat.
func (p Position) Side() Side {
	switch {
	case p.Quantity > 0:
		return SideBuy
	case p.Quantity < 0:
		return SideSell
	default:
		return ""
	}
}

// Balance summarizes the futures wallet.
type Balance struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
}

// OpenOrder describes a resting order on the venue.
type OpenOrder struct {
	OrderID    int64     `json:"orderId"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	StopPrice  float64   `json:"stopPrice"`
	ReduceOnly bool      `json:"reduceOnly"`
}
