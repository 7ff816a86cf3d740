package exchange

import "context"

// Provider exposes trading capabilities in a venue-agnostic fashion.
type Provider interface {
	// Order management.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
	CancelAllOrders(ctx context.Context, symbol string) error
	GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error)
	// GetClosedOrders returns recently filled or cancelled orders, newest
	// first, capped at limit.
	GetClosedOrders(ctx context.Context, symbol string, limit int) ([]OrderResult, error)

	// Position management.
	GetPositions(ctx context.Context, symbols []string) ([]Position, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode MarginMode) error

	// Account information.
	GetBalance(ctx context.Context) (*Balance, error)
}
