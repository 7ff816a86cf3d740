package exchange

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopProvider struct{}

func (nopProvider) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	return &OrderResult{}, nil
}
func (nopProvider) CancelAllOrders(ctx context.Context, symbol string) error { return nil }
func (nopProvider) GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	return nil, nil
}
func (nopProvider) GetClosedOrders(ctx context.Context, symbol string, limit int) ([]OrderResult, error) {
	return nil, nil
}
func (nopProvider) GetPositions(ctx context.Context, symbols []string) ([]Position, error) {
	return nil, nil
}
func (nopProvider) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }
func (nopProvider) SetMarginMode(ctx context.Context, symbol string, mode MarginMode) error {
	return nil
}
func (nopProvider) GetBalance(ctx context.Context) (*Balance, error) { return &Balance{}, nil }

func registerNopBuilder(t *testing.T, typeName string) {
	t.Helper()
	RegisterProvider(typeName, func(name string, cfg *ProviderConfig) (Provider, error) {
		return nopProvider{}, nil
	})
}

func TestLoadConfigFromReader(t *testing.T) {
	registerNopBuilder(t, "nop")

	yaml := `
default: paper
providers:
  paper:
    type: nop
    initial_balance: 25000
    timeout: 10s
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "paper", cfg.Default)
	require.Contains(t, cfg.Providers, "paper")
	assert.Equal(t, "nop", cfg.Providers["paper"].Type)
	assert.InDelta(t, 25000.0, cfg.Providers["paper"].InitialBalance, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Providers["paper"].Timeout)
}

func TestLoadConfigRejectsUnknownType(t *testing.T) {
	yaml := `
providers:
  live:
    type: no-such-venue
`
	_, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestLoadConfigRejectsNegativeBalance(t *testing.T) {
	registerNopBuilder(t, "nop")

	yaml := `
providers:
  paper:
    type: nop
    initial_balance: -1
`
	_, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial_balance")
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	registerNopBuilder(t, "nop")
	t.Setenv("VENUE_API_KEY", "k-456")

	yaml := `
providers:
  live:
    type: nop
    api_key: ${VENUE_API_KEY}
`
	cfg, err := LoadConfigFromReader(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.Equal(t, "k-456", cfg.Providers["live"].APIKey)
}

func TestGetProviderFallsBackToDefault(t *testing.T) {
	registerNopBuilder(t, "nop")

	cfg := &Config{
		Default: "paper",
		Providers: map[string]*ProviderConfig{
			"paper": {Type: "nop"},
		},
	}
	providers, err := cfg.BuildProviders()
	require.NoError(t, err)

	provider, err := cfg.GetProvider(providers, "")
	require.NoError(t, err)
	assert.NotNil(t, provider)

	_, err = cfg.GetProvider(providers, "missing")
	require.Error(t, err)
}
