package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls   atomic.Int64
	failFor map[string]bool
}

func (p *stubProvider) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	p.calls.Add(1)
	if p.failFor[symbol] {
		return nil, NewDataFetchError(symbol, "venue unreachable", errors.New("boom"))
	}
	return &Snapshot{Symbol: symbol, Price: PriceInfo{Last: 100}}, nil
}

func (p *stubProvider) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return 100, nil
}

func (p *stubProvider) ListAssets(ctx context.Context) ([]Asset, error) {
	return nil, nil
}

func TestAllFetchesEverySymbol(t *testing.T) {
	provider := &stubProvider{}
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	result := All(context.Background(), provider, symbols)

	require.Len(t, result, 3)
	assert.Equal(t, int64(3), provider.calls.Load())
	for _, s := range symbols {
		require.Contains(t, result, s)
		assert.Equal(t, s, result[s].Symbol)
	}
}

func TestAllIsolatesFailures(t *testing.T) {
	provider := &stubProvider{failFor: map[string]bool{"ETHUSDT": true}}
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}

	result := All(context.Background(), provider, symbols)

	require.Len(t, result, 2)
	assert.Contains(t, result, "BTCUSDT")
	assert.Contains(t, result, "SOLUSDT")
	assert.NotContains(t, result, "ETHUSDT")
	// The failing symbol must not short-circuit the others.
	assert.Equal(t, int64(3), provider.calls.Load())
}

func TestAllEmptySymbolList(t *testing.T) {
	provider := &stubProvider{}
	result := All(context.Background(), provider, nil)
	assert.Empty(t, result)
}

func TestDataFetchErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := NewDataFetchError("BTCUSDT", "fetch klines", inner)

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "BTCUSDT")
	assert.Contains(t, err.Error(), "fetch klines")
}
