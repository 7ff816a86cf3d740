package market

import (
	"context"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"
)

// All fetches snapshots for every symbol concurrently. A failure for one
// symbol excludes it from the result map without failing the others; each
// failure is logged so the cycle can proceed with whatever data arrived.
func All(ctx context.Context, provider Provider, symbols []string) map[string]*Snapshot {
	result := make(map[string]*Snapshot, len(symbols))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			snapshot, err := provider.Snapshot(ctx, symbol)
			if err != nil {
				logx.WithContext(ctx).Errorf("market snapshot for %s failed: %v", symbol, err)
				return
			}
			mu.Lock()
			result[symbol] = snapshot
			mu.Unlock()
		}(symbol)
	}

	wg.Wait()
	return result
}
