// Command agent runs the autonomous trading loop without the HTTP surface:
// every configured trader decides on its own cadence, and account equity is
// snapshotted on the monitoring interval.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"quantra/internal/config"
	"quantra/internal/svc"
	managerpkg "quantra/pkg/manager"
)

var configFile = flag.String("f", "etc/quantra.yaml", "the config file")

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg := config.MustLoad(*configFile)
	serviceCtx := svc.NewServiceContext(*cfg)
	if serviceCtx.Manager == nil {
		log.Fatal("[agent] no manager section configured")
	}
	managerCfg := cfg.Manager.Value

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("[agent] starting %d trader(s), monitoring every %s",
		len(managerCfg.Traders), managerCfg.Monitoring.UpdateInterval)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		serviceCtx.Manager.RunTradingLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runEquityMonitor(ctx, serviceCtx, managerCfg)
	}()

	<-ctx.Done()
	log.Println("[agent] shutting down...")
	serviceCtx.Manager.Stop()
	wg.Wait()
	log.Println("[agent] stopped")
}

// runEquityMonitor snapshots every trader's account on the monitoring
// interval so the equity curve has points between decision cycles.
func runEquityMonitor(ctx context.Context, serviceCtx *svc.ServiceContext, managerCfg *managerpkg.Config) {
	ticker := time.NewTicker(managerCfg.Monitoring.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range managerCfg.TraderIDs() {
				snapshotEquity(ctx, serviceCtx, id, now)
			}
		}
	}
}

func snapshotEquity(ctx context.Context, serviceCtx *svc.ServiceContext, traderID string, now time.Time) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	snapshot, err := serviceCtx.Manager.AccountSnapshot(callCtx, traderID)
	if err != nil {
		log.Printf("[agent] equity snapshot for %s: %v", traderID, err)
		return
	}
	err = serviceCtx.Store.RecordEquity(callCtx, managerpkg.EquitySnapshot{
		TraderID:         traderID,
		TotalEquity:      snapshot.TotalEquity,
		AvailableBalance: snapshot.AvailableBalance,
		TotalReturnPct:   snapshot.TotalReturnPct,
		SharpeRatio:      snapshot.SharpeRatio,
		PositionCount:    len(snapshot.Positions),
		Timestamp:        now,
	})
	if err != nil {
		log.Printf("[agent] record equity for %s: %v", traderID, err)
	}
}
