package svc

import (
	"context"
	"log"

	"quantra/internal/config"
	"quantra/internal/store"
	exchangepkg "quantra/pkg/exchange"
	_ "quantra/pkg/exchange/binance"
	_ "quantra/pkg/exchange/sim"
	executorpkg "quantra/pkg/executor"
	llmpkg "quantra/pkg/llm"
	managerpkg "quantra/pkg/manager"
	marketpkg "quantra/pkg/market"
	_ "quantra/pkg/market/binance"
)

type ServiceContext struct {
	Config config.Config

	LLMConfig *llmpkg.Config
	LLMClient llmpkg.LLMClient

	ExecutorConfig *executorpkg.Config

	ExchangeConfig    *exchangepkg.Config
	ExchangeProviders map[string]exchangepkg.Provider
	DefaultExchange   exchangepkg.Provider

	MarketConfig    *marketpkg.Config
	MarketProviders map[string]marketpkg.Provider
	DefaultMarket   marketpkg.Provider

	Store   store.TradeStore
	Manager *managerpkg.Manager
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	if c.LLM.Value != nil {
		svc.LLMConfig = c.LLM.Value
		client, err := llmpkg.NewClient(c.LLM.Value)
		if err != nil {
			log.Fatalf("failed to build llm client: %v", err)
		}
		svc.LLMClient = client
	}

	if c.Executor.Value != nil {
		svc.ExecutorConfig = c.Executor.Value
	}

	if c.Exchange.Value != nil {
		exchangeCfg := c.Exchange.Value
		// Test environments never touch live endpoints.
		if c.IsTestEnv() {
			for _, provider := range exchangeCfg.Providers {
				provider.Testnet = true
			}
		}
		providers, err := exchangeCfg.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build exchange providers: %v", err)
		}
		svc.ExchangeConfig = exchangeCfg
		svc.ExchangeProviders = providers
		if exchangeCfg.Default != "" {
			svc.DefaultExchange = providers[exchangeCfg.Default]
		}
	}

	if c.Market.Value != nil {
		marketCfg := c.Market.Value
		providers, err := marketCfg.BuildProviders()
		if err != nil {
			log.Fatalf("failed to build market providers: %v", err)
		}
		svc.MarketConfig = marketCfg
		svc.MarketProviders = providers
		if marketCfg.Default != "" {
			svc.DefaultMarket = providers[marketCfg.Default]
		}
	}

	if c.Postgres.DSN != "" {
		pg := store.NewPostgres(c.Postgres.DSN)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("failed to ensure store schema: %v", err)
		}
		svc.Store = pg
	} else {
		svc.Store = store.NewMemory()
	}

	if c.Manager.Value != nil {
		if svc.LLMClient == nil {
			log.Fatalf("manager config requires an llm section")
		}
		if svc.ExecutorConfig == nil {
			log.Fatalf("manager config requires an executor section")
		}
		mgr, err := managerpkg.NewManager(c.Manager.Value, managerpkg.Dependencies{
			Exchanges:     svc.ExchangeProviders,
			Markets:       svc.MarketProviders,
			LLM:           svc.LLMClient,
			Executor:      svc.ExecutorConfig,
			Store:         svc.Store,
			Plans:         svc.Store,
			Conversations: svc.Store,
		})
		if err != nil {
			log.Fatalf("failed to build manager: %v", err)
		}
		svc.Manager = mgr
	}

	return svc
}
