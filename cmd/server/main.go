package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kjannette/ape-dashboard/internal/api"
	"github.com/kjannette/ape-dashboard/internal/config"
	"github.com/kjannette/ape-dashboard/internal/dashboard"
	"github.com/kjannette/ape-dashboard/internal/db"
	"github.com/kjannette/ape-dashboard/internal/logger"
	"github.com/kjannette/ape-dashboard/internal/metrics"
	"github.com/kjannette/ape-dashboard/internal/notifications"
	"github.com/kjannette/ape-dashboard/internal/pricing"
	"github.com/kjannette/ape-dashboard/internal/repository"
	"github.com/kjannette/ape-dashboard/internal/solana"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const banner = `
╔══════════════════════════════════════╗
║       APE Trading Dashboard v1.0     ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	logger.Init("ape-dashboard", cfg.LogLevel)
	defer logger.Sync()
	log := logger.Named("main")

	metrics.MustRegister()

	// Database
	log.Info("connecting to database",
		zap.String("host", cfg.DBHost), zap.Int("port", cfg.DBPort), zap.String("name", cfg.DBName))
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer func() {
		pool.Close()
		log.Info("connection pool closed")
	}()

	if err := db.TestConnection(pool); err != nil {
		log.Fatal("database test query failed", zap.Error(err))
	}
	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatal("schema migration failed", zap.Error(err))
	}

	// Repos
	tradeRepo := repository.NewTradeRepo(pool)
	priceRepo := repository.NewPriceRepo(pool)

	// Pricing
	keys := pricing.Keys{Birdeye: cfg.BirdeyeAPIKey, CoinGecko: cfg.CoinGeckoAPIKey}
	cache := pricing.NewCache(pricing.NewProvider(cfg.PriceProvider, keys), pricing.WithTTL(cfg.PriceCacheTTL))

	deps := dashboard.Deps{
		Store:    tradeRepo,
		Prices:   cache,
		SOL:      pricing.NewCoinGecko(cfg.CoinGeckoAPIKey),
		Notifier: notifications.NewSender(cfg.WebhookURL, cfg.BotName),
	}
	if cfg.RecordPriceHistory {
		deps.History = priceRepo
	}

	if cfg.SolanaRPCEndpoint != "" && cfg.WalletAddress != "" {
		balance, err := solana.NewBalanceClient(cfg.SolanaRPCEndpoint, cfg.WalletAddress)
		if err != nil {
			log.Warn("wallet balance disabled", zap.Error(err))
		} else {
			defer balance.Close()
			deps.Balance = balance
		}
	}

	ctrl := dashboard.New(deps, dashboard.Options{
		RefreshInterval: cfg.PriceRefreshInterval,
		Realtime:        cfg.RealtimeEnabled,
		RealtimeLimit:   cfg.RealtimeLimit,
		RecentLimit:     cfg.RecentTradesLimit,
		ExplorerTxURL:   cfg.ExplorerTxURL,
		Location:        time.Local,
	})

	srv := api.NewServer(api.Deps{
		Dashboard: ctrl,
		Trades:    tradeRepo,
		Prices:    cache,
		History:   priceRepo,
		DB:        pool,
		Keys:      keys,
	}, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info("all services started")

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", zap.Error(err))
	}
	log.Info("shutdown complete")
}
