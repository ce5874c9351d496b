package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/sawpanic/optiondesk/internal/application"
	"github.com/sawpanic/optiondesk/internal/config"
	"github.com/sawpanic/optiondesk/internal/data/cache"
	"github.com/sawpanic/optiondesk/internal/metrics"
	"github.com/sawpanic/optiondesk/internal/persistence/postgres"
	"github.com/sawpanic/optiondesk/internal/providers"
)

var (
	flagAccountValue float64
	flagIndexLevel   float64
	flagIndexWS      string
	flagRedisAddr    string
	flagPostgresDSN  string
	flagSimSeed      int64
)

// addProviderFlags registers the shared provider wiring flags.
func addProviderFlags(fs *pflag.FlagSet) {
	fs.Float64Var(&flagAccountValue, "account-value", 150_000, "Simulated account value in dollars")
	fs.Float64Var(&flagIndexLevel, "index", 17.5, "Static volatility index level (ignored with --index-ws)")
	fs.StringVar(&flagIndexWS, "index-ws", "", "Websocket URL of a streaming volatility index feed")
	fs.StringVar(&flagRedisAddr, "redis", "", "Redis address for the quote cache (disabled when empty)")
	fs.StringVar(&flagPostgresDSN, "postgres", "", "Postgres DSN for snapshot persistence (disabled when empty)")
	fs.Int64Var(&flagSimSeed, "sim-seed", 42, "Seed for the simulated market data walk")
}

func loadConfig() (config.Config, error) {
	if _, err := os.Stat(flagConfig); err != nil {
		log.Warn().Str("path", flagConfig).Msg("config file not found, using built-in defaults")
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(flagConfig)
}

// buildEngine wires providers, optional redis quote cache, optional
// postgres snapshot store and the metrics registry into an engine.
func buildEngine(ctx context.Context, cfg config.Config) (*application.Engine, *metrics.Registry, func(), error) {
	var cleanup []func()
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	var market providers.MarketDataProvider = providers.NewSimMarketData(flagSimSeed)
	market = providers.NewGuardedMarketData(market, providers.DefaultBreakerConfig("market"))

	if flagRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: flagRedisAddr})
		cleanup = append(cleanup, func() { _ = rdb.Close() })
		market = cache.NewQuoteCache(rdb, market, cfg.Engine.QuoteTTL)
	}

	var index providers.VolatilityIndexProvider
	if flagIndexWS != "" {
		stream, err := providers.DialIndexStream(ctx, flagIndexWS, 30*time.Second)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("index stream: %w", err)
		}
		cleanup = append(cleanup, func() { _ = stream.Close() })
		index = providers.NewGuardedIndex(stream, providers.DefaultBreakerConfig("index"))
	} else {
		index = providers.NewStaticIndex(flagIndexLevel)
	}

	account := providers.NewStaticAccount(flagAccountValue, flagAccountValue*0.6)
	gateway := providers.NewPaperGateway()

	mreg := metrics.NewRegistry()

	deps := application.Deps{
		Market:  market,
		Account: account,
		Index:   index,
		Gateway: gateway,
		Metrics: mreg,
	}

	if flagPostgresDSN != "" {
		db, err := sqlx.Open("postgres", flagPostgresDSN)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		cleanup = append(cleanup, func() { _ = db.Close() })
		deps.Snapshots = postgres.NewSnapshotRepo(db, 5*time.Second)
	}

	engine, err := application.New(cfg, deps)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}

	if err := engine.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("snapshot restore failed, starting empty")
	}
	return engine, mreg, closeAll, nil
}
