// Command gateway runs the market-data gateway: it polls the configured
// upstream provider for realtime snapshots, folds them into multi-period
// bars, and serves both a push WebSocket subscription feed and a cached
// HTTP history endpoint. Startup wiring and graceful shutdown follow the
// example corpus's chi http.Server pattern.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/yitech/barstream/internal/bar"
	"github.com/yitech/barstream/internal/bridge"
	"github.com/yitech/barstream/internal/cache"
	"github.com/yitech/barstream/internal/clock"
	"github.com/yitech/barstream/internal/config"
	"github.com/yitech/barstream/internal/history"
	"github.com/yitech/barstream/internal/httpapi"
	"github.com/yitech/barstream/internal/hub"
	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/poller"
	"github.com/yitech/barstream/internal/provider"
	"github.com/yitech/barstream/internal/provider/simfeed"
	"github.com/yitech/barstream/internal/provider/vendorfeed"
	"github.com/yitech/barstream/internal/wsapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("load config")
	}

	logger := newLogger(cfg.LogFormat)
	logger.Info().Str("provider_backend", cfg.ProviderBackend).Msg("starting gateway")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("load timezone")
	}

	clk, err := clock.New(loc, cfg.TradingSessions, cfg.SpecialTradingSessions, clock.ParseClosedDates(cfg.ClosedDates))
	if err != nil {
		logger.Fatal().Err(err).Msg("build trading clock")
	}

	var inner provider.Provider
	switch cfg.ProviderBackend {
	case "vendorfeed":
		if cfg.VendorfeedBaseURL == "" {
			logger.Fatal().Msg("PROVIDER_BACKEND=vendorfeed requires VENDORFEED_BASE_URL")
		}
		inner = vendorfeed.New(vendorfeed.Config{BaseURL: cfg.VendorfeedBaseURL})
	default:
		inner = simfeed.New(loc, simfeed.DefaultSymbols())
	}
	prov := bridge.New(inner, 4)

	builder := bar.New(loc, model.DefaultPeriods)
	logger.Info().Strs("periods", periodNames(model.DefaultPeriods)).Msg("bar periods configured")
	h := hub.New(logger, cfg.MaxActiveSymbols)

	pollerLogger := logger.With().Str("component", "poller").Logger()
	p := poller.New(prov, builder, h, clk, poller.Config{
		SnapshotPollInterval: cfg.SnapshotPollInterval,
		IdleBackoff:          cfg.IdleBackoff,
	}, pollerLogger,
		func(ev model.BarEvent) { wsapi.BroadcastBar(h, ev) },
		func(message, code, level string) { wsapi.BroadcastStatus(h, message, code, level) },
	)

	var c cache.Cache
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	switch cfg.CacheBackend {
	case "redis":
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis cache")
		}
		defer redisCache.Close()
		c = redisCache
	default:
		c = cache.NewMemory()
	}

	agg := history.New(prov, clk)

	router := chi.NewRouter()
	router.Mount("/", httpapi.NewRouter(httpapi.Deps{
		Provider:        prov,
		History:         agg,
		Cache:           c,
		Clock:           clk,
		Poller:          p,
		CacheBackend:    cfg.CacheBackend,
		HistoryMaxLimit: cfg.HistoryMaxLimit,
		CORSOrigins:     cfg.CORSAllowOrigins,
		Logger:          logger,
	}))
	wsLogger := logger.With().Str("component", "wsapi").Logger()
	router.Get("/ws", wsapi.Handler(h, cfg.WSPingInterval, wsLogger))

	p.Start(ctx)
	defer p.Stop()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server forced shutdown")
	}
	p.Stop()
	logger.Info().Msg("stopped gracefully")
}

func newLogger(format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// periodNames is a small helper kept for log messages that want to report
// the configured bar periods in a stable order.
func periodNames(periods []model.Period) []string {
	names := make([]string, 0, len(periods))
	for _, p := range periods {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}
