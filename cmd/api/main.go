package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "business_reviews/internal/adapters/http_server"
	"business_reviews/internal/adapters/kafka"
	"business_reviews/internal/adapters/observability"
	"business_reviews/internal/adapters/receipts"
	redisad "business_reviews/internal/adapters/redis"
	"business_reviews/internal/app"
	"business_reviews/internal/domain"
	"business_reviews/internal/ledger"
	"business_reviews/internal/shared"
	"business_reviews/internal/storage/memory"
	mysqlrepo "business_reviews/internal/storage/mysql"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	observability.Serve(cfg.MetricsAddr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := openStore(cfg)

	var verifier domain.ReceiptVerifier
	if cfg.ReceiptsBase != "" {
		rc, err := receipts.New(cfg.ReceiptsBase, cfg.ReceiptsKey, cfg.ReceiptsRPS, cfg.ReceiptsTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize receipts client")
		}
		verifier = rc
	} else {
		log.Warn().Msg("no receipts service configured; reviews that need a new receipt will be refused")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unreachable; cache calls will fail soft")
		}
		defer rc.Close()
		cache = rc
	}

	var events domain.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		p := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer p.Close()
		events = p
	}

	// deps
	l := ledger.New(store, verifier)
	q := app.NewQueryService(l, cache, cfg.CacheTTL(), cfg.MaxPageSize)
	c := app.NewCommandService(l, cache, events)

	// http
	srv := server.New(cfg.JWTSecret)
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Q: q, C: c})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Str("store", cfg.Store).Msg("API listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
	log.Info().Msg("API stopped")
}

func openStore(cfg shared.Config) domain.Store {
	if cfg.Store == shared.StoreMemory {
		log.Warn().Msg("using in-memory store; state is lost on restart")
		return memory.New()
	}
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")
	return mysqlrepo.New(db)
}
