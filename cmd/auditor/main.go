// Command auditor checks that every business's stored aggregate matches the
// reviews behind it. With address arguments only those are checked.
// Exits 1 when any mismatch is found.
package main

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"business_reviews/internal/adapters/observability"
	"business_reviews/internal/app"
	"business_reviews/internal/ledger"
	"business_reviews/internal/shared"
	mysqlrepo "business_reviews/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	if cfg.Store != shared.StoreMySQL {
		log.Fatal().Str("store", cfg.Store).Msg("auditor needs STORE=mysql; the memory store lives only inside the API process")
	}

	log.Info().Int("workers", cfg.AuditWorkers).Msg("auditor starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	// audits never verify receipts
	svc := app.NewAuditService(ledger.New(mysqlrepo.New(db), nil), cfg.AuditWorkers)

	if addrs := os.Args[1:]; len(addrs) > 0 {
		os.Exit(auditSome(ctx, svc, addrs, cfg.AuditWorkers))
	}

	sum, err := svc.AuditAll(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("audit failed")
	}
	if len(sum.Mismatches) > 0 {
		os.Exit(1)
	}
}

func auditSome(ctx context.Context, svc *app.AuditService, addrs []string, workers int) int {
	sem := semaphore.NewWeighted(int64(max(workers, 1)))
	var (
		wg  sync.WaitGroup
		bad atomic.Int32
	)

	for _, addr := range addrs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			defer sem.Release(1)

			rep, err := svc.AuditOne(ctx, address)
			if err != nil {
				log.Warn().Str("address", address).Err(err).Msg("audit failed")
				bad.Add(1)
				return
			}
			if !rep.Consistent() {
				bad.Add(1)
				return
			}
			log.Info().Str("address", address).Msg("audit ok")
		}(addr)
	}

	wg.Wait()
	log.Info().Int("checked", len(addrs)).Int32("failed", bad.Load()).Msg("audit completed")
	if bad.Load() > 0 {
		return 1
	}
	return 0
}
