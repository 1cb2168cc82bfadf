package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	httpadp "rwa-lending-gateway/internal/adapter/http"
	appmw "rwa-lending-gateway/internal/adapter/middleware"
	"rwa-lending-gateway/internal/adapter/repository/mysql"
	"rwa-lending-gateway/internal/config"
	"rwa-lending-gateway/internal/domain/collateral"
	domain "rwa-lending-gateway/internal/domain/origination"
	"rwa-lending-gateway/internal/infrastructure/cache"
	"rwa-lending-gateway/internal/infrastructure/chain"
	"rwa-lending-gateway/internal/infrastructure/db"
	"rwa-lending-gateway/internal/infrastructure/logging"
	"rwa-lending-gateway/internal/infrastructure/memchain"
	"rwa-lending-gateway/internal/infrastructure/metrics"
	"rwa-lending-gateway/internal/infrastructure/scheduler"
	"rwa-lending-gateway/internal/infrastructure/wallet"
	ucOrigination "rwa-lending-gateway/internal/usecase/origination"
	ucSubmission "rwa-lending-gateway/internal/usecase/submission"
)

const (
	sessionIdle     = 30 * time.Minute
	limiterIdle     = 10 * time.Minute
	jobTimeout      = time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	module := collateral.Module{Address: cfg.ModuleAddress, Name: cfg.ModuleName}
	chainClient, signer := openChain(cfg, module, log)

	sqlDB, err := gdb.DB()
	if err != nil {
		log.WithError(err).Fatal("database handle")
	}
	checks := []httpadp.HealthCheck{{Name: "database", Check: sqlDB.PingContext}}

	var (
		guard domain.InFlightGuard    = cache.NewMemoryGuard()
		feed  domain.NotificationFeed = cache.NewMemoryFeed()
		idem  echo.MiddlewareFunc
	)
	if cfg.RedisEnabled() {
		rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			log.WithError(err).Fatal("connect redis")
		}
		defer rdb.Close()
		guard = cache.NewRedisGuard(rdb, cfg.InFlightTTL())
		feed = cache.NewRedisFeed(rdb, cfg.NotificationTTL())
		idem = appmw.Idempotency(appmw.IdempotencyConfig{
			Redis:   rdb,
			TTL:     cfg.IdempotencyTTL(),
			LockTTL: cfg.InFlightTTL(),
			Log:     log,
		})
		checks = append(checks, httpadp.HealthCheck{Name: "redis", Check: cache.Ping(rdb)})
	} else {
		log.Warn("redis disabled: in-memory guard and feed, idempotency off")
	}

	subs := ucSubmission.NewUsecase(mysql.NewSubmissionRepository(gdb), mysql.NewGormUoW(gdb), chainClient, log).
		WithGrace(cfg.ReconcileGrace)
	orig := ucOrigination.NewUsecase(ucOrigination.Deps{
		Chain:       chainClient,
		Wallet:      signer,
		Module:      module,
		Guard:       guard,
		Feed:        feed,
		Journal:     subs,
		Log:         log,
		WaitTimeout: cfg.TxWaitTimeout,
	})

	limiter := appmw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)

	sched := scheduler.New(log, jobTimeout)
	mustAdd(log, sched, "reconcile-submissions", cfg.ReconcileSpec, func(ctx context.Context) error {
		rep, err := subs.ReconcilePending(ctx)
		if err != nil {
			return err
		}
		if rep.Scanned > 0 {
			log.WithFields(logrus.Fields{
				"scanned":   rep.Scanned,
				"confirmed": rep.Confirmed,
				"failed":    rep.Failed,
				"pending":   rep.Pending,
			}).Info("reconciled submissions")
		}
		return nil
	})
	mustAdd(log, sched, "evict-sessions", "@every 5m", func(ctx context.Context) error {
		if n := orig.EvictIdle(ctx, sessionIdle); n > 0 {
			log.WithField("evicted", n).Debug("idle sessions dropped")
		}
		return nil
	})
	mustAdd(log, sched, "cleanup-rate-limiters", "@every 5m", func(context.Context) error {
		limiter.Cleanup(limiterIdle)
		return nil
	})

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(
		middleware.Logger(),
		middleware.Recover(),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}),
		appmw.Metrics(),
		limiter.Middleware(),
	)

	httpadp.Router{
		Handler:     httpadp.NewHandler(checks...),
		Origination: httpadp.NewOriginationHandler(orig, log),
		Submissions: httpadp.NewSubmissionHandler(subs, log),
		Idempotency: idem,
	}.Register(e)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	sched.Start()

	addr := ":" + cfg.AppPort
	go func() {
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	sched.Stop(ctx)
	_ = sqlDB.Close()
}

// openChain returns the node client and wallet. Memory mode serves both
// from one in-process ledger seeded with a demo collection.
func openChain(cfg *config.Config, module collateral.Module, log logrus.FieldLogger) (collateral.ChainClient, collateral.Wallet) {
	if cfg.ChainMode == config.ChainModeMemory {
		mc := memchain.New(log)
		seedDemo(mc)
		return mc, mc
	}
	client, err := chain.NewClient(chain.Config{
		BaseURL:      cfg.ChainURL,
		Module:       module,
		PollInterval: cfg.TxPollInterval,
	})
	if err != nil {
		log.WithError(err).Fatal("chain client")
	}
	signer, err := wallet.NewSigner(cfg.WalletURL, 0)
	if err != nil {
		log.WithError(err).Fatal("wallet signer")
	}
	return client, signer
}

func mustAdd(log logrus.FieldLogger, s *scheduler.Scheduler, name, spec string, job scheduler.Job) {
	if err := s.Add(name, spec, job); err != nil {
		log.WithError(err).WithField("job", name).Fatal("schedule job")
	}
}

// seedDemo gives DEMO_ACCOUNT a small collection to play with in memory mode.
func seedDemo(mc *memchain.Chain) {
	account := os.Getenv("DEMO_ACCOUNT")
	if account == "" {
		account = "0xd3e0"
	}
	mc.Seed(account, decimal.NewFromInt(25),
		collateral.Token{ID: "1", PropertyValue: decimal.NewFromInt(1000)},
		collateral.Token{ID: "2", PropertyValue: decimal.NewFromInt(2500)},
		collateral.Token{ID: "3", PropertyValue: decimal.NewFromInt(400), LockedForCollateral: true},
	)
}
