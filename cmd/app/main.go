// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onepay-payment-adapter/internal/config"
	"onepay-payment-adapter/internal/domain/model"
	"onepay-payment-adapter/internal/infra/adapters/notify"
	"onepay-payment-adapter/internal/infra/adapters/onepay"
	pg "onepay-payment-adapter/internal/infra/db/postgres"
	"onepay-payment-adapter/internal/infra/logging"
	"onepay-payment-adapter/internal/infra/metrics"
	red "onepay-payment-adapter/internal/infra/redis"
	"onepay-payment-adapter/internal/infra/sched"
	"onepay-payment-adapter/internal/infra/web"
	"onepay-payment-adapter/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, no redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	txRepo := pg.NewTransactionRepo(pool)
	acqRepo := pg.NewAcquirerRepo(pool)
	tm := pg.NewTxManager(pool)

	// Seed configuration-declared acquirers.
	for _, a := range cfg.Acquirers {
		acq := &model.AcquirerConfig{
			ID:              a.ID,
			MerchantAccount: a.MerchantAccount,
			AccessCode:      a.AccessCode,
			SecretHash:      a.SecretHash,
			Scheme:          model.SignatureScheme(a.Scheme),
			Environment:     model.Environment(a.Environment),
			Locale:          a.Locale,
			User:            a.User,
			Password:        a.Password,
		}
		if err := acq.Validate(); err != nil {
			log.Fatalf("acquirer %q: %v", a.ID, err)
		}
		if err := acqRepo.Upsert(ctx, nil, acq); err != nil {
			log.Fatalf("seed acquirer %q: %v", a.ID, err)
		}
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Gateway ----
	queryClient := onepay.NewQueryClient(logger)
	gateway, err := onepay.NewGateway(cfg.Server.CallbackURL, queryClient)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}
	notifier := notify.NewNoopNotifier(logger)

	// ---- Use cases ----
	payUC := usecase.NewPaymentUseCase(txRepo, acqRepo, gateway, logger)
	notifUC := usecase.NewNotificationUseCase(txRepo, acqRepo, gateway, tm, locker, notifier, cfg.Redis.LockTTL, logger)

	// ---- Reconciler ----
	reconciler := sched.NewReconciler(notifUC, txRepo, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP ----
	metrics.MustRegister()
	server := web.NewServer(payUC, notifUC, cfg.Server.ProcessURL, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
}
