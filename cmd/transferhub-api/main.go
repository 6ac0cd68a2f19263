// README: Entry point; loads config, wires services, starts HTTP server and background workers.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"transferhub/internal/config"
	httptransport "transferhub/internal/http"
	"transferhub/internal/infra"
	"transferhub/internal/logger"
	"transferhub/internal/maps"
	"transferhub/internal/modules/payment"
	"transferhub/internal/modules/pricing"
	"transferhub/internal/modules/reservation"
	"transferhub/internal/modules/settlement"
	"transferhub/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// An empty DSN selects the in-memory backend: no Postgres, no Redis,
	// no task queue. Useful for local development and demos.
	memoryMode := cfg.DB.DSN == ""

	var (
		reservationStore reservation.Store
		settlementStore  settlement.Store
		paymentStore     payment.Store
		tariffSource     pricing.TariffSource
		statusCache      *reservation.StatusCache
		taskClient       *asynq.Client
	)

	if memoryMode {
		zlog.Warn("TRH_DB_DSN not set, running with in-memory stores")
		reservationStore = reservation.NewMemStore()
		settlementStore = settlement.NewMemStore()
		paymentStore = payment.NewMemStore()
		tariffSource = pricing.StaticSource{Tariff: pricing.DefaultTariff(cfg.Pricing.Currency)}
	} else {
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			zlog.Fatal("postgres init", zap.Error(err))
		}
		defer dbPool.Close()

		redisClient := infra.NewRedis(cfg.Redis.Addr)

		reservationStore = reservation.NewPGStore(dbPool)
		settlementStore = settlement.NewPGStore(dbPool)
		paymentStore = payment.NewPGStore(dbPool)
		tariffSource = pricing.NewStore(dbPool, redisClient, pricing.DefaultTariff(cfg.Pricing.Currency))

		statusCache = reservation.NewStatusCache(redisClient, zlog)
		reservationStore.Subscribe(statusCache.HandleChange)

		taskClient = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr})
		defer func() { _ = taskClient.Close() }()
	}

	var notifier reservation.Notifier
	if cfg.AMQP.URL != "" {
		pub, err := notify.NewPublisher(cfg.AMQP.URL, zlog)
		if err != nil {
			zlog.Fatal("rabbitmq init", zap.Error(err))
		}
		defer func() { _ = pub.Close() }()
		notifier = pub
	} else {
		zlog.Warn("TRH_AMQP_URL not set, notifications are dropped")
		notifier = notify.Nop{Log: zlog}
	}

	pricingSvc := pricing.NewService(tariffSource)
	settlementSvc := settlement.NewService(settlementStore, cfg.Commission.Rate, zlog)
	reservationSvc := reservation.NewService(reservationStore, pricingSvc, settlementSvc, notifier, zlog)

	var provider payment.Provider
	if cfg.Payment.Mode == "gateway" {
		provider = payment.NewGateway(
			cfg.Payment.GatewayURL,
			cfg.Payment.MerchantID,
			cfg.Payment.Secret,
			cfg.Payment.Salt,
			time.Duration(cfg.Payment.TimeoutSeconds)*time.Second,
			zlog)
	} else {
		zlog.Info("using sandbox payment provider")
		provider = payment.Sandbox{}
	}

	var enqueuer payment.Enqueuer
	if taskClient != nil {
		enqueuer = taskClient
	}
	paymentSvc := payment.NewService(paymentStore, reservationSvc, provider, payment.Config{
		Secret:          cfg.Payment.Secret,
		Salt:            cfg.Payment.Salt,
		BankInstruction: cfg.Payment.BankInstruction,
		Expiry:          time.Duration(cfg.Payment.ExpiryMinutes) * time.Minute,
	}, enqueuer, zlog)

	if !memoryMode {
		worker := asynq.NewServer(
			asynq.RedisClientOpt{Addr: cfg.Redis.Addr},
			asynq.Config{Concurrency: 10},
		)
		mux := asynq.NewServeMux()
		mux.Handle(payment.TaskTypePaymentExpire, payment.NewExpiryHandler(paymentSvc, zlog))
		go func() {
			if err := worker.Run(mux); err != nil {
				zlog.Error("task worker stopped", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			worker.Shutdown()
		}()
	}

	var distanceSvc *maps.DistanceService
	if cfg.Maps.APIKey != "" {
		distanceSvc, err = maps.NewDistanceService(cfg.Maps.APIKey)
		if err != nil {
			zlog.Fatal("maps client init", zap.Error(err))
		}
	} else {
		zlog.Warn("TRH_MAPS_API_KEY not set, quotes fall back to great-circle distances")
	}

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Reservation: reservationSvc,
		StatusCache: statusCache,
		Payment:     paymentSvc,
		Pricing:     pricingSvc,
		Distance:    distanceSvc,
		Settlement:  settlementSvc,
		Log:         zlog,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	zlog.Info("starting http server", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("http server", zap.Error(err))
	}
}
