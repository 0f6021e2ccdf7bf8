package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"canteen/internal/config"
	"canteen/internal/delivery"
	"canteen/internal/events"
	httpapi "canteen/internal/http"
	"canteen/internal/logging"
	"canteen/internal/metrics"
	"canteen/internal/mongo"
	"canteen/internal/postgres"
	"canteen/internal/repository"
	"canteen/internal/service"

	_ "canteen/docs"
)

// @title Canteen API
// @version 1.0
// @description Очередь заказов столовой: оплата, номера, этапы приготовления.
// @BasePath /api/v1
func main() {
	os.Exit(start(os.Args[1:]))
}

// start возвращает код выхода; логгер успевает сброситься до os.Exit
func start(args []string) int {
	fs := flag.NewFlagSet("canteen", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CANTEEN_CONFIG"), "path to YAML config")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config: %v", err)
		return 2
	}
	logger, err := logging.New(cfg.Log, cfg.Service)
	if err != nil {
		log.Printf("logger: %v", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped", zap.Error(err))
		return 1
	}
	logger.Info("service stopped")
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.Service)
	policy := repository.RetryPolicy{MaxAttempts: cfg.Tx.MaxAttempts, BaseDelay: cfg.Tx.BaseDelay}

	store, err := openStore(ctx, cfg, policy, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("store close", zap.Error(err))
		}
	}()

	pub, err := openEvents(cfg)
	if err != nil {
		return err
	}
	statusEvents := events.NewStatusPublisher(pub, cfg.Events.Topic)
	defer func() {
		if err := statusEvents.Close(); err != nil {
			logger.Warn("events close", zap.Error(err))
		}
	}()

	var sender service.Sender
	switch cfg.Delivery.Driver {
	case "amqp":
		amqpSender, err := delivery.DialAMQP(cfg.Delivery.AMQPURL, cfg.Delivery.Exchange)
		if err != nil {
			return err
		}
		defer amqpSender.Close()
		sender = amqpSender
	default:
		sender = delivery.NewLogSender(logger.Named("delivery"))
	}

	loc, err := cfg.Queue.Location()
	if err != nil {
		return err
	}
	notifier := service.NewNotifier(sender, store.Recipients, m, logger.Named("notifier"), cfg.Delivery.Timeout)
	orders := service.NewOrderService(service.Deps{
		Orders:           store.Orders,
		Counters:         store.Counters,
		Menu:             store.Menu,
		Tx:               store.Tx,
		Estimator:        service.NewEstimator(cfg.Queue.ETAStrategy, cfg.Queue.AvgPrepMinutes),
		Batch:            service.NewBatchPolicy(cfg.Queue.BatchPolicy, loc),
		Events:           statusEvents,
		Notifier:         notifier,
		Metrics:          m,
		Log:              logger.Named("orders"),
		DegradedFallback: cfg.Queue.DegradedFallback,
	})

	srv := httpapi.NewServer(httpapi.Services{
		Orders:     orders,
		Menu:       service.NewMenuService(store.Menu),
		Stats:      service.NewStatsService(store.Orders, loc),
		Projection: service.NewProjection(store.Orders, store.Feed),
		Recipients: store.Recipients,
		Feedback:   service.NewFeedbackService(store.Feedback, store.Orders, logger.Named("feedback")),
		Favorites:  service.NewFavoritesService(store.Favorites, store.Menu),
	}, httpapi.Options{Log: logger.Named("http"), Metrics: m, Keepalive: cfg.HTTP.Keepalive})

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: srv.Engine(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr), zap.String("store", cfg.Store.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	if store.Run != nil {
		g.Go(func() error { return store.Run(gctx) })
	}
	if cfg.Reaper.Enabled {
		reaper := service.NewReaper(orders, cfg.Reaper.TTL, cfg.Reaper.Interval, logger.Named("reaper"))
		g.Go(func() error { return reaper.Run(gctx) })
	}
	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, policy repository.RetryPolicy, logger *zap.Logger) (*repository.Store, error) {
	switch cfg.Store.Driver {
	case "mongo":
		return mongo.NewStore(ctx, cfg.Mongo, policy, logger.Named("mongo"))
	case "postgres":
		return postgres.NewStore(ctx, cfg.Postgres, policy, logger.Named("postgres"))
	default:
		return repository.NewMemoryBackend(policy), nil
	}
}

func openEvents(cfg *config.Config) (events.Publisher, error) {
	switch cfg.Events.Driver {
	case "nats":
		return events.NewNATSPublisher(cfg.Events.NATSURL, cfg.Service)
	case "kafka":
		return events.NewKafkaPublisher(cfg.Events.KafkaBrokers), nil
	default:
		return events.Noop{}, nil
	}
}
