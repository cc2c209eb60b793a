package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gartstein/companydir/internal/directory/auth"
	"github.com/gartstein/companydir/internal/directory/config"
	"github.com/gartstein/companydir/internal/directory/controller"
	"github.com/gartstein/companydir/internal/directory/db"
	"github.com/gartstein/companydir/internal/directory/discovery"
	"github.com/gartstein/companydir/internal/directory/events"
	"github.com/gartstein/companydir/internal/directory/handlers"
	"github.com/gartstein/companydir/internal/directory/ingest"
	"github.com/gartstein/companydir/internal/directory/metrics"
	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/gartstein/companydir/internal/directory/search"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	repo, err := db.NewRepository(cfg.Database())
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	producer, closeProducer := initProducer(cfg, logger)
	defer closeProducer()

	m := metrics.New(prometheus.DefaultRegisterer)
	directorySvc := controller.NewDirectoryService(repo, producer, logger)
	directoryHandler := handlers.NewDirectoryHandler(directorySvc, logger)

	authInterceptor := auth.NewAuthInterceptor(cfg.JWTSecret)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpc.UnaryInterceptor(authInterceptor.Unary()))
	server.RegisterGRPCHandler(directoryHandler)
	if err := server.RegisterHTTPRoutes(directoryHandler, cfg.JWTSecret, prometheus.DefaultGatherer); err != nil {
		logger.Fatal("Failed to register HTTP routes", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		server.Stop()
		return nil
	})

	if cfg.DiscoveryEnabled {
		worker := discovery.NewWorker(directorySvc, search.NewClient(cfg.Search(), logger), logger,
			discovery.WithRetryPolicy(cfg.Retry()),
			discovery.WithKeyword(cfg.DiscoveryKeyword),
			discovery.WithMetrics(m),
		)
		driver := discovery.NewDriver(worker, cfg.Cooldown, cfg.IdlePoll, logger)
		g.Go(func() error {
			return ignoreCanceled(driver.Run(ctx))
		})
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.IngestTopic != "" {
		ingester := ingest.NewIngester(directorySvc, m, logger)
		consumer := events.NewConsumer(cfg.KafkaBrokers, cfg.ConsumerGroup, cfg.IngestTopic, logger)
		defer consumer.Close()
		consumer.RegisterHandler(func(ctx context.Context, rec models.IndexRecord) error {
			return ingester.Record(ctx, rec, nil)
		})
		g.Go(func() error {
			return ignoreCanceled(consumer.Run(ctx))
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Directory service stopped with error", zap.Error(err))
		return
	}
	logger.Info("Directory service stopped properly")
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// initProducer returns a Kafka producer, or a no-op one when no brokers are
// configured.
func initProducer(cfg *config.Config, logger *zap.Logger) (controller.EventProducer, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Info("No Kafka brokers configured, company events disabled")
		return events.NopProducer{}, func() {}
	}
	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	return producer, producer.Close
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
