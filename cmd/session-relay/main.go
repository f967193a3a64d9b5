package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/posecoach/internal/config/session-relay"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/obs/retry"
	"github.com/NordCoder/posecoach/internal/outbox"
	kafkarepo "github.com/NordCoder/posecoach/internal/repository/kafka"
	pg "github.com/NordCoder/posecoach/internal/repository/postgres"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func wire(cfg *config.Config, db *pg.DB, events *kafkarepo.SessionEventsKafka, l *zap.Logger) *outbox.Runner {
	var lim *rate.Limiter
	if cfg.Outbox.PublishRate > 0 {
		burst := max(cfg.Outbox.PublishBurst, 1)
		lim = rate.NewLimiter(rate.Limit(cfg.Outbox.PublishRate), burst)
	}

	dispatch := outbox.MakeGlobalOutboxHandler(events, retry.DefaultKafkaPolicy(l), lim)
	return outbox.NewOutboxRunner(l, pg.NewOutboxRepo(db), dispatch, outbox.Options{
		Workers:       cfg.Outbox.Workers,
		BatchSize:     cfg.Outbox.BatchSize,
		WaitTime:      cfg.Outbox.WaitTime,
		InProgressTTL: cfg.Outbox.InProgressTTL,
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting session-relay",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Int("workers", cfg.Outbox.Workers),
	)

	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	prod := kafkarepo.BootstrapProducer(ctx, kafkarepo.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Topic:      cfg.Kafka.Topic,
		Partitions: cfg.Kafka.Partitions,
	}, l)
	defer func() { _ = prod.Close() }()

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	runner := wire(cfg, db, kafkarepo.NewSessionEventsKafka(prod), l)
	runner.Start(ctx)
	l.Info("session-relay started")

	<-ctx.Done()
	l.Info("shutdown signal")

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		runner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shCtx.Done():
		l.Warn("outbox workers did not stop in time")
	}
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
