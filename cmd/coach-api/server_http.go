package main

import (
	"context"
	"net/http"
	"time"

	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/obs/retry"
	"github.com/NordCoder/posecoach/internal/outbox"
	"github.com/NordCoder/posecoach/internal/posecli"
	kafkarepo "github.com/NordCoder/posecoach/internal/repository/kafka"
	rdb "github.com/NordCoder/posecoach/internal/repository/redis"
	"github.com/NordCoder/posecoach/internal/services/coach-api/pages"
	"go.uber.org/zap"
)

func buildHTTPServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, store *storage) (*http.Server, func(), error) {
	loc, err := cfg.App.Location()
	if err != nil {
		return nil, nil, err
	}

	var render pages.Renderer = pages.NewFallbackRenderer()
	if cfg.Web.TemplatesGlob != "" {
		tr, err := pages.NewTemplateRenderer(cfg.Web.TemplatesGlob)
		if err != nil {
			return nil, nil, err
		}
		render = tr
	}

	closers := []func(){}
	var limiter httpx.Limiter
	redisClient, err := rdb.NewClient(ctx, cfg.Redis)
	switch {
	case err != nil:
		logger.Warn("redis unavailable, auth rate limiting disabled", zap.Error(err))
	case redisClient == nil:
		logger.Info("redis not configured, auth rate limiting disabled")
	default:
		limiter = rdb.NewLimiter(redisClient, "posecoach:rl:")
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	var feed kafka.SessionFeed
	if cfg.Kafka.Enable {
		feed = kafkarepo.NewSessionFeed(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if cfg.DB.DSN == memoryDSN {
			closers = append(closers, startInlineRelay(ctx, cfg, logger, store))
			store.relayed = true
		}
	}

	router := newRouter(deps{
		cfg:      cfg,
		log:      logger,
		store:    store,
		analyzer: posecli.New(cfg.Pose),
		limiter:  limiter,
		feed:     feed,
		render:   render,
		location: loc,
		now:      time.Now,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           obs.HTTPHandler(router, "coach-api"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return httpSrv, closeAll, nil
}

// startInlineRelay drains the in-memory outbox to Kafka. With Postgres the
// session-relay binary does this instead.
func startInlineRelay(ctx context.Context, cfg *config.Config, logger *zap.Logger, store *storage) func() {
	ctx, cancel := context.WithCancel(ctx)
	prod := kafkarepo.NewProducer(kafkarepo.ProducerConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
	dispatch := outbox.MakeGlobalOutboxHandler(kafkarepo.NewSessionEventsKafka(prod), retry.DefaultKafkaPolicy(logger), nil)
	runner := outbox.NewOutboxRunner(logger, store.outbox, dispatch, outbox.Options{Workers: 1})
	runner.Start(ctx)
	logger.Info("inline outbox relay started", zap.String("topic", cfg.Kafka.Topic))

	return func() {
		cancel()
		runner.Wait()
		_ = prod.Close()
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
