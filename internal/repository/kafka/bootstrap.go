package kafka

import (
	"context"
	"time"

	"github.com/NordCoder/posecoach/internal/obs/retry"
	"go.uber.org/zap"
)

// BootstrapProducer makes sure the topic exists before returning a producer.
// A broker that stays down past the retry policy is logged, not fatal.
func BootstrapProducer(ctx context.Context, cfg ProducerConfig, logger *zap.Logger) *Producer {
	pol := retry.DefaultKafkaPolicy(logger)
	pol.Name = "kafka_ensure_topic"
	pol.Attempts = 4

	err := retry.Do(ctx, func() error {
		return EnsureTopic(ctx, cfg.Brokers, TopicSpec{
			Name:              cfg.Topic,
			NumPartitions:     cfg.Partitions,
			ReplicationFactor: 1,
			MaxWait:           5 * time.Second,
		}, logger)
	}, pol)
	if err != nil {
		logger.Warn("topic bootstrap failed", zap.String("topic", cfg.Topic), zap.Error(err))
	}

	return NewProducer(cfg, logger)
}
