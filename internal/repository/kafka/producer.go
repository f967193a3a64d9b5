package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

type ProducerConfig struct {
	Brokers    []string
	Topic      string
	Partitions int
}

// Producer writes protobuf messages to one topic. Messages with the same key
// land on the same partition, so one account's sessions stay ordered.
type Producer struct {
	w     *kafka.Writer
	topic string
	log   *zap.Logger
}

func NewProducer(cfg ProducerConfig, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: cfg.Topic,
		log:   log.With(zap.String("component", "kafka.producer"), zap.String("topic", cfg.Topic)),
	}
}

func (p *Producer) Publish(ctx context.Context, key []byte, m proto.Message) (err error) {
	defer func() { countMessage(p.topic, "produce", err) }()

	value, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.ProtoReflect().Descriptor().FullName(), err)
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
		),
	)
	defer span.End()

	msg := kafka.Message{Key: key, Value: value}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{hs: &msg.Headers})

	if err = p.w.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}
	p.log.Debug("published", zap.ByteString("key", key), zap.Int("bytes", len(value)))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
