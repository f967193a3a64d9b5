package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

type Handler func(ctx context.Context, key, value []byte) error

// DecodeProto turns a typed protobuf handler into a raw Handler.
func DecodeProto[M proto.Message](newMsg func() M, handle func(context.Context, []byte, M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := newMsg()
		if err := proto.Unmarshal(value, msg); err != nil {
			return fmt.Errorf("unmarshal %s: %w", msg.ProtoReflect().Descriptor().FullName(), err)
		}
		return handle(ctx, key, msg)
	}
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	// GroupID empty means a private reader on partition 0 that starts at the
	// end of the log and never commits.
	GroupID       string
	FromBeginning bool
}

type Consumer struct {
	reader *kafka.Reader
	cfg    ConsumerConfig
	log    *zap.Logger
}

const (
	fetchBackoffMin = 200 * time.Millisecond
	fetchBackoffMax = 5 * time.Second
)

func NewConsumer(cfg ConsumerConfig, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	rc := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	}
	if cfg.FromBeginning {
		rc.StartOffset = kafka.FirstOffset
	} else {
		rc.StartOffset = kafka.LastOffset
	}
	if cfg.GroupID != "" {
		rc.WatchPartitionChanges = true
		rc.SessionTimeout = 10 * time.Second
		rc.RebalanceTimeout = 15 * time.Second
		rc.HeartbeatInterval = 3 * time.Second
	}

	r := kafka.NewReader(rc)
	if cfg.GroupID == "" && !cfg.FromBeginning {
		// StartOffset is ignored without a group.
		_ = r.SetOffset(kafka.LastOffset)
	}

	return &Consumer{
		reader: r,
		cfg:    cfg,
		log: log.With(
			zap.String("component", "kafka.consumer"),
			zap.String("topic", cfg.Topic),
			zap.String("group", cfg.GroupID),
		),
	}
}

// Consume feeds every message to h until ctx ends. A failing handler is
// logged and the message skipped; fetch errors back off and retry.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	c.log.Debug("consumer started")
	defer c.log.Debug("consumer stopped")

	backoff := fetchBackoffMin
	for ctx.Err() == nil {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			lvl := zap.WarnLevel
			if errors.Is(err, io.EOF) {
				lvl = zap.DebugLevel
			}
			c.log.Log(lvl, "fetch failed", zap.Error(err), zap.Duration("backoff", backoff))
			if !sleepCtx(ctx, backoff) {
				break
			}
			backoff = min(backoff*2, fetchBackoffMax)
			continue
		}
		backoff = fetchBackoffMin

		c.handle(ctx, msg, h)

		if c.cfg.GroupID == "" {
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.log.Warn("commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
	return ctx.Err()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, h Handler) {
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{hs: &msg.Headers})
	ctx, span := otel.Tracer("kafka.consumer").Start(ctx, "kafka.consume "+c.cfg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	err := h(ctx, msg.Key, msg.Value)
	countMessage(c.cfg.Topic, "consume", err)
	if err != nil {
		span.RecordError(err)
		c.log.Error("handler failed",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
