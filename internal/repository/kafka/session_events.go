package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"
)

// Session events travel as a google.protobuf.Struct so consumers in any
// language can decode them without a generated schema.
const (
	fieldSessionID  = "session_id"
	fieldOwner      = "owner_id"
	fieldExercise   = "pose_name"
	fieldAccuracy   = "accuracy"
	fieldOccurredAt = "occurred_at"
)

type SessionEventsKafka struct {
	p *Producer
}

func NewSessionEventsKafka(p *Producer) *SessionEventsKafka { return &SessionEventsKafka{p: p} }

var _ kafka.SessionEvents = (*SessionEventsKafka)(nil)

func (e *SessionEventsKafka) PublishSessionRecorded(ctx context.Context, ev kafka.SessionRecorded) error {
	msg, err := EncodeSessionRecorded(ev)
	if err != nil {
		return err
	}
	key := ev.Owner
	if key == uuid.Nil {
		key = ev.SessionID
	}
	return e.p.Publish(ctx, []byte(key.String()), msg)
}

func EncodeSessionRecorded(ev kafka.SessionRecorded) (*structpb.Struct, error) {
	owner := ""
	if ev.Owner != uuid.Nil {
		owner = ev.Owner.String()
	}
	s, err := structpb.NewStruct(map[string]any{
		fieldSessionID:  ev.SessionID.String(),
		fieldOwner:      owner,
		fieldExercise:   ev.Exercise,
		fieldAccuracy:   ev.Accuracy,
		fieldOccurredAt: ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode session event: %w", err)
	}
	return s, nil
}

func DecodeSessionRecorded(s *structpb.Struct) (kafka.SessionRecorded, error) {
	var ev kafka.SessionRecorded
	f := s.GetFields()

	id, err := uuid.Parse(f[fieldSessionID].GetStringValue())
	if err != nil {
		return ev, fmt.Errorf("decode session event: session id: %w", err)
	}
	ev.SessionID = id
	if o := f[fieldOwner].GetStringValue(); o != "" {
		if ev.Owner, err = uuid.Parse(o); err != nil {
			return ev, fmt.Errorf("decode session event: owner: %w", err)
		}
	}
	ev.Exercise = f[fieldExercise].GetStringValue()
	ev.Accuracy = int(f[fieldAccuracy].GetNumberValue())
	if ts := f[fieldOccurredAt].GetStringValue(); ts != "" {
		if ev.OccurredAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return ev, fmt.Errorf("decode session event: occurred_at: %w", err)
		}
	}
	return ev, nil
}

// SessionFeed streams session events to one live subscriber. Each Subscribe
// call opens its own group-less reader positioned at the topic's end.
type SessionFeed struct {
	brokers []string
	topic   string
	log     *zap.Logger
}

var _ kafka.SessionFeed = (*SessionFeed)(nil)

func NewSessionFeed(brokers []string, topic string, log *zap.Logger) *SessionFeed {
	return &SessionFeed{brokers: brokers, topic: topic, log: log}
}

func (f *SessionFeed) Subscribe(ctx context.Context, fn func(context.Context, kafka.SessionRecorded) error) error {
	cons := NewConsumer(ConsumerConfig{Brokers: f.brokers, Topic: f.topic}, f.log)
	defer func() { _ = cons.Close() }()

	return cons.Consume(ctx, DecodeProto(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(ctx context.Context, _ []byte, s *structpb.Struct) error {
			ev, err := DecodeSessionRecorded(s)
			if err != nil {
				return err
			}
			return fn(ctx, ev)
		},
	))
}
