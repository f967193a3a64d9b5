package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestSessionRecordedWireFormat(t *testing.T) {
	ev := kafka.SessionRecorded{
		SessionID:  uuid.New(),
		Owner:      uuid.New(),
		Exercise:   "Warrior II",
		Accuracy:   83,
		OccurredAt: time.Date(2025, 5, 4, 9, 30, 0, 0, time.UTC),
	}

	msg, err := EncodeSessionRecorded(ev)
	require.NoError(t, err)
	raw, err := proto.Marshal(msg)
	require.NoError(t, err)

	var back structpb.Struct
	require.NoError(t, proto.Unmarshal(raw, &back))
	got, err := DecodeSessionRecorded(&back)
	require.NoError(t, err)
	require.Equal(t, ev, got)
}

func TestSessionRecordedGuestOwner(t *testing.T) {
	ev := kafka.SessionRecorded{SessionID: uuid.New(), Accuracy: 40, OccurredAt: time.Now().UTC()}
	msg, err := EncodeSessionRecorded(ev)
	require.NoError(t, err)
	require.Equal(t, "", msg.GetFields()[fieldOwner].GetStringValue())

	got, err := DecodeSessionRecorded(msg)
	require.NoError(t, err)
	require.Equal(t, uuid.Nil, got.Owner)
}

func TestDecodeSessionRecordedRejectsGarbage(t *testing.T) {
	msg, err := structpb.NewStruct(map[string]any{fieldSessionID: "not-a-uuid"})
	require.NoError(t, err)
	_, err = DecodeSessionRecorded(msg)
	require.Error(t, err)
}

func TestHeaderCarrier(t *testing.T) {
	var hs []kafkago.Header
	c := headerCarrier{hs: &hs}
	c.Set("traceparent", "00-abc-def-01")
	c.Set("traceparent", "00-abc-def-02")
	c.Set("baggage", "k=v")

	require.Len(t, hs, 2)
	require.Equal(t, "00-abc-def-02", c.Get("traceparent"))
	require.Equal(t, "", c.Get("missing"))
	require.Equal(t, []string{"traceparent", "baggage"}, c.Keys())
}

func TestDecodeProtoWrapsUnmarshalErrors(t *testing.T) {
	called := false
	h := DecodeProto(
		func() *structpb.Struct { return &structpb.Struct{} },
		func(context.Context, []byte, *structpb.Struct) error { called = true; return nil },
	)
	require.Error(t, h(t.Context(), nil, []byte{0xff, 0xff}))
	require.False(t, called)

	raw, err := proto.Marshal(&structpb.Struct{})
	require.NoError(t, err)
	require.NoError(t, h(t.Context(), []byte("k"), raw))
	require.True(t, called)
}
