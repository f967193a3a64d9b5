package kafka

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SessionRecorded is the broadcast form of a saved session. Owner is uuid.Nil for guests.
type SessionRecorded struct {
	SessionID  uuid.UUID
	Owner      uuid.UUID
	Exercise   string
	Accuracy   int
	OccurredAt time.Time
}

type SessionEvents interface {
	PublishSessionRecorded(ctx context.Context, ev SessionRecorded) error
}

// SessionFeed delivers published events to a live subscriber until ctx ends.
type SessionFeed interface {
	Subscribe(ctx context.Context, fn func(context.Context, SessionRecorded) error) error
}
