package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/outbox"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type SessionRecordedPayload struct {
	SessionID  uuid.UUID `json:"session_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Exercise   string    `json:"exercise"`
	Accuracy   int       `json:"accuracy"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Enqueuer turns saved sessions into outbox rows. Called inside the saving
// transaction, the row commits together with the session.
type Enqueuer struct {
	repo outbox.Repository
}

var _ session.Events = (*Enqueuer)(nil)

func NewEnqueuer(repo outbox.Repository) *Enqueuer { return &Enqueuer{repo: repo} }

func (e *Enqueuer) SessionRecorded(ctx context.Context, r *session.Record) error {
	p := SessionRecordedPayload{
		SessionID:  r.ID,
		Exercise:   r.Exercise,
		Accuracy:   r.Accuracy,
		OccurredAt: r.OccurredAt.UTC(),
	}
	if id, ok := session.OwnerID(r.Owner); ok {
		p.OwnerID = id
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal session payload: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	return e.repo.Enqueue(ctx, outbox.Message{
		IdempotencyKey: outbox.KindSessionRecorded.String() + ":" + r.ID.String(),
		Kind:           outbox.KindSessionRecorded,
		Data:           data,
		Traceparent:    carrier.Get("traceparent"),
		Tracestate:     carrier.Get("tracestate"),
		Baggage:        carrier.Get("baggage"),
	})
}
