package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/NordCoder/posecoach/internal/domain/outbox"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/obs/retry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type memRepo struct {
	mu      sync.Mutex
	pending []outbox.Message
	done    []string
}

func (m *memRepo) Enqueue(_ context.Context, msg outbox.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, msg)
	return nil
}

func (m *memRepo) PickBatch(_ context.Context, batch int, _ time.Duration) ([]outbox.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if batch > len(m.pending) {
		batch = len(m.pending)
	}
	out := m.pending[:batch]
	m.pending = m.pending[batch:]
	return out, nil
}

func (m *memRepo) MarkSuccess(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, keys...)
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	got  []kafka.SessionRecorded
	fail int
}

func (p *recordingPublisher) PublishSessionRecorded(_ context.Context, ev kafka.SessionRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, ev)
	return nil
}

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

func testPolicy() retry.Policy {
	return retry.Policy{Attempts: 3, Backoff: noWait{}}
}

func TestEnqueuerWritesSessionPayload(t *testing.T) {
	repo := &memRepo{}
	owner := uuid.New()
	rec := &session.Record{
		ID:         uuid.New(),
		Owner:      session.Account{ID: owner},
		Exercise:   "Tree",
		Accuracy:   91,
		OccurredAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}

	require.NoError(t, NewEnqueuer(repo).SessionRecorded(context.Background(), rec))
	require.Len(t, repo.pending, 1)

	msg := repo.pending[0]
	assert.Equal(t, outbox.KindSessionRecorded, msg.Kind)
	assert.Equal(t, "session_recorded:"+rec.ID.String(), msg.IdempotencyKey)

	var p SessionRecordedPayload
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, rec.ID, p.SessionID)
	assert.Equal(t, owner, p.OwnerID)
	assert.Equal(t, 91, p.Accuracy)
}

func TestEnqueuerGuestHasNilOwner(t *testing.T) {
	repo := &memRepo{}
	rec := &session.Record{ID: uuid.New(), Owner: session.Guest{}, Accuracy: 10}
	require.NoError(t, NewEnqueuer(repo).SessionRecorded(context.Background(), rec))

	var p SessionRecordedPayload
	require.NoError(t, json.Unmarshal(repo.pending[0].Data, &p))
	assert.Equal(t, uuid.Nil, p.OwnerID)
}

func TestRunnerTickPublishesAndMarks(t *testing.T) {
	repo := &memRepo{}
	pub := &recordingPublisher{fail: 1}
	enq := NewEnqueuer(repo)
	for i := 0; i < 3; i++ {
		require.NoError(t, enq.SessionRecorded(context.Background(), &session.Record{
			ID: uuid.New(), Owner: session.Guest{}, Accuracy: 50 + i,
		}))
	}

	r := NewOutboxRunner(zap.NewNop(), repo,
		MakeGlobalOutboxHandler(pub, testPolicy(), rate.NewLimiter(rate.Inf, 1)),
		Options{BatchSize: 10})
	r.tick(context.Background())

	assert.Len(t, pub.got, 3)
	assert.Len(t, repo.done, 3)
	assert.Empty(t, repo.pending)
}

func TestRunnerDropsUndecodablePayload(t *testing.T) {
	repo := &memRepo{pending: []outbox.Message{
		{IdempotencyKey: "bad", Kind: outbox.KindSessionRecorded, Data: []byte("{")},
		{IdempotencyKey: "unknown", Kind: outbox.Kind(42), Data: []byte("{}")},
	}}
	pub := &recordingPublisher{}

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, testPolicy(), nil), Options{})
	r.tick(context.Background())

	assert.Empty(t, pub.got)
	assert.ElementsMatch(t, []string{"bad", "unknown"}, repo.done)
}

func TestRunnerLeavesFailedMessagesForRetry(t *testing.T) {
	repo := &memRepo{}
	require.NoError(t, NewEnqueuer(repo).SessionRecorded(context.Background(), &session.Record{ID: uuid.New(), Owner: session.Guest{}}))
	pub := &recordingPublisher{fail: 10}

	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, testPolicy(), nil), Options{})
	r.tick(context.Background())

	assert.Empty(t, repo.done)
}

func TestRunnerStartStops(t *testing.T) {
	repo := &memRepo{}
	r := NewOutboxRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(&recordingPublisher{}, testPolicy(), nil),
		Options{Workers: 2, WaitTime: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()

	finished := make(chan struct{})
	go func() { r.Wait(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}
