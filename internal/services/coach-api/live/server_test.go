package live

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authcore "github.com/NordCoder/posecoach/internal/auth"
	domainauth "github.com/NordCoder/posecoach/internal/domain/auth"
	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/NordCoder/posecoach/internal/repository/memory"
	"github.com/NordCoder/posecoach/internal/services/coach-api/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeFeed replays events, then either returns or waits for the stream to end.
type fakeFeed struct {
	events   []kafka.SessionRecorded
	hold     time.Duration
	canceled bool
	fnErr    error
}

func (f *fakeFeed) Subscribe(ctx context.Context, fn func(context.Context, kafka.SessionRecorded) error) error {
	for _, ev := range f.events {
		if err := fn(ctx, ev); err != nil {
			f.fnErr = err
			select {
			case <-ctx.Done():
				f.canceled = true
				return ctx.Err()
			case <-time.After(time.Second):
				return err
			}
		}
	}
	if f.hold > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.hold):
		}
	}
	return nil
}

func event(owner uuid.UUID, acc int) kafka.SessionRecorded {
	return kafka.SessionRecorded{
		SessionID:  uuid.New(),
		Owner:      owner,
		Exercise:   "Tree",
		Accuracy:   acc,
		OccurredAt: time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func stream(t *testing.T, feed kafka.SessionFeed, opts Options, id *domainauth.Identity, w http.ResponseWriter) {
	t.Helper()
	tokens := authcore.NewTokenService(authcore.TokenConfig{
		AccessSecret: "a", RefreshSecret: "r", AccessTTL: time.Hour, RefreshTTL: time.Hour,
	}, nil)
	r := chi.NewRouter()
	r.Use(auth.NewMiddleware(tokens, memory.New().Users(), zap.NewNop()).Identify)
	NewServer(feed, zap.NewNop(), opts).Routes(r)

	req := httptest.NewRequest(http.MethodGet, "/api/live", nil)
	if id != nil {
		tok, _, err := tokens.IssueAccess(*id)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	r.ServeHTTP(w, req)
}

func TestStreamDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	stream(t, nil, Options{}, nil, rec)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Live feed disabled"}`, rec.Body.String())
}

func TestStreamFiltersByOwner(t *testing.T) {
	me, other := uuid.New(), uuid.New()
	mine := event(me, 91)
	feed := &fakeFeed{events: []kafka.SessionRecorded{event(other, 10), mine, event(uuid.Nil, 20)}}

	rec := httptest.NewRecorder()
	stream(t, feed, Options{Heartbeat: time.Hour}, &domainauth.Identity{ID: me}, rec)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "retry: 3000\n\n"))
	assert.Equal(t, 1, strings.Count(body, "event: session.recorded\n"))
	assert.Contains(t, body, "id: "+mine.SessionID.String()+"\n")
	assert.Contains(t, body, `"accuracy":91`)
	assert.Contains(t, body, `"user":"`+me.String()+`"`)
}

func TestStreamGuestSeesGuestEvents(t *testing.T) {
	feed := &fakeFeed{events: []kafka.SessionRecorded{event(uuid.New(), 10), event(uuid.Nil, 20)}}
	rec := httptest.NewRecorder()
	stream(t, feed, Options{Heartbeat: time.Hour}, nil, rec)

	body := rec.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event: session.recorded\n"))
	assert.Contains(t, body, `"user":null`)
	assert.Contains(t, body, `"accuracy":20`)
}

func TestStreamHeartbeat(t *testing.T) {
	rec := httptest.NewRecorder()
	stream(t, &fakeFeed{hold: 100 * time.Millisecond}, Options{Heartbeat: 10 * time.Millisecond}, nil, rec)
	assert.Contains(t, rec.Body.String(), ": ping\n\n")
}

type brokenWriter struct {
	header http.Header
	writes int
}

func (b *brokenWriter) Header() http.Header { return b.header }
func (b *brokenWriter) WriteHeader(int)     {}
func (b *brokenWriter) Flush()              {}
func (b *brokenWriter) Write(p []byte) (int, error) {
	b.writes++
	if b.writes > 1 {
		return 0, errors.New("client gone")
	}
	return len(p), nil
}

func TestStreamStopsOnWriteError(t *testing.T) {
	feed := &fakeFeed{events: []kafka.SessionRecorded{event(uuid.Nil, 50), event(uuid.Nil, 60)}}
	stream(t, feed, Options{Heartbeat: time.Hour}, nil, &brokenWriter{header: http.Header{}})

	require.Error(t, feed.fnErr)
	assert.True(t, feed.canceled)
}

func TestFrame(t *testing.T) {
	ev := event(uuid.Nil, 77)
	b, err := Frame(ev)
	require.NoError(t, err)
	assert.Equal(t,
		"id: "+ev.SessionID.String()+"\nevent: session.recorded\n"+
			`data: {"sessionId":"`+ev.SessionID.String()+`","user":null,"poseName":"Tree","accuracy":77,"date":"2025-04-01T09:00:00Z"}`+"\n\n",
		string(b))
}
