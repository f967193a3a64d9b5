// Package live streams session.recorded events to browsers over
// server-sent events.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/services/coach-api/auth"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const EventSessionRecorded = "session.recorded"

var (
	subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "posecoach_live_subscribers",
		Help: "Open /api/live streams.",
	})
	delivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posecoach_live_events_delivered_total",
		Help: "Events written to live streams.",
	})
)

type Options struct {
	// Heartbeat is how often an SSE comment is sent to keep proxies from
	// closing an idle stream. Defaults to 25s.
	Heartbeat time.Duration
}

type Server struct {
	feed kafka.SessionFeed
	log  *zap.Logger
	opts Options
}

// NewServer accepts a nil feed; the endpoint then answers 503.
func NewServer(feed kafka.SessionFeed, log *zap.Logger, opts Options) *Server {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	return &Server{feed: feed, log: log, opts: opts}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/api/live", s.Stream)
}

type eventView struct {
	SessionID string    `json:"sessionId"`
	User      *string   `json:"user"`
	PoseName  string    `json:"poseName"`
	Accuracy  int       `json:"accuracy"`
	Date      time.Time `json:"date"`
}

// Frame encodes ev as one SSE message.
func Frame(ev kafka.SessionRecorded) ([]byte, error) {
	v := eventView{
		SessionID: ev.SessionID.String(),
		PoseName:  ev.Exercise,
		Accuracy:  ev.Accuracy,
		Date:      ev.OccurredAt,
	}
	if ev.Owner != uuid.Nil {
		o := ev.Owner.String()
		v.User = &o
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode live event: %w", err)
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "id: %s\nevent: %s\ndata: %s\n\n", v.SessionID, EventSessionRecorded, data)
	return b.Bytes(), nil
}

// Stream relays events belonging to the caller: an account gets its own
// sessions, a guest gets guest sessions.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"message": "Live feed disabled",
		})
		return
	}

	want := uuid.Nil
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		want = id.ID
	}
	log := obs.WithTrace(r.Context(), s.log).With(zap.Bool("account", want != uuid.Nil))

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var mu sync.Mutex
	write := func(b []byte) error {
		mu.Lock()
		defer mu.Unlock()
		if _, err := w.Write(b); err != nil {
			return err
		}
		return rc.Flush()
	}
	if err := write([]byte("retry: 3000\n\n")); err != nil {
		log.Debug("live stream not writable", zap.Error(err))
		return
	}

	subscribers.Inc()
	defer subscribers.Dec()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(s.opts.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := write([]byte(": ping\n\n")); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	err := s.feed.Subscribe(ctx, func(_ context.Context, ev kafka.SessionRecorded) error {
		if ev.Owner != want {
			return nil
		}
		b, err := Frame(ev)
		if err != nil {
			return err
		}
		if err := write(b); err != nil {
			cancel()
			return fmt.Errorf("write live event: %w", err)
		}
		delivered.Inc()
		return nil
	})
	cancel()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("live stream ended", zap.Error(err))
		return
	}
	log.Debug("live stream closed")
}
