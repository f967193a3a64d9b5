package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NordCoder/posecoach/internal/analytics"
	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrLandmarks = fmt.Errorf("landmarks must be valid JSON: %w", domain.ErrValidation)
	ErrDuration  = fmt.Errorf("duration must be between 0 and %d seconds: %w", session.MaxDuration, domain.ErrValidation)
)

const maxTextLen = 2000

var sessionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "posecoach_sessions_recorded_total",
	Help: "Practice sessions saved, by owner kind.",
}, []string{"owner"})

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Config struct {
	// Location decides where "today" starts. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

type Usecase struct {
	tx       Transactor
	sessions session.Repo
	progress session.ProgressRepo
	events   session.Events
	clean    *security.TextSanitizer
	cfg      Config
}

// NewUseCase wires the session log. events may be nil when nothing listens.
func NewUseCase(tx Transactor, sessions session.Repo, progress session.ProgressRepo, events session.Events, cfg Config) *Usecase {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Usecase{tx: tx, sessions: sessions, progress: progress, events: events, clean: security.NewTextSanitizer(), cfg: cfg}
}

// Record validates and appends one session. The session, its legacy progress
// entry and the outgoing event are written in one transaction.
func (u *Usecase) Record(ctx context.Context, owner session.Owner, in session.Input) (*session.Record, error) {
	acc, err := session.ParseAccuracy(in.Accuracy)
	if err != nil {
		return nil, err
	}
	landmarks := bytes.TrimSpace(in.Landmarks)
	if bytes.Equal(landmarks, []byte("null")) {
		landmarks = nil
	}
	if len(landmarks) > 0 && !json.Valid(landmarks) {
		return nil, ErrLandmarks
	}
	if in.Duration < 0 || in.Duration > session.MaxDuration {
		return nil, ErrDuration
	}

	now := u.cfg.Now().UTC()
	rec := &session.Record{
		Owner:      owner,
		Exercise:   u.text(in.Exercise, session.DefaultExercise),
		Accuracy:   acc,
		Feedback:   u.text(in.Feedback, session.DefaultFeedback),
		Landmarks:  json.RawMessage(landmarks),
		Duration:   in.Duration,
		OccurredAt: now,
	}

	err = u.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := u.sessions.Insert(ctx, rec); err != nil {
			return err
		}
		if err := u.progress.Insert(ctx, &session.Progress{Owner: owner, Accuracy: acc, Date: now}); err != nil {
			return err
		}
		if u.events != nil {
			return u.events.SessionRecorded(ctx, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	sessionsRecorded.WithLabelValues(ownerLabel(owner)).Inc()
	return rec, nil
}

// RecordProgress is the legacy accuracy-only path. It writes a progress
// entry and no session.
func (u *Usecase) RecordProgress(ctx context.Context, owner session.Owner, accuracy json.RawMessage) error {
	acc, err := session.ParseAccuracy(accuracy)
	if err != nil {
		return err
	}
	if err := u.progress.Insert(ctx, &session.Progress{Owner: owner, Accuracy: acc, Date: u.cfg.Now().UTC()}); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// History returns the newest records together with their summary.
func (u *Usecase) History(ctx context.Context, owner session.Owner) ([]session.Record, analytics.HistoryStats, error) {
	recs, err := u.sessions.ListRecent(ctx, owner, analytics.HistoryWindow)
	if err != nil {
		return nil, analytics.HistoryStats{}, fmt.Errorf("session history: %w", err)
	}
	return recs, analytics.History(recs), nil
}

func (u *Usecase) Today(ctx context.Context, owner session.Owner) (analytics.TodayStats, error) {
	recent, err := u.sessions.ListRecent(ctx, owner, analytics.RecentWindow)
	if err != nil {
		return analytics.TodayStats{}, fmt.Errorf("accuracy stats: %w", err)
	}
	since := analytics.StartOfDay(u.cfg.Now().In(u.cfg.Location))
	today, err := u.sessions.ListSince(ctx, owner, since)
	if err != nil {
		return analytics.TodayStats{}, fmt.Errorf("accuracy stats: %w", err)
	}
	return analytics.Today(today, recent), nil
}

func (u *Usecase) text(s, def string) string {
	s = u.clean.Clean(s)
	if s == "" {
		return def
	}
	if r := []rune(s); len(r) > maxTextLen {
		s = string(r[:maxTextLen])
	}
	return s
}

func ownerLabel(o session.Owner) string {
	if _, ok := session.OwnerID(o); ok {
		return "account"
	}
	return "guest"
}
