package session

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/services/coach-api/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Server struct {
	uc  *Usecase
	log *zap.Logger
}

func NewServer(uc *Usecase, log *zap.Logger) *Server {
	return &Server{uc: uc, log: log}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/api/save-session", s.SaveSession)
	r.Post("/save-accuracy", s.SaveAccuracy)
	r.Get("/api/session-history", s.SessionHistory)
	r.Get("/api/accuracy-stats", s.AccuracyStats)
}

// OwnerFrom maps the identity resolved by auth.Middleware.Identify onto a
// session owner.
func OwnerFrom(r *http.Request) session.Owner {
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		return session.Account{ID: id.ID}
	}
	return session.Guest{}
}

type saveRequest struct {
	Accuracy  json.RawMessage `json:"accuracy"`
	Feedback  string          `json:"feedback"`
	PoseName  string          `json:"poseName"`
	Landmarks json.RawMessage `json:"landmarks"`
	Duration  float64         `json:"duration"`
}

// View is the JSON form of a record.
type View struct {
	ID        string          `json:"_id"`
	User      *string         `json:"user"`
	PoseName  string          `json:"poseName"`
	Accuracy  int             `json:"accuracy"`
	Feedback  string          `json:"feedback"`
	Landmarks json.RawMessage `json:"landmarks,omitempty"`
	Duration  int             `json:"duration"`
	Date      time.Time       `json:"date"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func ToView(rec session.Record) View {
	v := View{
		ID:        rec.ID.String(),
		PoseName:  rec.Exercise,
		Accuracy:  rec.Accuracy,
		Feedback:  rec.Feedback,
		Landmarks: rec.Landmarks,
		Duration:  rec.Duration,
		Date:      rec.OccurredAt,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if id, ok := session.OwnerID(rec.Owner); ok {
		s := id.String()
		v.User = &s
	}
	return v
}

func toViews(recs []session.Record) []View {
	out := make([]View, 0, len(recs))
	for _, r := range recs {
		out = append(out, ToView(r))
	}
	return out
}

func (s *Server) SaveSession(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Fail(w, r, s.log, err, "")
		return
	}
	owner := OwnerFrom(r)
	rec, err := s.uc.Record(r.Context(), owner, session.Input{
		Exercise:  req.PoseName,
		Accuracy:  req.Accuracy,
		Feedback:  req.Feedback,
		Landmarks: req.Landmarks,
		Duration:  seconds(req.Duration),
	})
	if err != nil {
		httpx.Fail(w, r, s.log, err, "")
		return
	}
	obs.WithTrace(r.Context(), s.log).Info("session.save",
		zap.String("session_id", rec.ID.String()),
		zap.String("owner", ownerLabel(owner)),
		zap.Int("accuracy", rec.Accuracy),
	)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": rec.ID.String(),
		"message":   "Session saved successfully",
	})
}

// seconds rounds a client-reported duration. Values the int conversion
// cannot hold are pinned just outside the accepted range so Record rejects
// them instead of storing a wrapped number.
func seconds(d float64) int {
	d = math.Round(d)
	switch {
	case d < 0:
		return -1
	case d > session.MaxDuration:
		return session.MaxDuration + 1
	}
	return int(d)
}

func (s *Server) SaveAccuracy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Accuracy json.RawMessage `json:"accuracy"`
	}
	if err := httpx.DecodeBody(w, r, &req); err != nil {
		httpx.Fail(w, r, s.log, err, "")
		return
	}
	if err := s.uc.RecordProgress(r.Context(), OwnerFrom(r), req.Accuracy); err != nil {
		httpx.Fail(w, r, s.log, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) SessionHistory(w http.ResponseWriter, r *http.Request) {
	recs, stats, err := s.uc.History(r.Context(), OwnerFrom(r))
	if err != nil {
		httpx.Fail(w, r, s.log, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sessions": toViews(recs),
		"stats":    stats,
	})
}

func (s *Server) AccuracyStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.uc.Today(r.Context(), OwnerFrom(r))
	if err != nil {
		httpx.Fail(w, r, s.log, err, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"todayAverage":   st.TodayAverage,
		"todayCount":     st.TodayCount,
		"recentSessions": toViews(st.RecentSessions),
		"lastAccuracy":   st.LastAccuracy,
	})
}
