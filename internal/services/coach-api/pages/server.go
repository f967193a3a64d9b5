package pages

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/NordCoder/posecoach/internal/analytics"
	domainauth "github.com/NordCoder/posecoach/internal/domain/auth"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/services/coach-api/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// View is the data every page template receives.
type View struct {
	Title string
	User  *domainauth.Identity
	Error string
	Query map[string]string
	Stats *analytics.HistoryStats
}

// History feeds the dashboard. It is satisfied by the session usecase.
type History interface {
	History(ctx context.Context, owner session.Owner) ([]session.Record, analytics.HistoryStats, error)
}

type Info struct {
	Environment string
	Version     string
	StaticDir   string
	Now         func() time.Time
}

type Server struct {
	render  Renderer
	history History
	log     *zap.Logger
	info    Info
}

func NewServer(render Renderer, history History, log *zap.Logger, info Info) *Server {
	if info.Now == nil {
		info.Now = time.Now
	}
	if info.Environment == "" {
		info.Environment = "development"
	}
	return &Server{render: render, history: history, log: log, info: info}
}

func (s *Server) Routes(r chi.Router, mw *auth.Middleware) {
	r.Get("/api/health", s.Health)

	r.Get("/", s.page("home", "Home"))
	r.Get("/pose", s.page("index", "Pose trainer"))
	r.Get("/index", s.page("index", "Pose trainer"))
	r.With(mw.RequirePage).Get("/dashboard", s.Dashboard)
	r.Get("/auth/login", s.authPage("auth/login", "Log in"))
	r.Get("/auth/register", s.authPage("auth/register", "Register"))

	if s.info.StaticDir != "" {
		if st, err := os.Stat(s.info.StaticDir); err == nil && st.IsDir() {
			r.NotFound(http.FileServer(http.Dir(s.info.StaticDir)).ServeHTTP)
		} else {
			s.log.Warn("static dir not served", zap.String("dir", s.info.StaticDir), zap.Error(err))
		}
	}
}

func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":      "OK",
		"timestamp":   s.info.Now().UTC().Format(time.RFC3339Nano),
		"environment": s.info.Environment,
		"version":     s.info.Version,
	})
}

func (s *Server) page(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.write(w, r, name, s.view(r, title))
	}
}

// authPage sends callers who already hold an access token to the dashboard.
func (s *Server) authPage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.IdentityFrom(r.Context()); ok {
			httpx.Redirect(w, r, "/dashboard")
			return
		}
		s.write(w, r, name, s.view(r, title))
	}
}

func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	v := s.view(r, "Dashboard")
	if s.history != nil && v.User != nil {
		_, stats, err := s.history.History(r.Context(), session.Account{ID: v.User.ID})
		if err != nil {
			obs.WithTrace(r.Context(), s.log).Warn("dashboard history unavailable", zap.Error(err))
		} else {
			v.Stats = &stats
		}
	}
	s.write(w, r, "dashboard", v)
}

func (s *Server) view(r *http.Request, title string) View {
	v := View{Title: title, Query: map[string]string{}}
	if id, ok := auth.IdentityFrom(r.Context()); ok {
		v.User = &id
	}
	for k, vals := range r.URL.Query() {
		if len(vals) > 0 {
			v.Query[k] = vals[0]
		}
	}
	v.Error = v.Query["error"]
	return v
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, name string, v View) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.render.Render(w, name, v); err != nil {
		obs.WithTrace(r.Context(), s.log).Error("render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
