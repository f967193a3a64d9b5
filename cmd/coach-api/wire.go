package main

import (
	"net/http"
	"time"

	authcore "github.com/NordCoder/posecoach/internal/auth"
	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/domain/kafka"
	"github.com/NordCoder/posecoach/internal/domain/pose"
	"github.com/NordCoder/posecoach/internal/domain/session"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/outbox"
	"github.com/NordCoder/posecoach/internal/services/coach-api/auth"
	"github.com/NordCoder/posecoach/internal/services/coach-api/live"
	"github.com/NordCoder/posecoach/internal/services/coach-api/pages"
	posesvc "github.com/NordCoder/posecoach/internal/services/coach-api/pose"
	sessionsvc "github.com/NordCoder/posecoach/internal/services/coach-api/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// deps are the adapters the router is assembled from. limiter and feed may
// be nil, which disables rate limiting and the live stream respectively.
type deps struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *storage
	analyzer pose.Analyzer
	limiter  httpx.Limiter
	feed     kafka.SessionFeed
	render   pages.Renderer
	location *time.Location
	now      func() time.Time
}

func newTokenService(cfg *config.Config, log *zap.Logger, now func() time.Time) *authcore.TokenService {
	return authcore.NewTokenService(authcore.TokenConfig{
		AccessSecret:  cfg.Auth.AccessSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshSecret: cfg.Auth.RefreshSecret,
		RefreshTTL:    cfg.Auth.RefreshTTL,
		Issuer:        cfg.Auth.Issuer,
		Now:           now,
	}, log)
}

func newRouter(d deps) http.Handler {
	cfg, log := d.cfg, d.log

	tokens := newTokenService(cfg, log, d.now)
	mw := auth.NewMiddleware(tokens, d.store.users, log)

	authUC := auth.NewUseCase(d.store.users, d.store.slot, tokens, auth.Config{
		BcryptCost: cfg.Auth.BcryptCost,
		Now:        d.now,
	})
	authSrv := auth.NewServer(authUC, log, auth.Opts{
		CookieDomain:  cfg.Auth.CookieDomain,
		CookiePath:    cfg.Auth.CookiePath,
		CookieSecure:  cfg.Auth.CookieSecure || cfg.App.Production(),
		AccessMaxAge:  cfg.Auth.AccessCookieMaxAge,
		RefreshMaxAge: cfg.Auth.RefreshTTL,
	})

	var events session.Events
	if d.store.relayed {
		events = outbox.NewEnqueuer(d.store.outbox)
	}
	sessionUC := sessionsvc.NewUseCase(d.store.tx, d.store.sessions, d.store.progress, events,
		sessionsvc.Config{Location: d.location, Now: d.now},
	)

	r := chi.NewRouter()
	r.Use(
		httpx.RequestID,
		httpx.Recover(log),
		httpx.AccessLog(log),
		httpx.SecurityHeaders,
		httpx.CORS(cfg.Server.CORSOrigins),
		mw.Identify,
	)

	r.Handle("/metrics", obs.MetricsHandler())
	r.Get("/healthz", obs.HealthHandler(d.store.ping))

	limit := httpx.RateLimit(d.limiter, "auth", cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow, log)
	authSrv.Routes(r, mw, limit)
	sessionsvc.NewServer(sessionUC, log).Routes(r)
	posesvc.NewServer(d.analyzer, log).Routes(r)
	live.NewServer(d.feed, log, live.Options{}).Routes(r)
	pages.NewServer(d.render, sessionUC, log, pages.Info{
		Environment: cfg.App.Env,
		Version:     cfg.App.Version,
		StaticDir:   cfg.Web.StaticDir,
		Now:         d.now,
	}).Routes(r, mw)

	return r
}
