package auth

import (
	"net/http"
	"time"

	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Opts struct {
	CookieDomain  string
	CookiePath    string
	CookieSecure  bool
	AccessMaxAge  time.Duration
	RefreshMaxAge time.Duration
}

type Server struct {
	uc   *Usecase
	log  *zap.Logger
	opts Opts
}

func NewServer(uc *Usecase, log *zap.Logger, o Opts) *Server {
	if o.CookiePath == "" {
		o.CookiePath = "/"
	}
	return &Server{uc: uc, log: log, opts: o}
}

// Routes registers the auth endpoints. limit guards the credential endpoints
// and may be nil.
func (s *Server) Routes(r chi.Router, mw *Middleware, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(h http.Handler) http.Handler { return h }
	}
	r.With(limit).Post("/auth/register", s.Register)
	r.With(limit).Post("/auth/login", s.Login)
	r.Post("/auth/refresh", s.Refresh)
	r.Post("/auth/logout", s.Logout)
	r.With(mw.Require).Get("/auth/me", s.Me)
}

type authResponse struct {
	Message      string      `json:"message"`
	User         user.Public `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := httpx.DecodeBody(w, r, &in); err != nil {
		httpx.Fail(w, r, s.log, err, "/auth/register")
		return
	}
	sess, err := s.uc.Register(r.Context(), in)
	if err != nil {
		httpx.Fail(w, r, s.log, err, "/auth/register")
		return
	}
	obs.WithTrace(r.Context(), s.log).Info("auth.register",
		zap.String("user_id", sess.User.ID.String()), zap.String("username", sess.User.Username))

	s.setSessionCookies(w, sess)
	if httpx.Negotiate(r) == httpx.FormatHTML {
		httpx.Redirect(w, r, "/")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, authResponse{
		Message:      "Registered",
		User:         sess.User.Public(),
		AccessToken:  sess.Tokens.Access,
		RefreshToken: sess.Tokens.Refresh,
	})
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeBody(w, r, &in); err != nil {
		httpx.Fail(w, r, s.log, err, LoginPage)
		return
	}
	if in.Next == "" {
		in.Next = r.URL.Query().Get("next")
	}
	sess, err := s.uc.Login(r.Context(), in)
	if err != nil {
		failTo := LoginPage
		if in.Next != "" {
			failTo = httpx.WithQuery(LoginPage, "next", httpx.SafeNext(in.Next, "/dashboard"))
		}
		httpx.Fail(w, r, s.log, err, failTo)
		return
	}
	obs.WithTrace(r.Context(), s.log).Info("auth.login", zap.String("user_id", sess.User.ID.String()))

	s.setSessionCookies(w, sess)
	if httpx.Negotiate(r) == httpx.FormatHTML {
		httpx.Redirect(w, r, httpx.SafeNext(in.Next, "/dashboard"))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse{
		Message:      "Logged in",
		User:         sess.User.Public(),
		AccessToken:  sess.Tokens.Access,
		RefreshToken: sess.Tokens.Refresh,
	})
}

func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	presented := ""
	if c, err := r.Cookie(RefreshCookie); err == nil {
		presented = c.Value
	}
	if presented == "" {
		if err := httpx.DecodeBody(w, r, &body); err != nil {
			httpx.Fail(w, r, s.log, err, LoginPage)
			return
		}
		presented = body.RefreshToken
	}

	sess, err := s.uc.Refresh(r.Context(), presented)
	if err != nil {
		s.clearSessionCookies(w)
		httpx.Fail(w, r, s.log, err, LoginPage)
		return
	}
	obs.WithTrace(r.Context(), s.log).Debug("auth.refresh", zap.String("user_id", sess.User.ID.String()))

	s.setSessionCookies(w, sess)
	if httpx.Negotiate(r) == httpx.FormatHTML {
		httpx.Redirect(w, r, "/dashboard")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message":      "Refreshed",
		"accessToken":  sess.Tokens.Access,
		"refreshToken": sess.Tokens.Refresh,
	})
}

// Logout always succeeds for the caller. Emptying the slot is best effort:
// the account comes from the access token, or from the refresh token when
// the access token is missing or expired.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	log := obs.WithTrace(r.Context(), s.log)
	if id, ok := IdentityFrom(r.Context()); ok {
		if err := s.uc.Logout(r.Context(), id.ID); err != nil {
			log.Warn("auth.logout: clear refresh slot", zap.String("user_id", id.ID.String()), zap.Error(err))
		} else {
			log.Info("auth.logout", zap.String("user_id", id.ID.String()))
		}
	} else if presented := s.presentedRefresh(w, r); presented != "" {
		uid, err := s.uc.LogoutRefresh(r.Context(), presented)
		switch {
		case err == nil:
			log.Info("auth.logout", zap.String("user_id", uid.String()), zap.String("via", "refresh"))
		case uid != uuid.Nil:
			log.Warn("auth.logout: clear refresh slot", zap.String("user_id", uid.String()), zap.Error(err))
		default:
			log.Debug("auth.logout: refresh token ignored", zap.Error(err))
		}
	}

	s.clearSessionCookies(w)
	if httpx.Negotiate(r) == httpx.FormatHTML {
		httpx.Redirect(w, r, "/")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// presentedRefresh reads the refresh token from the cookie or, failing that,
// from the body. A malformed body yields no token.
func (s *Server) presentedRefresh(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(RefreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := httpx.DecodeBody(w, r, &body); err != nil {
		return ""
	}
	return body.RefreshToken
}

func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	acc, ok := AccountFrom(r.Context())
	if !ok {
		httpx.Fail(w, r, s.log, ErrAuthRequired, "")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"user": acc.Public()})
}

func (s *Server) setSessionCookies(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, s.cookie(AccessCookie, sess.Tokens.Access, s.opts.AccessMaxAge))
	http.SetCookie(w, s.cookie(RefreshCookie, sess.Tokens.Refresh, s.opts.RefreshMaxAge))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := s.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (s *Server) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.CookiePath,
		Domain:   s.opts.CookieDomain,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	}
}
