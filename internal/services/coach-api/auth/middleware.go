package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	authcore "github.com/NordCoder/posecoach/internal/auth"
	"github.com/NordCoder/posecoach/internal/domain"
	domainauth "github.com/NordCoder/posecoach/internal/domain/auth"
	"github.com/NordCoder/posecoach/internal/domain/user"
	"github.com/NordCoder/posecoach/internal/httpx"
	"go.uber.org/zap"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"

	LoginPage = "/auth/login"
)

var ErrAuthRequired = fmt.Errorf("Authentication required: %w", domain.ErrAuthentication)

type ctxKey int

const (
	identityKey ctxKey = iota + 1
	accountKey
)

func WithIdentity(ctx context.Context, id domainauth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom reports the caller resolved by Identify. false means anonymous.
func IdentityFrom(ctx context.Context) (domainauth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(domainauth.Identity)
	return id, ok
}

func AccountFrom(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(accountKey).(*user.User)
	return u, ok && u != nil
}

type Middleware struct {
	tokens domainauth.Tokens
	users  user.Repo
	log    *zap.Logger
}

func NewMiddleware(tokens domainauth.Tokens, users user.Repo, log *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, users: users, log: log}
}

// Identify attaches the caller's identity when a valid access token is
// presented, either as a bearer header or as the access cookie. It never
// rejects a request.
func (m *Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := authcore.Bearer(r)
		if raw == "" {
			if c, err := r.Cookie(AccessCookie); err == nil {
				raw = c.Value
			}
		}
		if raw != "" {
			claims, err := m.tokens.Verify(raw, domainauth.KindAccess)
			if err == nil {
				r = r.WithContext(WithIdentity(r.Context(), claims.Identity))
			} else if errors.Is(err, domain.ErrConfiguration) {
				m.log.Debug("access token ignored, token service not configured")
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Require rejects anonymous callers and loads the current account.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			httpx.Fail(w, r, m.log, ErrAuthRequired, LoginPage)
			return
		}
		acc, err := m.users.GetByID(r.Context(), id.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				err = ErrAuthRequired
			}
			httpx.Fail(w, r, m.log, err, LoginPage)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, acc)))
	})
}

// RequirePage sends anonymous visitors to the landing page with the login
// dialog open and a way back.
func (m *Middleware) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			httpx.Redirect(w, r, LoginRedirect(r.URL.Path))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func LoginRedirect(next string) string {
	return "/?login=1&auto=1&next=" + strings.ReplaceAll(url.QueryEscape(next), "%2F", "/")
}
