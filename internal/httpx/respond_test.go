package httpx

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNegotiate(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		ctype  string
		target string
		want   Format
	}{
		{name: "api default", target: "/auth/login", want: FormatJSON},
		{name: "json body", ctype: "application/json", target: "/auth/login", want: FormatJSON},
		{name: "browser navigation", accept: "text/html,application/xhtml+xml", target: "/", want: FormatHTML},
		{name: "form post", ctype: "application/x-www-form-urlencoded", target: "/auth/login", want: FormatHTML},
		{name: "multipart post", ctype: "multipart/form-data; boundary=x", target: "/auth/login", want: FormatHTML},
		{name: "redirect flag", target: "/auth/login?redirect=1", want: FormatHTML},
		{name: "html flag", target: "/auth/login?html=1", want: FormatHTML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, nil)
			if tt.accept != "" {
				r.Header.Set("Accept", tt.accept)
			}
			if tt.ctype != "" {
				r.Header.Set("Content-Type", tt.ctype)
			}
			assert.Equal(t, tt.want, Negotiate(r))
		})
	}
}

func TestStatusAndPublicMessage(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("username is required: %w", domain.ErrValidation), http.StatusBadRequest, "username is required"},
		{fmt.Errorf("user already exists: %w", domain.ErrDuplicate), http.StatusConflict, "user already exists"},
		{fmt.Errorf("invalid credentials: %w", domain.ErrAuthentication), http.StatusUnauthorized, "invalid credentials"},
		{fmt.Errorf("slow down: %w", domain.ErrRateLimited), http.StatusTooManyRequests, "slow down"},
		{fmt.Errorf("user: %w", domain.ErrNotFound), http.StatusNotFound, "user"},
		{fmt.Errorf("pose: dial tcp: %w", domain.ErrRemoteService), http.StatusBadGateway, "Pose analysis service unavailable"},
		{fmt.Errorf("secrets: %w", domain.ErrConfiguration), http.StatusInternalServerError, "Server auth not configured"},
		{fmt.Errorf("insert: conn refused: %w", domain.ErrPersistence), http.StatusInternalServerError, "Internal server error"},
		{fmt.Errorf("something odd"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusFor(tt.err), tt.err.Error())
		assert.Equal(t, tt.msg, PublicMessage(tt.err), tt.err.Error())
	}
}

func TestFailJSONAndHTML(t *testing.T) {
	err := fmt.Errorf("invalid credentials: %w", domain.ErrAuthentication)

	r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	rec := httptest.NewRecorder()
	Fail(rec, r, zap.NewNop(), err, "/auth/login")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"invalid credentials"}`, rec.Body.String())

	r = httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	Fail(rec, r, zap.NewNop(), err, "/auth/login?next=/pose")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?error=invalid+credentials&next=%2Fpose", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	Fail(rec, r, nil, err, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"/pose":                 "/pose",
		"/dashboard?tab=stats":  "/dashboard?tab=stats",
		"":                      "/dashboard",
		"//evil.example":        "/dashboard",
		"/\\evil.example":       "/dashboard",
		"https://evil.example/": "/dashboard",
		"dashboard":             "/dashboard",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeNext(in, "/dashboard"), in)
	}
}

func TestWithQuery(t *testing.T) {
	assert.Equal(t, "/auth/register?error=taken+name", WithQuery("/auth/register", "error", "taken name"))
	assert.Equal(t, "/?error=x&login=1", WithQuery("/?login=1", "error", "x"))
}

func TestDecodeBody(t *testing.T) {
	type input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("username=jane&password=secret+1"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var got input
	require.NoError(t, DecodeBody(httptest.NewRecorder(), r, &got))
	assert.Equal(t, input{Username: "jane", Password: "secret 1"}, got)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"joe","extra":1}`))
	r.Header.Set("Content-Type", "application/json")
	got = input{}
	require.NoError(t, DecodeBody(httptest.NewRecorder(), r, &got))
	assert.Equal(t, "joe", got.Username)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	got = input{Username: "kept"}
	require.NoError(t, DecodeBody(httptest.NewRecorder(), r, &got))
	assert.Equal(t, "kept", got.Username)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":`))
	require.ErrorIs(t, DecodeBody(httptest.NewRecorder(), r, &got), domain.ErrValidation)
}
