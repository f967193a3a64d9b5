package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/NordCoder/posecoach/internal/obs"
	"go.uber.org/zap"
)

const maxBodyBytes = 8 << 20

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// DecodeJSON reads a JSON body into dst. Unknown fields are ignored and an
// empty body leaves dst untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", domain.ErrValidation)
	}
	return nil
}

// DecodeBody is DecodeJSON that also understands HTML form posts. Form fields
// are matched against dst's json tags and always arrive as strings.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
	default:
		return DecodeJSON(w, r, dst)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var err error
	if mt == "multipart/form-data" {
		err = r.ParseMultipartForm(maxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return fmt.Errorf("invalid form body: %w", domain.ErrValidation)
	}

	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("invalid form body: %w", domain.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid form body: %w", domain.ErrValidation)
	}
	return nil
}

// StatusFor maps an error class to its HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrRemoteService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text a client may see for err. Server-side failures
// get a fixed message so internal details never leave the process.
func PublicMessage(err error) string {
	switch StatusFor(err) {
	case http.StatusInternalServerError:
		if errors.Is(err, domain.ErrConfiguration) {
			return "Server auth not configured"
		}
		return "Internal server error"
	case http.StatusBadGateway:
		return "Pose analysis service unavailable"
	default:
		return trimClass(err.Error())
	}
}

var classes = []error{
	domain.ErrValidation, domain.ErrDuplicate, domain.ErrNotFound,
	domain.ErrAuthentication, domain.ErrRateLimited,
}

// trimClass drops the ": <class>" suffix added when wrapping a sentinel.
func trimClass(msg string) string {
	for _, c := range classes {
		if t := strings.TrimSuffix(msg, ": "+c.Error()); t != msg {
			return t
		}
	}
	return msg
}

// Fail is the single error boundary for handlers. JSON callers get
// {"success":false,"message":...}; HTML callers are redirected to
// redirectTo with an error query parameter when redirectTo is set.
func Fail(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, redirectTo string) {
	status := StatusFor(err)
	l := obs.WithTrace(r.Context(), log)
	if l != nil {
		fields := []zap.Field{
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.Error(err),
		}
		if status >= http.StatusInternalServerError {
			l.Error("request failed", fields...)
		} else {
			l.Debug("request rejected", fields...)
		}
	}

	msg := PublicMessage(err)
	if redirectTo != "" && Negotiate(r) == FormatHTML {
		Redirect(w, r, WithQuery(redirectTo, "error", msg))
		return
	}
	WriteJSON(w, status, map[string]any{"success": false, "message": msg})
}

func Redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// WithQuery appends key=value to a relative URL.
func WithQuery(to, key, value string) string {
	u, err := url.Parse(to)
	if err != nil {
		return to
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// SafeNext keeps only same-site absolute paths, falling back to def.
func SafeNext(next, def string) string {
	if len(next) < 1 || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return def
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return def
	}
	return next
}
