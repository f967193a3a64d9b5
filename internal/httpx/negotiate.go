package httpx

import (
	"mime"
	"net/http"
	"strings"
)

type Format int

const (
	FormatJSON Format = iota
	FormatHTML
)

func (f Format) String() string {
	if f == FormatHTML {
		return "html"
	}
	return "json"
}

// Negotiate decides whether the caller is a browser form/page (HTML) or an API
// client (JSON). Handlers must not inspect Accept or Content-Type themselves.
func Negotiate(r *http.Request) Format {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return FormatHTML
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil && (mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data") {
			return FormatHTML
		}
	}
	q := r.URL.Query()
	if q.Get("redirect") == "1" || q.Get("html") == "1" {
		return FormatHTML
	}
	return FormatJSON
}
