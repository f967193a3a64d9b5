// Package security holds input hygiene shared by the HTTP services.
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer reduces user-supplied text to plain text: tags are dropped,
// entities are decoded and surrounding space is trimmed. Output escaping is
// left to the renderer.
type TextSanitizer struct {
	policy *bluemonday.Policy
}

func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

func (s *TextSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
