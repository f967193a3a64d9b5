// Package posecli talks to the external pose-analysis service.
package posecli

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	config "github.com/NordCoder/posecoach/internal/config/coach-api"
	"github.com/NordCoder/posecoach/internal/domain"
	"github.com/NordCoder/posecoach/internal/domain/pose"
	"github.com/NordCoder/posecoach/internal/obs"
)

const (
	analyzePath   = "/analyze_pose/"
	frameField    = "file"
	frameFilename = "frame.jpg"
	maxReplyBytes = 4 << 20
	// maxDetailBytes bounds the error text kept from a failed reply.
	maxDetailBytes = 256
)

type Client struct {
	c    *http.Client
	base string
}

var _ pose.Analyzer = (*Client)(nil)

func New(cfg config.Pose) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
			MinVersion:         tls.VersionTLS12,
		},
	}
	return &Client{
		c:    &http.Client{Timeout: timeout, Transport: obs.HTTPTransport(transport)},
		base: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// RemoteError is a non-2xx reply from a reachable pose service.
type RemoteError struct {
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("pose service: status %d: %s", e.Status, e.Detail)
}

func (e *RemoteError) Unwrap() error { return domain.ErrRemoteService }

// Rejected reports whether the service turned the frame down, as opposed to
// failing on its own side.
func (e *RemoteError) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// Analyze uploads one JPEG frame. Any transport failure, timeout or non-2xx
// reply is reported as domain.ErrRemoteService; non-2xx replies also carry a
// *RemoteError.
func (cl *Client) Analyze(ctx context.Context, frame []byte) (*pose.Analysis, error) {
	body, contentType, err := encodeFrame(frame)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.base+analyzePath, body)
	if err != nil {
		return nil, fmt.Errorf("pose request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := cl.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pose service: %w: %w", err, domain.ErrRemoteService)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("pose service: read reply: %w: %w", err, domain.ErrRemoteService)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{Status: resp.StatusCode, Detail: remoteDetail(raw)}
	}

	var out pose.Analysis
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pose service: decode reply: %w: %w", err, domain.ErrRemoteService)
	}
	return &out, nil
}

func encodeFrame(frame []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, frameField, frameFilename))
	h.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("pose multipart: %w", err)
	}
	if _, err := part.Write(frame); err != nil {
		return nil, "", fmt.Errorf("pose multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("pose multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// remoteDetail pulls "detail" or "error" out of an error reply and falls back
// to the raw text.
func remoteDetail(raw []byte) string {
	s := extractDetail(raw)
	if len(s) > maxDetailBytes {
		s = strings.ToValidUTF8(s[:maxDetailBytes], "")
	}
	return s
}

func extractDetail(raw []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if len(e.Detail) > 0 {
			var s string
			if json.Unmarshal(e.Detail, &s) == nil {
				return s
			}
			return string(e.Detail)
		}
		if e.Error != "" {
			return e.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "empty reply"
	}
	return s
}

var ErrBadImage = fmt.Errorf("invalid image data: %w", domain.ErrValidation)

// DecodeDataURL accepts "data:image/jpeg;base64,<payload>" or a bare base64
// payload and returns the decoded bytes.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrBadImage
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, ErrBadImage
		}
		s = s[i+1:]
	}
	b, err := decodeBase64(s)
	if err != nil || len(b) == 0 {
		return nil, ErrBadImage
	}
	return b, nil
}

func decodeBase64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
