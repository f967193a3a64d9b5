package pose

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/NordCoder/posecoach/internal/domain/pose"
	"github.com/NordCoder/posecoach/internal/httpx"
	"github.com/NordCoder/posecoach/internal/obs"
	"github.com/NordCoder/posecoach/internal/posecli"
	"github.com/NordCoder/posecoach/internal/security"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRequestBytes = 8 << 20

type Server struct {
	analyzer pose.Analyzer
	clean    *security.TextSanitizer
	log      *zap.Logger
}

func NewServer(analyzer pose.Analyzer, log *zap.Logger) *Server {
	return &Server{analyzer: analyzer, clean: security.NewTextSanitizer(), log: log}
}

func (s *Server) Routes(r chi.Router) {
	r.Post("/api/pose", s.Analyze)
}

type analyzeRequest struct {
	Image string `json:"image"`
}

type analyzeResponse struct {
	Success   bool            `json:"success"`
	Feedback  string          `json:"feedback"`
	Accuracy  float64         `json:"accuracy"`
	Landmarks json.RawMessage `json:"landmarks"`
}

// Analyze forwards one webcam frame to the pose service. Failures are
// reported in the feedback field, which the front end shows verbatim.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			feedback(w, http.StatusRequestEntityTooLarge, "Image too large")
			return
		}
		feedback(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		feedback(w, http.StatusBadRequest, "No image provided")
		return
	}

	frame, err := posecli.DecodeDataURL(req.Image)
	if err != nil {
		feedback(w, http.StatusBadRequest, httpx.PublicMessage(err))
		return
	}

	log := obs.WithTrace(r.Context(), s.log)
	res, err := s.analyzer.Analyze(r.Context(), frame)
	if err != nil {
		status, msg := s.failure(err)
		log.Warn("pose.analyze failed", zap.Int("status", status), zap.Int("frame_bytes", len(frame)), zap.Error(err))
		feedback(w, status, msg)
		return
	}
	log.Debug("pose.analyze", zap.Float64("accuracy", res.Accuracy), zap.Bool("success", res.Success))

	landmarks := res.Landmarks
	if len(landmarks) == 0 {
		landmarks = json.RawMessage("null")
	}
	httpx.WriteJSON(w, http.StatusOK, analyzeResponse{
		Success:   res.Success,
		Feedback:  res.Feedback,
		Accuracy:  res.Accuracy,
		Landmarks: landmarks,
	})
}

// failure maps an analyzer error to a response. A frame the pose service
// refused is the caller's problem and its reason is passed on; anything else
// on the remote side stays behind the generic message.
func (s *Server) failure(err error) (int, string) {
	var remote *posecli.RemoteError
	if errors.As(err, &remote) && remote.Rejected() {
		if msg := s.clean.Clean(remote.Detail); msg != "" {
			return http.StatusBadRequest, msg
		}
	}
	return httpx.StatusFor(err), httpx.PublicMessage(err)
}

func feedback(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, map[string]any{"success": false, "feedback": msg})
}
