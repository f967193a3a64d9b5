package pose

import (
	"context"
	"encoding/json"
)

type Analysis struct {
	Success   bool            `json:"success"`
	Feedback  string          `json:"feedback"`
	Accuracy  float64         `json:"accuracy"`
	Landmarks json.RawMessage `json:"landmarks,omitempty"`
}

// Analyzer scores a single JPEG frame.
type Analyzer interface {
	Analyze(ctx context.Context, frame []byte) (*Analysis, error)
}
