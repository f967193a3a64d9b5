package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/NordCoder/posecoach/internal/domain"
)

var ErrAccuracy = fmt.Errorf("accuracy must be a number between %d and %d: %w", MinAccuracy, MaxAccuracy, domain.ErrValidation)

// ParseAccuracy accepts a JSON number or a numeric JSON string, rounds it
// half-up and rejects anything outside [MinAccuracy, MaxAccuracy].
func ParseAccuracy(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, ErrAccuracy
	}

	var f float64
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, ErrAccuracy
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, ErrAccuracy
		}
		f = v
	default:
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, ErrAccuracy
		}
	}
	return ValidateAccuracy(f)
}

func ValidateAccuracy(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrAccuracy
	}
	n := int(math.Floor(f + 0.5))
	if n < MinAccuracy || n > MaxAccuracy {
		return 0, ErrAccuracy
	}
	return n, nil
}
