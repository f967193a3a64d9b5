package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultExercise = "General Pose"
	DefaultFeedback = "No feedback available"

	MinAccuracy = 0
	MaxAccuracy = 100

	// MaxDuration caps a session at one day, in seconds.
	MaxDuration = 24 * 60 * 60
)

// Record is one practice attempt. Records are append-only.
type Record struct {
	ID         uuid.UUID
	Owner      Owner
	Exercise   string
	Accuracy   int
	Feedback   string
	Landmarks  json.RawMessage
	Duration   int
	OccurredAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Progress is the legacy accuracy history kept next to session records.
type Progress struct {
	ID       uuid.UUID
	Owner    Owner
	Accuracy int
	Date     time.Time
}

// Input is what a caller submits when saving a session.
type Input struct {
	Exercise  string
	Accuracy  json.RawMessage
	Feedback  string
	Landmarks json.RawMessage
	Duration  int
}
