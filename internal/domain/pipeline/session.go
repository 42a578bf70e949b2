package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// State is the user-visible orchestrator state.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	}
	return "unknown"
}

// Session is the sealed audio of one Start/Stop gesture. It exists only for
// the duration of the pipeline run and is never persisted.
type Session struct {
	ID        string
	Samples   []float32
	StartedAt time.Time
	SealedAt  time.Time
}

func newSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
}
