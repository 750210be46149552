package tts

import (
	"time"

	"github.com/miovo/miovo/internal/ttypes"
)

// Config represents studio configuration
type Config struct {
	// Engine is the selected synthesis backend
	Engine ttypes.EngineType

	// URL is the backend base URL
	URL string

	// Timeout bounds a single synthesis request; zero means no timeout
	Timeout time.Duration

	// RequestsPerMinute throttles synthesis; zero disables the limiter
	RequestsPerMinute int

	// Settings are the initial voice controls
	Settings ttypes.AudioSettings

	// Voice is the preferred voice id, applied once voices are loaded
	Voice string

	// ExportDir is where WAV exports are written
	ExportDir string
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Engine:   ttypes.EngineGateway,
		URL:      "http://localhost:8000",
		Settings: ttypes.DefaultAudioSettings(),
	}
}

// EventType identifies what an Event reports
type EventType int

const (
	// EventStateChanged is sent whenever the play-all state changes
	EventStateChanged EventType = iota

	// EventHighlight names the line now playing; an empty LineID means none
	EventHighlight

	// EventLineStatus is sent when a line's generation status changes
	EventLineStatus

	// EventError carries the newest last-error value
	EventError

	// EventCompleted is sent when play-all reaches the end of its queue
	EventCompleted
)

// String returns the string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventStateChanged:
		return "state"
	case EventHighlight:
		return "highlight"
	case EventLineStatus:
		return "line-status"
	case EventError:
		return "error"
	case EventCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Event is a notification for the UI.
type Event struct {
	Type   EventType
	State  ttypes.State
	LineID string
	Status ttypes.LineStatus
	Err    error
}

// EmitFunc receives events. Implementations must not block and must not
// call back into the emitter, since events can be sent while locks are held.
type EmitFunc func(Event)

func (f EmitFunc) emit(e Event) {
	if f != nil {
		f(e)
	}
}
