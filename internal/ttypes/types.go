// Package ttypes contains shared types and interfaces for the studio.
// This package is used to break import cycles between tts, engines, audio, cache and queue packages.
package ttypes

import (
	"context"
	"fmt"
	"time"
)

// EngineType represents the synthesis backend selection
type EngineType string

const (
	// EngineGateway talks to the studio gateway (/tts/synthesize task envelope)
	EngineGateway EngineType = "gateway"

	// EngineAivis talks to an AivisSpeech (VOICEVOX-compatible) engine directly
	EngineAivis EngineType = "aivis"

	// EngineNone represents no engine selected
	EngineNone EngineType = ""
)

// State represents the play-all session state
type State int

const (
	// StateIdle indicates no play-all session exists
	StateIdle State = iota

	// StateGenerating indicates lines are being synthesized
	StateGenerating

	// StatePlaying indicates queued audio is playing
	StatePlaying

	// StatePaused indicates playback is paused in place
	StatePaused
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateIdle:       {StateGenerating},
	StateGenerating: {StatePlaying, StateIdle},
	StatePlaying:    {StatePaused, StatePlaying, StateIdle},
	StatePaused:     {StatePlaying, StateIdle},
}

// CanTransition reports whether moving from s to next is a legal transition.
// Playing to Playing is legal: it is how the session advances between entries.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// LineStatus is the generation status of a line
type LineStatus string

const (
	// StatusNone means no generation has been attempted
	StatusNone LineStatus = ""

	// StatusPending means the line is scheduled for generation
	StatusPending LineStatus = "pending"

	// StatusProcessing means synthesis is in flight
	StatusProcessing LineStatus = "processing"

	// StatusDone means audio for the current text is cached
	StatusDone LineStatus = "done"

	// StatusError means the last generation attempt failed
	StatusError LineStatus = "error"
)

// Line is one unit of user text scheduled for independent synthesis and playback.
type Line struct {
	// ID is stable for the lifetime of the line list
	ID string

	// Text is the trimmed, non-empty line content
	Text string

	// Status of the latest generation attempt
	Status LineStatus

	// Error holds the message of the latest failed attempt
	Error string
}

// Voice is a backend speaker style that renders text to audio.
type Voice struct {
	ID        string
	Name      string
	SpeakerID int
}

// AudioSettings are the voice controls applied to every synthesis request.
type AudioSettings struct {
	SpeedScale      float64
	PitchScale      float64
	IntonationScale float64
	VolumeScale     float64
}

// DefaultAudioSettings returns neutral voice controls.
func DefaultAudioSettings() AudioSettings {
	return AudioSettings{
		SpeedScale:      1.0,
		PitchScale:      0.0,
		IntonationScale: 1.0,
		VolumeScale:     1.0,
	}
}

// Validate checks every control against its allowed range.
func (s AudioSettings) Validate() error {
	switch {
	case s.SpeedScale < 0.5 || s.SpeedScale > 2.0:
		return fmt.Errorf("speed scale must be between 0.5 and 2.0, got %.2f", s.SpeedScale)
	case s.PitchScale < -1.0 || s.PitchScale > 1.0:
		return fmt.Errorf("pitch scale must be between -1.0 and 1.0, got %.2f", s.PitchScale)
	case s.IntonationScale < 0 || s.IntonationScale > 2.0:
		return fmt.Errorf("intonation scale must be between 0.0 and 2.0, got %.2f", s.IntonationScale)
	case s.VolumeScale < 0 || s.VolumeScale > 2.0:
		return fmt.Errorf("volume scale must be between 0.0 and 2.0, got %.2f", s.VolumeScale)
	}
	return nil
}

// EndReason says why a playback finished.
type EndReason int

const (
	// EndNatural means the audio played to its end
	EndNatural EndReason = iota

	// EndStopped means playback was halted or replaced
	EndStopped

	// EndFailed means the device gave up mid-playback
	EndFailed
)

// String returns the string representation of the reason
func (r EndReason) String() string {
	switch r {
	case EndNatural:
		return "ended"
	case EndStopped:
		return "stopped"
	case EndFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PlaybackEnd is delivered exactly once per started playback.
type PlaybackEnd struct {
	Reason EndReason
	Err    error
}

// EngineInfo describes engine capabilities and configuration.
type EngineInfo struct {
	Name     string // Engine name (e.g., "gateway", "aivis")
	URL      string // Base URL of the backend
	IsOnline bool   // Whether the engine is a remote service
}

// Synthesizer turns one line of text into an encoded WAV payload.
type Synthesizer interface {
	// Synthesize renders text with the given voice and settings.
	// Cancellation of ctx yields an error that matches tts.ErrCanceled.
	Synthesize(ctx context.Context, text string, voice Voice, settings AudioSettings) ([]byte, error)
}

// TTSEngine is a Synthesizer that can also enumerate its voices.
type TTSEngine interface {
	Synthesizer

	// Voices lists the speaker styles the backend offers.
	Voices(ctx context.Context) ([]Voice, error)

	// GetInfo returns engine capabilities and configuration.
	GetInfo() EngineInfo

	// Close releases any resources held by the engine.
	Close() error
}

// AudioPlayer defines the contract for the audio output device.
type AudioPlayer interface {
	// Play halts any active playback, then starts the given WAV payload.
	// The returned channel receives exactly one PlaybackEnd.
	Play(audio []byte) (<-chan PlaybackEnd, error)

	// Pause pauses the current playback.
	Pause() error

	// Resume resumes paused playback.
	Resume() error

	// Stop halts playback and resets position.
	Stop() error

	// IsPlaying returns whether audio is currently playing.
	IsPlaying() bool

	// GetPosition returns the current playback position.
	GetPosition() time.Duration

	// SetVolume sets the playback volume (0.0 to 1.0).
	SetVolume(volume float64) error

	// Close releases audio device and resources.
	Close() error
}

// AudioPreparer is implemented by devices that can decode a payload ahead
// of Play. Play of the same slice then only has to start the output.
type AudioPreparer interface {
	Prepare(audio []byte) error
}

// AudioCache maps line ids to their most recent synthesized payload.
type AudioCache interface {
	// Get retrieves cached audio for the given line.
	Get(lineID string) ([]byte, bool)

	// Put stores audio for the line, replacing any previous payload.
	Put(lineID string, audio []byte) error

	// Delete removes the cached entry for the given line.
	Delete(lineID string) error

	// Clear removes all cached entries.
	Clear() error

	// Size returns the current cache size in bytes.
	Size() int64

	// Stats returns cache statistics.
	Stats() CacheStats
}

// CacheStats provides cache performance metrics.
type CacheStats struct {
	Hits      int64 // Number of cache hits
	Misses    int64 // Number of cache misses
	Items     int   // Number of cached lines
	Size      int64 // Stored size in bytes
	RawSize   int64 // Payload size before compression
	Evictions int64 // Entries removed by Delete or replaced by Put
}

// Progress is a snapshot of the play-all session.
type Progress struct {
	// State of the session
	State State

	// CurrentIndex is the queue position being played
	CurrentIndex int

	// QueueLength is the number of successfully synthesized entries
	QueueLength int

	// LineID is the line behind CurrentIndex, empty when idle
	LineID string

	// Speed is the playback speed multiplier for the next generation
	Speed float64
}
