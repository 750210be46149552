package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/audio"
	"github.com/miovo/miovo/internal/observe"
	"github.com/miovo/miovo/internal/ttypes"
)

// fallbackVoices are offered when the backend lists no voices.
var fallbackVoices = []ttypes.Voice{
	{ID: "default-0", Name: "Default", SpeakerID: 0},
	{ID: "default-1", Name: "Female", SpeakerID: 1},
	{ID: "default-2", Name: "Male", SpeakerID: 2},
}

// FallbackVoices returns the built-in placeholder voices.
func FallbackVoices() []ttypes.Voice {
	out := make([]ttypes.Voice, len(fallbackVoices))
	copy(out, fallbackVoices)
	return out
}

// StudioConfig wires a Studio.
type StudioConfig struct {
	Engine ttypes.TTSEngine
	Device ttypes.AudioPlayer
	Cache  ttypes.AudioCache

	// Settings are the initial voice controls; zero means defaults
	Settings ttypes.AudioSettings

	// PreferredVoice is selected after LoadVoices when it exists
	PreferredVoice string

	// ExportDir receives WAV exports
	ExportDir string

	// EventBuffer is the capacity of the Events channel (default 64)
	EventBuffer int

	Metrics *observe.Metrics
}

// Studio is one reading session: the lines, the voice, the settings, the
// cached audio, single-line playback and the play-all controller.
type Studio struct {
	mu        sync.RWMutex
	voices    []ttypes.Voice
	voice     int
	settings  ttypes.AudioSettings
	preferred string
	exportDir string

	lines   *LineStore
	engine  ttypes.TTSEngine
	cache   ttypes.AudioCache
	player  *LinePlayer
	ctrl    *Controller
	metrics *observe.Metrics

	errMu   sync.Mutex
	lastErr error

	events chan Event
	now    func() time.Time
}

// NewStudio creates a studio with no lines and no voices loaded.
func NewStudio(config StudioConfig) (*Studio, error) {
	if config.Engine == nil {
		return nil, ErrNoEngineConfigured
	}
	if config.Device == nil {
		return nil, ErrAudioDeviceUnavailable
	}
	if config.Cache == nil {
		return nil, errors.New("studio needs an audio cache")
	}
	if config.Settings == (ttypes.AudioSettings{}) {
		config.Settings = ttypes.DefaultAudioSettings()
	}
	if err := config.Settings.Validate(); err != nil {
		return nil, NewTTSError(ErrorCodeInvalidInput, "invalid voice settings", err)
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 64
	}
	if config.Metrics == nil {
		config.Metrics = observe.DefaultMetrics()
	}

	s := &Studio{
		voice:     -1,
		settings:  config.Settings,
		preferred: config.PreferredVoice,
		exportDir: config.ExportDir,
		lines:     NewLineStore(),
		engine:    config.Engine,
		cache:     config.Cache,
		metrics:   config.Metrics,
		events:    make(chan Event, config.EventBuffer),
		now:       time.Now,
	}
	s.player = NewLinePlayer(config.Device, s.handleEvent)
	s.ctrl = NewController(s, config.Engine, s.player,
		WithCache(config.Cache),
		WithMetrics(config.Metrics),
		WithEmitter(s.handleEvent),
	)
	return s, nil
}

// Events delivers state, highlight, line status and error notifications.
func (s *Studio) Events() <-chan Event {
	return s.events
}

// handleEvent records errors and forwards every event without blocking.
func (s *Studio) handleEvent(e Event) {
	if e.Type == EventError {
		s.errMu.Lock()
		s.lastErr = e.Err
		s.errMu.Unlock()
	}
	select {
	case s.events <- e:
	default:
		log.Warn("event dropped, consumer is behind", "type", e.Type)
	}
}

func (s *Studio) setError(err error) {
	if err == nil || IsCanceled(err) {
		return
	}
	s.handleEvent(Event{Type: EventError, Err: err})
}

// LastError returns the most recent user-facing error. Later errors
// overwrite earlier ones.
func (s *Studio) LastError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// ClearError dismisses the last error.
func (s *Studio) ClearError() {
	s.errMu.Lock()
	s.lastErr = nil
	s.errMu.Unlock()
	s.handleEvent(Event{Type: EventError})
}

// Controller returns the play-all controller.
func (s *Studio) Controller() *Controller {
	return s.ctrl
}

// Engine returns the synthesis backend.
func (s *Studio) Engine() ttypes.TTSEngine {
	return s.engine
}

// Voices

// LoadVoices fetches the backend's voices. An empty listing or a failure
// falls back to the built-in voices; a failure is also recorded as the
// last error and returned.
func (s *Studio) LoadVoices(ctx context.Context) ([]ttypes.Voice, error) {
	voices, err := s.engine.Voices(ctx)
	if err != nil {
		log.Warn("cannot list voices, using fallback", "error", err)
		s.setError(err)
	}
	if len(voices) == 0 {
		voices = FallbackVoices()
	}

	s.mu.Lock()
	s.voices = voices
	s.voice = 0
	for i, v := range voices {
		if v.ID == s.preferred {
			s.voice = i
			break
		}
	}
	s.mu.Unlock()

	return voices, err
}

// Voices returns the loaded voices.
func (s *Studio) Voices() []ttypes.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ttypes.Voice, len(s.voices))
	copy(out, s.voices)
	return out
}

// Voice implements LineSource.
func (s *Studio) Voice() (ttypes.Voice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.voice < 0 || s.voice >= len(s.voices) {
		return ttypes.Voice{}, false
	}
	return s.voices[s.voice], true
}

// SelectVoice selects a loaded voice by id.
func (s *Studio) SelectVoice(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range s.voices {
		if v.ID == id {
			s.voice = i
			return nil
		}
	}
	return fmt.Errorf("unknown voice %q", id)
}

// SelectVoicePreset selects the n-th loaded voice, counting from 1. It
// reports false when there is no such voice.
func (s *Studio) SelectVoicePreset(n int) (ttypes.Voice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 || n > len(s.voices) {
		return ttypes.Voice{}, false
	}
	s.voice = n - 1
	return s.voices[s.voice], true
}

// Settings

// Settings implements LineSource.
func (s *Studio) Settings() ttypes.AudioSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces the voice controls used by later requests.
func (s *Studio) SetSettings(settings ttypes.AudioSettings) error {
	if err := settings.Validate(); err != nil {
		return NewTTSError(ErrorCodeInvalidInput, "invalid voice settings", err)
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Lines

// Lines implements LineSource.
func (s *Studio) Lines() []ttypes.Line {
	return s.lines.Lines()
}

// Line implements LineSource.
func (s *Studio) Line(id string) (ttypes.Line, bool) {
	return s.lines.Get(id)
}

// SetLineStatus implements LineSource.
func (s *Studio) SetLineStatus(id string, status ttypes.LineStatus, errMsg string) {
	if err := s.lines.SetStatus(id, status, errMsg); err != nil {
		log.Debug("status for unknown line", "line", id)
	}
}

// LineStore exposes selection and lookups.
func (s *Studio) LineStore() *LineStore {
	return s.lines
}

// Paste replaces the whole line list. Any session is stopped and every
// cached payload is dropped, since the old line ids are gone.
func (s *Studio) Paste(text string) []ttypes.Line {
	s.ctrl.Stop()
	s.player.Stop(s)
	if err := s.cache.Clear(); err != nil {
		log.Warn("cannot clear audio cache", "error", err)
	}
	lines := s.lines.Replace(text)
	log.Debug("lines replaced", "count", len(lines))
	return lines
}

// EditLine changes a line's text and forgets its cached audio.
func (s *Studio) EditLine(id, text string) error {
	if err := s.lines.UpdateText(id, text); err != nil {
		s.setError(err)
		return err
	}
	if err := s.cache.Delete(id); err != nil {
		log.Debug("cache delete failed", "line", id, "error", err)
	}
	s.handleEvent(Event{Type: EventLineStatus, LineID: id, Status: ttypes.StatusNone})
	return nil
}

// Single-line generation and playback

// Generate synthesizes one line with the current settings and caches the
// result.
func (s *Studio) Generate(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewCanceledError(err)
	}
	line, ok := s.lines.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLineNotFound, id)
	}
	voice, ok := s.Voice()
	if !ok {
		s.setError(ErrNoVoiceSelected)
		return nil, ErrNoVoiceSelected
	}

	s.setLineStatus(id, ttypes.StatusProcessing, "")
	audio, err := s.engine.Synthesize(ctx, line.Text, voice, s.Settings())
	if err != nil {
		if IsCanceled(err) {
			s.setLineStatus(id, ttypes.StatusNone, "")
			return nil, err
		}
		s.setLineStatus(id, ttypes.StatusError, err.Error())
		s.setError(err)
		return nil, err
	}

	// The text may have been edited while the request was in flight.
	if cur, ok := s.lines.Get(id); ok && cur.Text == line.Text {
		if err := s.cache.Put(id, audio); err != nil {
			log.Warn("cannot cache audio", "line", id, "error", err)
		}
	}
	s.setLineStatus(id, ttypes.StatusDone, "")
	log.Debug("generated line", "line", id, "bytes", len(audio))
	return audio, nil
}

func (s *Studio) setLineStatus(id string, status ttypes.LineStatus, errMsg string) {
	s.SetLineStatus(id, status, errMsg)
	s.handleEvent(Event{Type: EventLineStatus, LineID: id, Status: status})
}

// PlayLine plays one line, synthesizing it first when nothing is cached.
// Taking the output ends any play-all session.
func (s *Studio) PlayLine(ctx context.Context, id string) error {
	payload, hit := s.cache.Get(id)
	s.metrics.RecordCacheLookup(ctx, hit)
	if !hit {
		var err error
		if payload, err = s.Generate(ctx, id); err != nil {
			return err
		}
	}

	s.player.Prepare(payload)
	err := s.player.Play(s, id, payload, func(end ttypes.PlaybackEnd) {
		if end.Reason == ttypes.EndFailed {
			s.setError(NewPlaybackError("audio device failed", end.Err).WithContext("line", id))
		}
	})
	if err != nil {
		s.setError(err)
		return err
	}
	return nil
}

// StopLine halts single-line playback.
func (s *Studio) StopLine() {
	s.player.Stop(s)
}

// Release implements Owner.
func (s *Studio) Release() {
	log.Debug("single-line playback lost the audio output")
}

// NowPlaying returns the highlighted line, or "".
func (s *Studio) NowPlaying() string {
	return s.player.NowPlaying()
}

// SetVolume sets the output volume (0.0 to 1.0).
func (s *Studio) SetVolume(v float64) error {
	return s.player.SetVolume(v)
}

// Export writes the cached audio of every line, in line order, into one
// WAV file and returns its path and size.
func (s *Studio) Export(ctx context.Context) (string, int64, error) {
	var payloads [][]byte
	for _, line := range s.lines.Lines() {
		if payload, ok := s.cache.Get(line.ID); ok {
			payloads = append(payloads, payload)
		}
	}
	if len(payloads) == 0 {
		s.setError(ErrNothingToExport)
		return "", 0, ErrNothingToExport
	}

	s.mu.RLock()
	dir := s.exportDir
	s.mu.RUnlock()

	path, size, err := audio.Export(dir, payloads, s.now())
	if err != nil {
		err = fmt.Errorf("export failed: %w", err)
		s.setError(err)
		return "", 0, err
	}
	s.metrics.RecordExport(ctx, size)
	log.Info("exported reading", "path", path, "lines", len(payloads), "bytes", size)
	return path, size, nil
}

// Accent and pause editing need phrase-level control the backends do not
// offer; both record an unsupported error.

// AdjustAccent would move the accent of one phrase.
func (s *Studio) AdjustAccent(id string, phrase, accent int) error {
	err := NewTTSError(ErrorCodeUnsupported, "accent adjustment is not available with the current backend", ErrUnsupported).
		WithContext("line", id).
		WithContext("phrase", phrase).
		WithContext("accent", accent)
	s.setError(err)
	return err
}

// InsertPause would add a pause after one phrase.
func (s *Studio) InsertPause(id string, phrase int) error {
	err := NewTTSError(ErrorCodeUnsupported, "pause insertion is not available with the current backend", ErrUnsupported).
		WithContext("line", id).
		WithContext("phrase", phrase)
	s.setError(err)
	return err
}

// CacheStats reports the audio cache.
func (s *Studio) CacheStats() ttypes.CacheStats {
	return s.cache.Stats()
}

// Close stops everything and releases the device and engine.
func (s *Studio) Close() error {
	s.ctrl.Stop()
	s.player.Stop(s)
	err := s.player.Close()
	if cerr := s.engine.Close(); err == nil {
		err = cerr
	}
	return err
}
