package audio

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
	"github.com/miovo/miovo/internal/ttypes"
)

// ErrPlayerClosed is returned by operations on a closed player.
var ErrPlayerClosed = errors.New("player is closed")

// maxPrepared bounds the decoded payloads held for upcoming Play calls.
const maxPrepared = 32

// payloadKey identifies a payload slice by its backing array.
type payloadKey struct {
	data *byte
	n    int
}

func keyOf(audio []byte) payloadKey {
	return payloadKey{data: &audio[0], n: len(audio)}
}

type decoded struct {
	pcm      []byte
	duration time.Duration
}

// Player implements ttypes.AudioPlayer on top of an oto context.
// WAV payloads are decoded to PCM in the device format before playback.
type Player struct {
	// OTO context - initialized once and reused
	context *oto.Context

	mu      sync.Mutex
	current *playback
	closed  bool

	volume atomic.Uint64 // float64 bits

	prepMu    sync.Mutex
	prepared  map[payloadKey]decoded
	prepOrder []payloadKey

	// Configuration
	sampleRate   int
	channels     int
	pollInterval time.Duration
}

// playback is one started payload. Its end is reported exactly once.
type playback struct {
	player *oto.Player

	// pcm stays referenced for as long as oto reads from it
	pcm      []byte
	duration time.Duration

	startedAt time.Time
	elapsed   time.Duration
	paused    bool

	done chan ttypes.PlaybackEnd
	quit chan struct{}
	once sync.Once
}

func (pb *playback) finish(end ttypes.PlaybackEnd) {
	pb.once.Do(func() {
		pb.done <- end
		close(pb.quit)
	})
}

func (pb *playback) position() time.Duration {
	pos := pb.elapsed
	if !pb.paused {
		pos += time.Since(pb.startedAt)
	}
	if pos > pb.duration {
		pos = pb.duration
	}
	return pos
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int // 44100 or 48000 Hz only
	Channels   int // 1 = mono, 2 = stereo
	BufferSize time.Duration

	// PollInterval is how often the end of playback is checked
	PollInterval time.Duration
}

// DefaultPlayerConfig returns the default player configuration.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:   44100,
		Channels:     1, // Mono for speech
		BufferSize:   100 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}
}

// validateConfig validates the player configuration.
func validateConfig(config PlayerConfig) error {
	// OTO only supports specific sample rates reliably
	if config.SampleRate != 44100 && config.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}

	if config.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	return nil
}

// NewPlayer opens the output device. Only one oto context may exist per
// process.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	// Wait for context to be ready
	<-readyChan

	p := &Player{
		context:      ctx,
		sampleRate:   config.SampleRate,
		channels:     config.Channels,
		pollInterval: config.PollInterval,
	}
	p.volume.Store(math.Float64bits(1.0))
	return p, nil
}

// Prepare decodes audio ahead of Play. It does not touch the output.
func (p *Player) Prepare(audio []byte) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}
	key := keyOf(audio)

	p.prepMu.Lock()
	_, ok := p.prepared[key]
	p.prepMu.Unlock()
	if ok {
		return nil
	}

	pcm, duration, err := ToPCM(audio, p.sampleRate, p.channels)
	if err != nil {
		return err
	}

	p.prepMu.Lock()
	defer p.prepMu.Unlock()
	if p.prepared == nil {
		p.prepared = make(map[payloadKey]decoded)
	}
	if _, ok := p.prepared[key]; ok {
		return nil
	}
	if len(p.prepOrder) >= maxPrepared {
		delete(p.prepared, p.prepOrder[0])
		p.prepOrder = p.prepOrder[1:]
	}
	p.prepared[key] = decoded{pcm: pcm, duration: duration}
	p.prepOrder = append(p.prepOrder, key)
	return nil
}

// takePrepared hands over the decoded form of audio if Prepare saw it.
func (p *Player) takePrepared(audio []byte) (decoded, bool) {
	if len(audio) == 0 {
		return decoded{}, false
	}
	key := keyOf(audio)

	p.prepMu.Lock()
	defer p.prepMu.Unlock()
	d, ok := p.prepared[key]
	if ok {
		delete(p.prepared, key)
		p.prepOrder = slices.DeleteFunc(p.prepOrder, func(k payloadKey) bool { return k == key })
	}
	return d, ok
}

// Play halts any active playback and starts audio. The returned channel
// receives exactly one value. Payloads passed to Prepare beforehand are
// not decoded again.
func (p *Player) Play(audio []byte) (<-chan ttypes.PlaybackEnd, error) {
	d, ok := p.takePrepared(audio)
	if !ok {
		var err error
		if d.pcm, d.duration, err = ToPCM(audio, p.sampleRate, p.channels); err != nil {
			return nil, err
		}
	}
	pcm, duration := d.pcm, d.duration

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPlayerClosed
	}
	p.stopLocked()

	player := p.context.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(math.Float64frombits(p.volume.Load()))

	pb := &playback{
		player:    player,
		pcm:       pcm,
		duration:  duration,
		startedAt: time.Now(),
		done:      make(chan ttypes.PlaybackEnd, 1),
		quit:      make(chan struct{}),
	}
	p.current = pb
	player.Play()

	log.Debug("playback started", "duration", duration, "bytes", len(pcm))
	go p.monitor(pb)
	return pb.done, nil
}

// monitor reports the natural end or failure of pb.
func (p *Player) monitor(pb *playback) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pb.quit:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.current != pb {
			p.mu.Unlock()
			return
		}
		if pb.paused {
			p.mu.Unlock()
			continue
		}

		var end *ttypes.PlaybackEnd
		if err := pb.player.Err(); err != nil {
			end = &ttypes.PlaybackEnd{Reason: ttypes.EndFailed, Err: err}
		} else if !pb.player.IsPlaying() {
			end = &ttypes.PlaybackEnd{Reason: ttypes.EndNatural}
		}
		if end != nil {
			_ = pb.player.Close()
			p.current = nil
		}
		p.mu.Unlock()

		if end != nil {
			pb.finish(*end)
			return
		}
	}
}

// Pause pauses the current playback.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPlayerClosed
	}
	pb := p.current
	if pb == nil || pb.paused {
		return errors.New("cannot pause: nothing is playing")
	}
	pb.player.Pause()
	pb.elapsed += time.Since(pb.startedAt)
	pb.paused = true
	return nil
}

// Resume resumes paused playback.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPlayerClosed
	}
	pb := p.current
	if pb == nil || !pb.paused {
		return errors.New("cannot resume: player is not paused")
	}
	pb.startedAt = time.Now()
	pb.paused = false
	pb.player.Play()
	return nil
}

// Stop halts playback and resets position.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	pb := p.current
	if pb == nil {
		return
	}
	p.current = nil
	pb.player.Pause()
	_ = pb.player.Close()
	pb.finish(ttypes.PlaybackEnd{Reason: ttypes.EndStopped})
}

// IsPlaying returns whether audio is currently playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && !p.current.paused
}

// GetPosition returns the current playback position.
func (p *Player) GetPosition() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.position()
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}
	p.volume.Store(math.Float64bits(volume))

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.player.SetVolume(volume)
	}
	return nil
}

// GetVolume returns the current volume.
func (p *Player) GetVolume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Close stops playback. The oto context itself lives until process exit.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true

	p.prepMu.Lock()
	p.prepared, p.prepOrder = nil, nil
	p.prepMu.Unlock()
	return nil
}

var (
	_ ttypes.AudioPlayer   = (*Player)(nil)
	_ ttypes.AudioPreparer = (*Player)(nil)
)
