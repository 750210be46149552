package tts

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/ttypes"
)

// Owner is whoever currently drives the audio output. When another owner
// acquires the output, the previous one is told to let go via Release.
type Owner interface {
	// Release is called after ownership moved away. It must not call back
	// into the LinePlayer.
	Release()
}

// ErrNotOwner is returned when a caller that lost the output tries to use it.
var ErrNotOwner = errors.New("audio output is owned by another player")

// LinePlayer plays one line's audio at a time on the shared output device
// and announces which line is playing.
type LinePlayer struct {
	mu     sync.Mutex
	device ttypes.AudioPlayer
	owner  Owner

	// playID identifies the newest playback; completions of older ones
	// must not touch the highlight.
	playID uint64
	lineID string

	emit EmitFunc
}

// NewLinePlayer wraps an output device.
func NewLinePlayer(device ttypes.AudioPlayer, emit EmitFunc) *LinePlayer {
	return &LinePlayer{device: device, emit: emit}
}

// Acquire hands the output to o. The previous owner, if different, has its
// Release called after the switch, outside the player's lock.
func (p *LinePlayer) Acquire(o Owner) {
	p.mu.Lock()
	prev := p.owner
	p.owner = o
	p.mu.Unlock()

	if prev != nil && prev != o {
		log.Debug("audio output handed over")
		prev.Release()
	}
}

// Owner returns the current owner of the output.
func (p *LinePlayer) Owner() Owner {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owner
}

// NowPlaying returns the highlighted line, or "".
func (p *LinePlayer) NowPlaying() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lineID
}

// Prepare lets the device decode audio ahead of Play. It takes no lock, so
// it may run while the caller holds its own.
func (p *LinePlayer) Prepare(audio []byte) {
	pr, ok := p.device.(ttypes.AudioPreparer)
	if !ok {
		return
	}
	if err := pr.Prepare(audio); err != nil {
		log.Debug("cannot prepare audio", "error", err)
	}
}

// Play acquires the output for o, halts whatever was playing and starts
// audio for lineID. onEnd runs exactly once, on its own goroutine, when this
// playback ends naturally, is stopped or replaced, or fails.
func (p *LinePlayer) Play(o Owner, lineID string, audio []byte, onEnd func(ttypes.PlaybackEnd)) error {
	p.Acquire(o)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.owner != o {
		return ErrNotOwner
	}

	// Stop and reset before starting; overlapping audio is never allowed.
	if err := p.device.Stop(); err != nil {
		log.Debug("stop before play failed", "error", err)
	}

	p.playID++
	id := p.playID

	done, err := p.device.Play(audio)
	if err != nil {
		if p.lineID != "" {
			p.lineID = ""
			p.emit.emit(Event{Type: EventHighlight})
		}
		return NewPlaybackError("device refused to play", err).WithContext("line", lineID)
	}

	p.lineID = lineID
	p.emit.emit(Event{Type: EventHighlight, LineID: lineID})

	go p.watch(id, done, onEnd)
	return nil
}

// watch waits for one playback to end. The highlight is cleared only if
// nothing replaced or stopped the playback in the meantime.
func (p *LinePlayer) watch(id uint64, done <-chan ttypes.PlaybackEnd, onEnd func(ttypes.PlaybackEnd)) {
	end := <-done
	if onEnd != nil {
		onEnd(end)
	}

	if end.Reason == ttypes.EndStopped {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playID == id && p.lineID != "" {
		p.lineID = ""
		p.emit.emit(Event{Type: EventHighlight})
	}
}

// Pause pauses the output if o owns it.
func (p *LinePlayer) Pause(o Owner) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.owner != o {
		return ErrNotOwner
	}
	return p.device.Pause()
}

// Resume continues paused audio if o owns the output.
func (p *LinePlayer) Resume(o Owner) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.owner != o {
		return ErrNotOwner
	}
	if err := p.device.Resume(); err != nil {
		return NewPlaybackError("device refused to resume", err)
	}
	return nil
}

// Stop halts playback if o owns the output and announces that no line is
// playing. It reports whether o was the owner.
func (p *LinePlayer) Stop(o Owner) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.owner != o {
		return false
	}
	if err := p.device.Stop(); err != nil {
		log.Debug("stop failed", "error", err)
	}
	p.playID++
	p.lineID = ""
	p.emit.emit(Event{Type: EventHighlight})
	return true
}

// SetVolume forwards to the device.
func (p *LinePlayer) SetVolume(v float64) error {
	return p.device.SetVolume(v)
}

// Close releases the device.
func (p *LinePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device.Close()
}
