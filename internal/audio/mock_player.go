package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/miovo/miovo/internal/ttypes"
)

// PlayerState represents the current state of the mock player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay   func(audio []byte)
	OnPause  func()
	OnResume func()
	OnStop   func()
	OnClose  func()
}

// MockPlayer implements ttypes.AudioPlayer without producing sound.
// Playbacks end when the test calls Finish or Fail, or on their own after
// AutoFinish when that is set.
type MockPlayer struct {
	mu    sync.Mutex
	state PlayerState

	current   chan ttypes.PlaybackEnd
	audioData []byte
	played    [][]byte
	startTime time.Time
	volume    float64

	// autoFinish ends each playback naturally after this delay; zero waits
	// for Finish
	autoFinish time.Duration
	playErr    error

	callbacks MockCallbacks

	// Metrics for testing
	playCount    atomic.Int64
	prepareCount atomic.Int64
	pauseCount   atomic.Int64
	resumeCount  atomic.Int64
	stopCount    atomic.Int64

	playedCh chan struct{}
}

// DefaultMockPlayer creates a new mock player with default settings.
func DefaultMockPlayer() *MockPlayer {
	return &MockPlayer{
		volume:   1.0,
		playedCh: make(chan struct{}, 1024),
	}
}

// NewMockPlayer creates a new mock player with custom callbacks.
func NewMockPlayer(callbacks MockCallbacks) *MockPlayer {
	mp := DefaultMockPlayer()
	mp.callbacks = callbacks
	return mp
}

// Prepare counts the call; there is nothing to decode.
func (mp *MockPlayer) Prepare(audio []byte) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}
	mp.prepareCount.Add(1)
	return nil
}

// Play halts the current playback, reporting it as stopped, and starts audio.
func (mp *MockPlayer) Play(audio []byte) (<-chan ttypes.PlaybackEnd, error) {
	mp.mu.Lock()

	if mp.state == StateClosed {
		mp.mu.Unlock()
		return nil, ErrPlayerClosed
	}
	if len(audio) == 0 {
		mp.mu.Unlock()
		return nil, ErrEmptyAudio
	}
	if mp.playErr != nil {
		err := mp.playErr
		mp.mu.Unlock()
		return nil, err
	}

	mp.endLocked(ttypes.PlaybackEnd{Reason: ttypes.EndStopped})

	mp.audioData = append([]byte(nil), audio...)
	mp.played = append(mp.played, mp.audioData)
	mp.startTime = time.Now()
	mp.state = StatePlaying

	done := make(chan ttypes.PlaybackEnd, 1)
	mp.current = done
	mp.playCount.Add(1)

	if d := mp.autoFinish; d > 0 {
		time.AfterFunc(d, func() {
			mp.mu.Lock()
			defer mp.mu.Unlock()
			if mp.current == done {
				mp.endLocked(ttypes.PlaybackEnd{Reason: ttypes.EndNatural})
			}
		})
	}
	onPlay := mp.callbacks.OnPlay
	mp.mu.Unlock()

	if onPlay != nil {
		onPlay(audio)
	}
	mp.playedCh <- struct{}{}
	return done, nil
}

// endLocked delivers end to the current playback, if any.
func (mp *MockPlayer) endLocked(end ttypes.PlaybackEnd) bool {
	if mp.current == nil {
		return false
	}
	mp.current <- end
	mp.current = nil
	mp.state = StateStopped
	return true
}

// Pause pauses the current playback.
func (mp *MockPlayer) Pause() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.state != StatePlaying {
		return fmt.Errorf("cannot pause: player is %s", mp.state)
	}
	mp.state = StatePaused
	mp.pauseCount.Add(1)

	if mp.callbacks.OnPause != nil {
		mp.callbacks.OnPause()
	}
	return nil
}

// Resume resumes paused playback.
func (mp *MockPlayer) Resume() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.state != StatePaused {
		return fmt.Errorf("cannot resume: player is %s", mp.state)
	}
	mp.state = StatePlaying
	mp.resumeCount.Add(1)

	if mp.callbacks.OnResume != nil {
		mp.callbacks.OnResume()
	}
	return nil
}

// Stop halts playback. The playback in flight reports EndStopped.
func (mp *MockPlayer) Stop() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.stopCount.Add(1)
	if !mp.endLocked(ttypes.PlaybackEnd{Reason: ttypes.EndStopped}) {
		return nil
	}
	mp.audioData = nil

	if mp.callbacks.OnStop != nil {
		mp.callbacks.OnStop()
	}
	return nil
}

// IsPlaying returns whether audio is currently playing.
func (mp *MockPlayer) IsPlaying() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state == StatePlaying
}

// GetPosition returns the wall time since the playback started.
func (mp *MockPlayer) GetPosition() time.Duration {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.current == nil {
		return 0
	}
	return time.Since(mp.startTime)
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (mp *MockPlayer) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.volume = volume
	return nil
}

// Close releases the mock device.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.endLocked(ttypes.PlaybackEnd{Reason: ttypes.EndStopped})
	mp.state = StateClosed

	if mp.callbacks.OnClose != nil {
		mp.callbacks.OnClose()
	}
	return nil
}

// Test helper methods

// Finish ends the current playback naturally. It reports whether anything
// was playing.
func (mp *MockPlayer) Finish() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.endLocked(ttypes.PlaybackEnd{Reason: ttypes.EndNatural})
}

// Fail ends the current playback with a device error.
func (mp *MockPlayer) Fail(err error) bool {
	if err == nil {
		err = errors.New("simulated device failure")
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.endLocked(ttypes.PlaybackEnd{Reason: ttypes.EndFailed, Err: err})
}

// SetAutoFinish makes every later playback end naturally after d.
func (mp *MockPlayer) SetAutoFinish(d time.Duration) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.autoFinish = d
}

// SetPlayError makes Play fail with err; nil restores normal behavior.
func (mp *MockPlayer) SetPlayError(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.playErr = err
}

// WaitForPlays blocks until n more Play calls succeeded or timeout passed.
func (mp *MockPlayer) WaitForPlays(n int, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for i := 0; i < n; i++ {
		select {
		case <-mp.playedCh:
		case <-timer.C:
			return false
		}
	}
	return true
}

// GetState returns the current player state for testing.
func (mp *MockPlayer) GetState() PlayerState {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.state
}

// GetVolume returns the current volume for testing.
func (mp *MockPlayer) GetVolume() float64 {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.volume
}

// GetAudioData returns a copy of the loaded audio.
func (mp *MockPlayer) GetAudioData() []byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.audioData == nil {
		return nil
	}
	return append([]byte(nil), mp.audioData...)
}

// Played returns every payload passed to Play, in order.
func (mp *MockPlayer) Played() [][]byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	out := make([][]byte, len(mp.played))
	copy(out, mp.played)
	return out
}

// GetMetrics returns playback metrics for testing.
func (mp *MockPlayer) GetMetrics() MockPlayerMetrics {
	return MockPlayerMetrics{
		PlayCount:    mp.playCount.Load(),
		PrepareCount: mp.prepareCount.Load(),
		PauseCount:   mp.pauseCount.Load(),
		ResumeCount:  mp.resumeCount.Load(),
		StopCount:    mp.stopCount.Load(),
	}
}

// MockPlayerMetrics contains playback metrics for testing.
type MockPlayerMetrics struct {
	PlayCount    int64
	PrepareCount int64
	PauseCount   int64
	ResumeCount  int64
	StopCount    int64
}

var (
	_ ttypes.AudioPlayer   = (*MockPlayer)(nil)
	_ ttypes.AudioPreparer = (*MockPlayer)(nil)
)
