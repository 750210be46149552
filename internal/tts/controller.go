package tts

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/observe"
	"github.com/miovo/miovo/internal/queue"
	"github.com/miovo/miovo/internal/ttypes"
)

// Session outcomes reported to metrics.
const (
	outcomeCompleted = "completed"
	outcomeStopped   = "stopped"
	outcomeFailed    = "failed"
	outcomeEmpty     = "empty"
	outcomeReleased  = "released"
)

// Controller is the play-all state machine: it synthesizes every line in
// order, queues the results and walks the queue on the shared output.
//
// Completions are matched against the session counter and the queue index
// they were started for; anything older is ignored.
type Controller struct {
	mu sync.Mutex

	source  LineSource
	synth   ttypes.Synthesizer
	player  *LinePlayer
	cache   ttypes.AudioCache
	metrics *observe.Metrics

	state   ttypes.State
	queue   *queue.Playback
	index   int
	cancel  context.CancelFunc
	session uint64
	speed   float64
	lastErr error

	emit EmitFunc
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCache stores every synthesized payload in c as well as in the queue.
func WithCache(c ttypes.AudioCache) ControllerOption {
	return func(ctrl *Controller) { ctrl.cache = c }
}

// WithMetrics records session metrics in m.
func WithMetrics(m *observe.Metrics) ControllerOption {
	return func(ctrl *Controller) { ctrl.metrics = m }
}

// WithEmitter sends controller events to emit.
func WithEmitter(emit EmitFunc) ControllerOption {
	return func(ctrl *Controller) { ctrl.emit = emit }
}

// NewController creates an idle controller.
func NewController(source LineSource, synth ttypes.Synthesizer, player *LinePlayer, opts ...ControllerOption) *Controller {
	c := &Controller{
		source: source,
		synth:  synth,
		player: player,
		state:  ttypes.StateIdle,
		queue:  queue.NewPlayback(),
		speed:  DefaultSpeed,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Play starts or resumes play-all.
//
// From Paused it resumes in place. From Idle it synthesizes every line in
// order and then starts playback; the call returns once generation is over.
// In Generating or Playing, and with no lines, it does nothing.
func (c *Controller) Play(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case ttypes.StatePaused:
		defer c.mu.Unlock()
		return c.resumeLocked()
	case ttypes.StateGenerating, ttypes.StatePlaying:
		c.mu.Unlock()
		return nil
	}

	lines := c.source.Lines()
	if len(lines) == 0 {
		c.mu.Unlock()
		return nil
	}
	voice, ok := c.source.Voice()
	if !ok {
		c.setErrorLocked(ErrNoVoiceSelected)
		c.mu.Unlock()
		return ErrNoVoiceSelected
	}

	settings := c.source.Settings()
	settings.SpeedScale = clampSpeed(settings.SpeedScale * c.speed)

	genCtx, cancel := context.WithCancel(ctx)
	c.session++
	sess := c.session
	c.cancel = cancel
	c.queue.Clear()
	c.index = 0
	c.setStateLocked(ttypes.StateGenerating)
	c.metrics.SessionStarted(ctx)
	c.mu.Unlock()

	log.Debug("play-all generating", "lines", len(lines), "voice", voice.ID, "speed", settings.SpeedScale)
	c.generate(genCtx, sess, lines, voice, settings)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Stopped or replaced while generating.
	if c.session != sess || c.state != ttypes.StateGenerating {
		return nil
	}
	if c.queue.Len() == 0 {
		log.Debug("play-all has nothing to play")
		c.teardownLocked(outcomeEmpty)
		return nil
	}
	c.setStateLocked(ttypes.StatePlaying)
	return c.playCurrentLocked()
}

// generate synthesizes lines one at a time, in order. Cancellation is
// checked before every request.
func (c *Controller) generate(ctx context.Context, sess uint64, lines []ttypes.Line, voice ttypes.Voice, settings ttypes.AudioSettings) {
	for _, line := range lines {
		if ctx.Err() != nil {
			return
		}
		c.setLineStatus(line.ID, ttypes.StatusProcessing, "")

		audio, err := c.synth.Synthesize(ctx, line.Text, voice, settings)
		if err != nil {
			if IsCanceled(err) || ctx.Err() != nil {
				c.setLineStatus(line.ID, ttypes.StatusNone, "")
				return
			}
			log.Warn("synthesis failed, skipping line", "line", line.ID, "error", err)
			c.setLineStatus(line.ID, ttypes.StatusError, err.Error())
			c.mu.Lock()
			c.setErrorLocked(err)
			c.mu.Unlock()
			continue
		}

		c.storeAudio(line, audio)
		c.player.Prepare(audio)
		c.setLineStatus(line.ID, ttypes.StatusDone, "")

		c.mu.Lock()
		if c.session == sess {
			if _, err := c.queue.Append(line.ID, audio); err != nil {
				log.Warn("cannot queue audio", "line", line.ID, "error", err)
			}
		}
		c.mu.Unlock()
	}
}

// storeAudio caches audio unless the line was edited while it was being
// synthesized.
func (c *Controller) storeAudio(line ttypes.Line, audio []byte) {
	if c.cache == nil {
		return
	}
	if cur, ok := c.source.Line(line.ID); !ok || cur.Text != line.Text {
		return
	}
	if err := c.cache.Put(line.ID, audio); err != nil {
		log.Warn("cannot cache audio", "line", line.ID, "error", err)
	}
}

func (c *Controller) setLineStatus(id string, status ttypes.LineStatus, errMsg string) {
	c.source.SetLineStatus(id, status, errMsg)
	c.emit.emit(Event{Type: EventLineStatus, LineID: id, Status: status})
}

// playCurrentLocked starts the queue entry at c.index.
func (c *Controller) playCurrentLocked() error {
	entry, err := c.queue.At(c.index)
	if err != nil {
		c.teardownLocked(outcomeFailed)
		return err
	}

	sess, idx := c.session, c.index
	err = c.player.Play(c, entry.LineID, entry.Audio, func(end ttypes.PlaybackEnd) {
		c.onEntryEnd(sess, idx, end)
	})
	switch {
	case err == nil:
		// Entries beyond the device's prepared set are decoded one ahead.
		if next, qerr := c.queue.At(idx + 1); qerr == nil {
			go c.player.Prepare(next.Audio)
		}
		return nil
	case errors.Is(err, ErrNotOwner):
		c.teardownLocked(outcomeReleased)
		return nil
	default:
		c.setErrorLocked(err)
		c.teardownLocked(outcomeFailed)
		return err
	}
}

// onEntryEnd advances the session when the entry it started finishes.
func (c *Controller) onEntryEnd(sess uint64, idx int, end ttypes.PlaybackEnd) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sess != c.session || idx != c.index {
		return
	}

	switch end.Reason {
	case ttypes.EndStopped:
		return
	case ttypes.EndFailed:
		log.Error("playback failed, ending play-all", "line", c.queue.LineID(idx), "error", end.Err)
		c.setErrorLocked(NewPlaybackError("audio device failed", end.Err))
		c.teardownLocked(outcomeFailed)
		return
	}

	if c.state != ttypes.StatePlaying {
		return
	}
	c.index++
	if c.index >= c.queue.Len() {
		c.teardownLocked(outcomeCompleted)
		c.emit.emit(Event{Type: EventCompleted})
		return
	}
	_ = c.playCurrentLocked()
}

func (c *Controller) resumeLocked() error {
	if err := c.player.Resume(c); err != nil {
		if errors.Is(err, ErrNotOwner) {
			c.teardownLocked(outcomeReleased)
			return nil
		}
		c.setErrorLocked(err)
		c.teardownLocked(outcomeFailed)
		c.player.Stop(c)
		return err
	}
	c.setStateLocked(ttypes.StatePlaying)
	return nil
}

// Pause halts playback in place. Only valid while Playing.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ttypes.StatePlaying {
		return nil
	}
	if err := c.player.Pause(c); err != nil {
		if errors.Is(err, ErrNotOwner) {
			c.teardownLocked(outcomeReleased)
			return nil
		}
		return NewPlaybackError("device refused to pause", err)
	}
	c.setStateLocked(ttypes.StatePaused)
	return nil
}

// TogglePlay pauses while Playing and plays otherwise.
func (c *Controller) TogglePlay(ctx context.Context) error {
	if c.State() == ttypes.StatePlaying {
		return c.Pause()
	}
	return c.Play(ctx)
}

// Skip moves to the next queue entry. It does nothing outside Playing and
// Paused, or on the last entry.
func (c *Controller) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ttypes.StatePlaying && c.state != ttypes.StatePaused {
		return nil
	}
	if c.index >= c.queue.Len()-1 {
		return nil
	}
	c.index++
	c.setStateLocked(ttypes.StatePlaying)
	return c.playCurrentLocked()
}

// Stop ends the session from any state: in-flight synthesis is canceled,
// the queue is cleared and no line is highlighted.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ttypes.StateIdle {
		return
	}
	c.teardownLocked(outcomeStopped)

	// Another owner's highlight is left alone.
	if !c.player.Stop(c) && c.player.NowPlaying() == "" {
		c.emit.emit(Event{Type: EventHighlight})
	}
}

// Release implements Owner: the output was taken by someone else, so the
// session ends without touching the device. A late call that arrives after
// the controller took the output back is ignored.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == ttypes.StateIdle || c.player.Owner() == c {
		return
	}
	log.Debug("play-all lost the audio output")
	c.teardownLocked(outcomeReleased)
}

// teardownLocked destroys the session and returns to Idle.
func (c *Controller) teardownLocked(outcome string) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.session++
	c.queue.Clear()
	c.index = 0
	c.setStateLocked(ttypes.StateIdle)
	c.metrics.SessionEnded(context.Background(), outcome)
}

func (c *Controller) setStateLocked(next ttypes.State) {
	if c.state == next && next != ttypes.StatePlaying {
		return
	}
	if !c.state.CanTransition(next) {
		log.Warn("illegal play-all transition", "from", c.state, "to", next)
		return
	}
	prev := c.state
	c.state = next
	if prev != next {
		log.Debug("play-all state", "from", prev, "to", next)
		c.emit.emit(Event{Type: EventStateChanged, State: next})
	}
}

func (c *Controller) setErrorLocked(err error) {
	c.lastErr = err
	c.emit.emit(Event{Type: EventError, Err: err})
}

// SetPlaybackSpeed sets the multiplier applied to the speed scale of the
// next generation. Audio already queued or cached keeps its speed.
func (c *Controller) SetPlaybackSpeed(speed float64) error {
	if err := ValidateSpeed(speed); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	return nil
}

// PlaybackSpeed returns the current multiplier.
func (c *Controller) PlaybackSpeed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// State returns the current session state.
func (c *Controller) State() ttypes.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Progress returns a snapshot of the session.
func (c *Controller) Progress() ttypes.Progress {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := ttypes.Progress{
		State:        c.state,
		CurrentIndex: c.index,
		QueueLength:  c.queue.Len(),
		Speed:        c.speed,
	}
	if c.state == ttypes.StatePlaying || c.state == ttypes.StatePaused {
		p.LineID = c.queue.LineID(c.index)
	}
	return p
}

// QueuedLines returns the line ids in queue order.
func (c *Controller) QueuedLines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.LineIDs()
}

// LastError returns the most recent failure, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func clampSpeed(s float64) float64 {
	switch {
	case s < MinSpeed:
		return MinSpeed
	case s > MaxSpeed:
		return MaxSpeed
	}
	return s
}
