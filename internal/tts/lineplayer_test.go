package tts_test

import (
	"errors"
	"testing"
	"time"

	"github.com/miovo/miovo/internal/audio"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
)

func TestLinePlayer_PlayAndFinish(t *testing.T) {
	device := audio.DefaultMockPlayer()
	rec := &recorder{}
	lp := tts.NewLinePlayer(device, rec.emit)
	owner := &otherOwner{}

	ended := make(chan ttypes.PlaybackEnd, 1)
	if err := lp.Play(owner, "l1", []byte("audio"), func(end ttypes.PlaybackEnd) { ended <- end }); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := lp.NowPlaying(); got != "l1" {
		t.Errorf("now playing = %q, want l1", got)
	}

	device.Finish()
	select {
	case end := <-ended:
		if end.Reason != ttypes.EndNatural {
			t.Errorf("end reason = %s, want ended", end.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("onEnd never ran")
	}
	waitFor(t, "highlight cleared", func() bool { return lp.NowPlaying() == "" })

	if !equalStrings(rec.highlights(), []string{"l1", ""}) {
		t.Errorf("highlights = %v", rec.highlights())
	}
}

func TestLinePlayer_ReplaceKeepsNewHighlight(t *testing.T) {
	device := audio.DefaultMockPlayer()
	rec := &recorder{}
	lp := tts.NewLinePlayer(device, rec.emit)
	owner := &otherOwner{}

	ended := make(chan ttypes.PlaybackEnd, 2)
	onEnd := func(end ttypes.PlaybackEnd) { ended <- end }

	if err := lp.Play(owner, "l1", []byte("one"), onEnd); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := lp.Play(owner, "l2", []byte("two"), onEnd); err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case end := <-ended:
		if end.Reason != ttypes.EndStopped {
			t.Errorf("replaced playback ended with %s", end.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("replaced playback never ended")
	}
	if got := lp.NowPlaying(); got != "l2" {
		t.Errorf("now playing = %q, want l2", got)
	}
	if owner.released.Load() {
		t.Error("same owner was released")
	}
}

func TestLinePlayer_Ownership(t *testing.T) {
	device := audio.DefaultMockPlayer()
	lp := tts.NewLinePlayer(device, nil)
	first, second := &otherOwner{}, &otherOwner{}

	if err := lp.Play(first, "l1", []byte("one"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := lp.Play(second, "l2", []byte("two"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if !first.released.Load() {
		t.Error("previous owner was not released")
	}
	if lp.Owner() != second {
		t.Error("owner did not move")
	}
	if err := lp.Pause(first); !errors.Is(err, tts.ErrNotOwner) {
		t.Errorf("Pause by old owner = %v, want ErrNotOwner", err)
	}
	if lp.Stop(first) {
		t.Error("old owner stopped the output")
	}
	if got := lp.NowPlaying(); got != "l2" {
		t.Errorf("now playing = %q, want l2", got)
	}
	if !lp.Stop(second) {
		t.Error("owner could not stop")
	}
	if got := lp.NowPlaying(); got != "" {
		t.Errorf("now playing after stop = %q", got)
	}
}

func TestLinePlayer_DeviceRefuses(t *testing.T) {
	device := audio.DefaultMockPlayer()
	device.SetPlayError(errors.New("busy"))
	lp := tts.NewLinePlayer(device, nil)

	err := lp.Play(&otherOwner{}, "l1", []byte("one"), nil)
	if tts.CodeOf(err) != tts.ErrorCodePlayback {
		t.Errorf("error = %v, want a playback error", err)
	}
	if lp.NowPlaying() != "" {
		t.Error("highlight set after a refused play")
	}
}

func TestLinePlayer_PauseResume(t *testing.T) {
	device := audio.DefaultMockPlayer()
	lp := tts.NewLinePlayer(device, nil)
	owner := &otherOwner{}

	if err := lp.Play(owner, "l1", []byte("one"), nil); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if err := lp.Pause(owner); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if device.GetState() != audio.StatePaused {
		t.Errorf("device state = %s", device.GetState())
	}
	if err := lp.Resume(owner); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !device.IsPlaying() {
		t.Error("device not playing after resume")
	}
	if err := lp.Resume(owner); tts.CodeOf(err) != tts.ErrorCodePlayback {
		t.Errorf("resume while playing = %v, want a playback error", err)
	}
}
