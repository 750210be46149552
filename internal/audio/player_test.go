package audio

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/miovo/miovo/internal/ttypes"
)

// TestPlayerConfig tests the player configuration validation.
func TestPlayerConfig(t *testing.T) {
	valid := DefaultPlayerConfig()

	tests := []struct {
		name      string
		mutate    func(*PlayerConfig)
		expectErr bool
	}{
		{name: "default config", mutate: func(*PlayerConfig) {}},
		{name: "valid 48000Hz stereo", mutate: func(c *PlayerConfig) { c.SampleRate = 48000; c.Channels = 2 }},
		{name: "invalid sample rate", mutate: func(c *PlayerConfig) { c.SampleRate = 22050 }, expectErr: true},
		{name: "invalid channels", mutate: func(c *PlayerConfig) { c.Channels = 3 }, expectErr: true},
		{name: "negative buffer", mutate: func(c *PlayerConfig) { c.BufferSize = -time.Millisecond }, expectErr: true},
		{name: "zero poll interval", mutate: func(c *PlayerConfig) { c.PollInterval = 0 }, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid
			tt.mutate(&config)
			err := validateConfig(config)
			if (err != nil) != tt.expectErr {
				t.Errorf("validateConfig() error = %v, expectErr %v", err, tt.expectErr)
			}
		})
	}
}

var (
	testPlayerOnce sync.Once
	testPlayer     *Player
	testPlayerErr  error
)

// getTestPlayer returns a shared test player, creating it once.
func getTestPlayer(t *testing.T) *Player {
	testPlayerOnce.Do(func() {
		testPlayer, testPlayerErr = NewPlayer(DefaultPlayerConfig())
	})

	if testPlayerErr != nil {
		t.Skipf("Skipping test: cannot create audio player (no audio device?): %v", testPlayerErr)
	}

	_ = testPlayer.Stop()
	return testPlayer
}

func TestPlayer_NaturalEnd(t *testing.T) {
	p := getTestPlayer(t)

	done, err := p.Play(makeWAV(t, 24000, 1, 100*time.Millisecond))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case end := <-done:
		if end.Reason != ttypes.EndNatural {
			t.Errorf("reason = %v, want ended", end.Reason)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("playback never ended")
	}
}

func TestPlayer_ReplaceReportsStopped(t *testing.T) {
	p := getTestPlayer(t)

	first, err := p.Play(makeWAV(t, 44100, 1, 2*time.Second))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	second, err := p.Play(makeWAV(t, 44100, 1, 2*time.Second))
	if err != nil {
		t.Fatalf("Play: %v", err)
	}

	select {
	case end := <-first:
		if end.Reason != ttypes.EndStopped {
			t.Errorf("reason = %v, want stopped", end.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("replaced playback did not report")
	}

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if p.IsPlaying() {
		t.Error("IsPlaying() after Pause")
	}
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	_ = p.Stop()

	end := <-second
	if end.Reason != ttypes.EndStopped {
		t.Errorf("reason = %v, want stopped", end.Reason)
	}
}

func TestPlayer_Volume(t *testing.T) {
	p := getTestPlayer(t)

	if err := p.SetVolume(0.5); err != nil {
		t.Fatalf("SetVolume: %v", err)
	}
	if p.GetVolume() != 0.5 {
		t.Errorf("volume = %v", p.GetVolume())
	}
	if err := p.SetVolume(1.5); err == nil {
		t.Error("SetVolume(1.5) succeeded")
	}
	_ = p.SetVolume(1.0)
}

// The prepare cache needs no output device.
func TestPlayer_Prepare(t *testing.T) {
	p := &Player{sampleRate: 44100, channels: 1}
	wav := makeWAV(t, 24000, 1, 200*time.Millisecond)

	if _, ok := p.takePrepared(wav); ok {
		t.Fatal("payload reported as prepared before Prepare")
	}
	if err := p.Prepare(wav); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	d, ok := p.takePrepared(wav)
	if !ok {
		t.Fatal("prepared payload not found")
	}
	want, _, err := ToPCM(wav, 44100, 1)
	if err != nil {
		t.Fatalf("ToPCM: %v", err)
	}
	if !bytes.Equal(d.pcm, want) {
		t.Errorf("prepared pcm differs from ToPCM: %d vs %d bytes", len(d.pcm), len(want))
	}
	if !approx(d.duration, 200*time.Millisecond, 10*time.Millisecond) {
		t.Errorf("duration = %v, want ~200ms", d.duration)
	}

	if _, ok := p.takePrepared(wav); ok {
		t.Error("prepared payload handed over twice")
	}

	if err := p.Prepare(wav); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, ok := p.takePrepared(append([]byte(nil), wav...)); ok {
		t.Error("a copy of the payload matched the prepared slice")
	}

	if err := p.Prepare(nil); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("Prepare(nil) = %v, want ErrEmptyAudio", err)
	}
	if err := p.Prepare([]byte("not a wav")); err == nil {
		t.Error("Prepare accepted garbage")
	}
}

func TestPlayer_PrepareIsBounded(t *testing.T) {
	p := &Player{sampleRate: 44100, channels: 1}

	payloads := make([][]byte, maxPrepared+1)
	for i := range payloads {
		payloads[i] = makeWAV(t, 44100, 1, 10*time.Millisecond)
		if err := p.Prepare(payloads[i]); err != nil {
			t.Fatalf("Prepare %d: %v", i, err)
		}
	}

	if got := len(p.prepared); got != maxPrepared {
		t.Errorf("prepared = %d, want %d", got, maxPrepared)
	}
	if _, ok := p.takePrepared(payloads[0]); ok {
		t.Error("oldest payload was kept")
	}
	if _, ok := p.takePrepared(payloads[maxPrepared]); !ok {
		t.Error("newest payload was dropped")
	}
	if got := len(p.prepOrder); got != maxPrepared-1 {
		t.Errorf("order = %d entries, want %d", got, maxPrepared-1)
	}
}
