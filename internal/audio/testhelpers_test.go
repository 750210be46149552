package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// makeWAV encodes d of silence at rate into a WAV payload.
func makeWAV(t *testing.T, rate, channels int, d time.Duration) []byte {
	t.Helper()
	format := beep.Format{
		SampleRate:  beep.SampleRate(rate),
		NumChannels: channels,
		Precision:   2,
	}

	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := wav.Encode(f, beep.Silence(format.SampleRate.N(d)), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func approx(a, b, tolerance time.Duration) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}
