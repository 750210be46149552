package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
	"github.com/mitchellh/go-homedir"
)

// ErrNothingToExport is returned when no payload was given.
var ErrNothingToExport = errors.New("no audio to export")

// ExportFileName is the name of an export written at t.
func ExportFileName(t time.Time) string {
	return fmt.Sprintf("miovo-reading-%d.wav", t.UnixMilli())
}

// Merge concatenates WAV payloads in order into one WAV written to w.
// Every payload is converted to the format of the first one.
func Merge(w io.WriteSeeker, payloads [][]byte) error {
	if len(payloads) == 0 {
		return ErrNothingToExport
	}

	var (
		streams []beep.Streamer
		closers []beep.StreamSeekCloser
		target  beep.Format
	)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for i, payload := range payloads {
		s, format, err := Decode(payload)
		if err != nil {
			return fmt.Errorf("payload %d: %w", i, err)
		}
		closers = append(closers, s)

		if i == 0 {
			target = format
			streams = append(streams, s)
			continue
		}
		if format.SampleRate != target.SampleRate {
			streams = append(streams, beep.Resample(resampleQuality, format.SampleRate, target.SampleRate, s))
			continue
		}
		streams = append(streams, s)
	}

	if err := wav.Encode(w, beep.Seq(streams...), target); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}

// Export merges payloads into a timestamped WAV under dir and returns its
// path and size. An empty dir means the current directory.
func Export(dir string, payloads [][]byte, now time.Time) (string, int64, error) {
	if len(payloads) == 0 {
		return "", 0, ErrNothingToExport
	}
	if dir == "" {
		dir = "."
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return "", 0, fmt.Errorf("expand export dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, ExportFileName(now))
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export file: %w", err)
	}

	if err := Merge(f, payloads); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", 0, err
	}

	info, err := f.Stat()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, err
	}

	log.Debug("exported audio", "path", path, "lines", len(payloads), "bytes", info.Size())
	return path, info.Size(), nil
}
