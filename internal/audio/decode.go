package audio

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/wav"
)

// resampleQuality is the beep.Resample quality used when rates differ.
const resampleQuality = 4

// ErrEmptyAudio is returned for a zero-length payload.
var ErrEmptyAudio = errors.New("audio data is empty")

// Decode opens a WAV payload as a beep stream.
func Decode(audio []byte) (beep.StreamSeekCloser, beep.Format, error) {
	if len(audio) == 0 {
		return nil, beep.Format{}, ErrEmptyAudio
	}
	s, format, err := wav.Decode(bytes.NewReader(audio))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
	}
	return s, format, nil
}

// Duration returns the length of a WAV payload.
func Duration(audio []byte) (time.Duration, error) {
	s, format, err := Decode(audio)
	if err != nil {
		return 0, err
	}
	defer func() { _ = s.Close() }()
	return format.SampleRate.D(s.Len()), nil
}

// ToPCM decodes a WAV payload into signed 16-bit little-endian PCM at the
// given rate and channel count, resampling when needed.
func ToPCM(audio []byte, sampleRate, channels int) ([]byte, time.Duration, error) {
	s, format, err := Decode(audio)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = s.Close() }()

	out := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: channels,
		Precision:   2,
	}

	var stream beep.Streamer = s
	if format.SampleRate != out.SampleRate {
		stream = beep.Resample(resampleQuality, format.SampleRate, out.SampleRate, s)
	}

	expected := out.SampleRate.N(format.SampleRate.D(s.Len()))
	pcm := make([]byte, 0, expected*out.Width())

	samples := make([][2]float64, 512)
	frame := make([]byte, out.Width())
	total := 0
	for {
		n, ok := stream.Stream(samples)
		for i := 0; i < n; i++ {
			out.EncodeSigned(frame, samples[i])
			pcm = append(pcm, frame...)
		}
		total += n
		if !ok {
			break
		}
	}
	if err := stream.Err(); err != nil {
		return nil, 0, fmt.Errorf("read wav: %w", err)
	}
	return pcm, out.SampleRate.D(total), nil
}
