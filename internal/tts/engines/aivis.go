package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
)

// AivisEngine talks to an AivisSpeech (VOICEVOX-compatible) engine.
// Synthesis is two calls: audio_query builds the prosody document, the
// studio overrides its scale fields, then synthesis renders it to WAV.
type AivisEngine struct {
	client *Client
}

// NewAivisEngine creates an AivisSpeech engine.
func NewAivisEngine(config ClientConfig) (*AivisEngine, error) {
	if config.Name == "" {
		config.Name = string(ttypes.EngineAivis)
	}
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return &AivisEngine{client: client}, nil
}

// Synthesize runs audio_query then synthesis for one line.
func (e *AivisEngine) Synthesize(ctx context.Context, text string, voice ttypes.Voice, settings ttypes.AudioSettings) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "empty text", nil)
	}
	speaker := strconv.Itoa(voice.SpeakerID)

	// The query document carries fields the studio never touches (accent
	// phrases, sampling rate); keep them verbatim.
	var query map[string]any
	if err := e.client.DoJSON(ctx, http.MethodPost, "/audio_query",
		url.Values{"text": {text}, "speaker": {speaker}}, nil, &query); err != nil {
		return nil, err
	}
	if query == nil {
		return nil, tts.NewMalformedResponseError("empty audio query", nil)
	}
	query["speedScale"] = settings.SpeedScale
	query["pitchScale"] = settings.PitchScale
	query["intonationScale"] = settings.IntonationScale
	query["volumeScale"] = settings.VolumeScale

	audio, err := e.client.Do(ctx, http.MethodPost, "/synthesis",
		url.Values{"speaker": {speaker}}, query)
	if err != nil {
		return nil, err
	}
	if !bytes.HasPrefix(audio, []byte("RIFF")) {
		return nil, tts.NewMalformedResponseError("synthesis did not return WAV data", nil).
			WithContext("bytes", len(audio))
	}
	return audio, nil
}

// Voices lists speaker styles via GET /speakers.
func (e *AivisEngine) Voices(ctx context.Context) ([]ttypes.Voice, error) {
	data, err := e.client.Do(ctx, http.MethodGet, "/speakers", nil, nil)
	if err != nil {
		return nil, err
	}
	var speakers []Speaker
	if err := json.Unmarshal(data, &speakers); err != nil {
		return nil, tts.NewMalformedResponseError("decode /speakers", err)
	}
	return FlattenSpeakers(speakers), nil
}

// Health probes GET /version.
func (e *AivisEngine) Health(ctx context.Context) error {
	_, err := e.client.Do(ctx, http.MethodGet, "/version", nil, nil)
	return err
}

// GetInfo returns engine capabilities and configuration.
func (e *AivisEngine) GetInfo() ttypes.EngineInfo {
	return ttypes.EngineInfo{
		Name:     string(ttypes.EngineAivis),
		URL:      e.client.BaseURL(),
		IsOnline: true,
	}
}

// Close releases resources; the aivis engine holds none.
func (e *AivisEngine) Close() error {
	return nil
}
