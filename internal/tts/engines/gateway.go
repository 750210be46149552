package engines

import (
	"context"
	"net/http"
	"strings"

	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
)

// GatewayEngine synthesizes through the studio gateway task API.
type GatewayEngine struct {
	client *Client
}

// synthesizeRequest is the body of POST /tts/synthesize.
type synthesizeRequest struct {
	Text            string  `json:"text"`
	SpeakerID       int     `json:"speaker_id"`
	SpeedScale      float64 `json:"speed_scale"`
	PitchScale      float64 `json:"pitch_scale"`
	IntonationScale float64 `json:"intonation_scale"`
	VolumeScale     float64 `json:"volume_scale"`
}

// NewGatewayEngine creates a gateway engine.
func NewGatewayEngine(config ClientConfig) (*GatewayEngine, error) {
	if config.Name == "" {
		config.Name = string(ttypes.EngineGateway)
	}
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return &GatewayEngine{client: client}, nil
}

// Synthesize posts the line and decodes the base64 WAV from the task result.
func (e *GatewayEngine) Synthesize(ctx context.Context, text string, voice ttypes.Voice, settings ttypes.AudioSettings) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "empty text", nil)
	}

	req := synthesizeRequest{
		Text:            text,
		SpeakerID:       voice.SpeakerID,
		SpeedScale:      settings.SpeedScale,
		PitchScale:      settings.PitchScale,
		IntonationScale: settings.IntonationScale,
		VolumeScale:     settings.VolumeScale,
	}

	var task TaskResponse
	if err := e.client.DoJSON(ctx, http.MethodPost, "/tts/synthesize", nil, req, &task); err != nil {
		return nil, err
	}
	return task.Audio()
}

// Voices lists speaker styles via GET /tts/speakers.
func (e *GatewayEngine) Voices(ctx context.Context) ([]ttypes.Voice, error) {
	var body struct {
		Speakers []Speaker `json:"speakers"`
	}
	if err := e.client.DoJSON(ctx, http.MethodGet, "/tts/speakers", nil, nil, &body); err != nil {
		return nil, err
	}
	return FlattenSpeakers(body.Speakers), nil
}

// Health probes GET /tts/health.
func (e *GatewayEngine) Health(ctx context.Context) error {
	_, err := e.client.Do(ctx, http.MethodGet, "/tts/health", nil, nil)
	return err
}

// GetInfo returns engine capabilities and configuration.
func (e *GatewayEngine) GetInfo() ttypes.EngineInfo {
	return ttypes.EngineInfo{
		Name:     string(ttypes.EngineGateway),
		URL:      e.client.BaseURL(),
		IsOnline: true,
	}
}

// Close releases resources; the gateway engine holds none.
func (e *GatewayEngine) Close() error {
	return nil
}
