// Package rvc is a client for singing-voice conversion.
//
// Model listing, model loading and conversion go through the studio
// gateway (/rvc/*). Vocal separation is only offered by the RVC service
// itself, so it has its own base URL.
package rvc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/tts/engines"
)

// Pitch extraction methods accepted by the service.
const (
	F0Harvest = "harvest"
	F0RMVPE   = "rmvpe"
	F0Crepe   = "crepe"
	F0PM      = "pm"
)

// DefaultSeparationModel is the Demucs preset used when none is given.
const DefaultSeparationModel = "htdemucs"

// Params are the conversion knobs.
type Params struct {
	F0Method     string  `json:"f0method"`
	Protect      float64 `json:"protect"`
	IndexRate    float64 `json:"index_rate"`
	FilterRadius int     `json:"filter_radius"`
}

// DefaultParams returns the service defaults.
func DefaultParams() Params {
	return Params{
		F0Method:     F0RMVPE,
		Protect:      0.5,
		IndexRate:    0.75,
		FilterRadius: 3,
	}
}

// Validate checks every knob against its allowed range.
func (p Params) Validate() error {
	switch p.F0Method {
	case F0Harvest, F0RMVPE, F0Crepe, F0PM:
	default:
		return fmt.Errorf("f0 method must be one of harvest, rmvpe, crepe, pm; got %q", p.F0Method)
	}
	switch {
	case p.Protect < 0 || p.Protect > 0.5:
		return fmt.Errorf("protect must be between 0.0 and 0.5, got %.2f", p.Protect)
	case p.IndexRate < 0 || p.IndexRate > 1:
		return fmt.Errorf("index rate must be between 0.0 and 1.0, got %.2f", p.IndexRate)
	case p.FilterRadius < 0 || p.FilterRadius > 7:
		return fmt.Errorf("filter radius must be between 0 and 7, got %d", p.FilterRadius)
	}
	return nil
}

// Config configures a Client.
type Config struct {
	// Gateway is the studio gateway client settings
	Gateway engines.ClientConfig

	// Service is the RVC service itself, used for separation; an empty
	// BaseURL disables Separate
	Service engines.ClientConfig
}

// Client talks to the conversion backends.
type Client struct {
	gateway *engines.Client
	service *engines.Client
}

// ErrSeparationUnavailable is returned by Separate when no service URL is set.
var ErrSeparationUnavailable = errors.New("vocal separation needs the RVC service URL")

// New creates a Client.
func New(config Config) (*Client, error) {
	if config.Gateway.Name == "" {
		config.Gateway.Name = "rvc"
	}
	gw, err := engines.NewClient(config.Gateway)
	if err != nil {
		return nil, err
	}

	c := &Client{gateway: gw}
	if config.Service.BaseURL != "" {
		if config.Service.Name == "" {
			config.Service.Name = "rvc-service"
		}
		if c.service, err = engines.NewClient(config.Service); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Models lists the model files the service can load.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var body struct {
		Models []string `json:"models"`
		Error  string   `json:"error"`
	}
	if err := c.gateway.DoJSON(ctx, http.MethodGet, "/rvc/models", nil, nil, &body); err != nil {
		return nil, err
	}
	if body.Error != "" && len(body.Models) == 0 {
		return nil, tts.NewMalformedResponseError("rvc: model listing failed", errors.New(body.Error))
	}
	return body.Models, nil
}

// LoadResult is the answer to a model load.
type LoadResult struct {
	Status    string `json:"status"`
	Model     string `json:"model"`
	CacheSize int    `json:"cache_size"`
}

// LoadModel loads a model into the service's memory.
func (c *Client) LoadModel(ctx context.Context, name string) (LoadResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LoadResult{}, tts.NewTTSError(tts.ErrorCodeInvalidInput, "model name is required", nil)
	}
	if strings.ContainsAny(name, "/\\") {
		return LoadResult{}, tts.NewTTSError(tts.ErrorCodeInvalidInput, "model name must be a file name", nil).
			WithContext("model", name)
	}

	var res LoadResult
	err := c.gateway.DoJSON(ctx, http.MethodPost, "/rvc/models/"+name, nil, nil, &res)
	if err != nil {
		return LoadResult{}, err
	}
	log.Debug("rvc model loaded", "model", res.Model, "cache_size", res.CacheSize)
	return res, nil
}

type convertRequest struct {
	AudioBase64 string `json:"audio_base64"`
	ModelName   string `json:"model_name"`
	Params
}

// Convert re-voices a WAV payload with model.
func (c *Client) Convert(ctx context.Context, audio []byte, model string, params Params) ([]byte, error) {
	if len(audio) == 0 {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "no audio to convert", nil)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "model name is required", nil)
	}
	if err := params.Validate(); err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeInvalidInput, "invalid conversion parameters", err)
	}

	req := convertRequest{
		AudioBase64: base64.StdEncoding.EncodeToString(audio),
		ModelName:   model,
		Params:      params,
	}
	var task engines.TaskResponse
	if err := c.gateway.DoJSON(ctx, http.MethodPost, "/rvc/convert", nil, req, &task); err != nil {
		return nil, err
	}
	return task.Audio()
}

// Separation holds the two stems of a song.
type Separation struct {
	Vocals        []byte
	Accompaniment []byte
	Model         string
}

type separateRequest struct {
	AudioBase64 string `json:"audio_base64"`
	Model       string `json:"model"`
}

type separateResponse struct {
	Status              string `json:"status"`
	VocalsBase64        string `json:"vocals_base64"`
	AccompanimentBase64 string `json:"accompaniment_base64"`
	Model               string `json:"model"`
}

// Separate splits a song into vocals and accompaniment. The accompaniment
// may be empty when the service produced none.
func (c *Client) Separate(ctx context.Context, audio []byte, model string) (Separation, error) {
	if c.service == nil {
		return Separation{}, ErrSeparationUnavailable
	}
	if len(audio) == 0 {
		return Separation{}, tts.NewTTSError(tts.ErrorCodeInvalidInput, "no audio to separate", nil)
	}
	if model == "" {
		model = DefaultSeparationModel
	}

	var res separateResponse
	req := separateRequest{AudioBase64: base64.StdEncoding.EncodeToString(audio), Model: model}
	if err := c.service.DoJSON(ctx, http.MethodPost, "/separate", nil, req, &res); err != nil {
		return Separation{}, err
	}

	vocals, err := base64.StdEncoding.DecodeString(res.VocalsBase64)
	if err != nil || len(vocals) == 0 {
		return Separation{}, tts.NewMalformedResponseError("rvc: no vocals in response", err)
	}
	out := Separation{Vocals: vocals, Model: res.Model}
	if res.AccompanimentBase64 != "" {
		if out.Accompaniment, err = base64.StdEncoding.DecodeString(res.AccompanimentBase64); err != nil {
			return Separation{}, tts.NewMalformedResponseError("rvc: invalid accompaniment", err)
		}
	}
	return out, nil
}

// Health probes GET /rvc/health. The gateway answers 200 even when the
// service is down, so the body's status decides.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := c.gateway.DoJSON(ctx, http.MethodGet, "/rvc/health", nil, nil, &body); err != nil {
		return err
	}
	if body.Status != "healthy" {
		msg := body.Error
		if msg == "" {
			msg = "status " + body.Status
		}
		return tts.NewNetworkError("rvc: service unhealthy", errors.New(msg))
	}
	return nil
}

// BaseURL returns the gateway URL.
func (c *Client) BaseURL() string {
	return c.gateway.BaseURL()
}
