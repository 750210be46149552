package rvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/tts/engines"
)

var fakeWAV = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

func newClient(t *testing.T, gateway, service http.HandlerFunc) *Client {
	t.Helper()
	gw := httptest.NewServer(gateway)
	t.Cleanup(gw.Close)

	config := Config{Gateway: engines.ClientConfig{BaseURL: gw.URL}}
	if service != nil {
		svc := httptest.NewServer(service)
		t.Cleanup(svc.Close)
		config.Service = engines.ClientConfig{BaseURL: svc.URL}
	}

	c, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"harvest", func(p *Params) { p.F0Method = F0Harvest }, false},
		{"unknown method", func(p *Params) { p.F0Method = "yin" }, true},
		{"protect too high", func(p *Params) { p.Protect = 0.6 }, true},
		{"protect zero", func(p *Params) { p.Protect = 0 }, false},
		{"index rate negative", func(p *Params) { p.IndexRate = -0.1 }, true},
		{"filter radius max", func(p *Params) { p.FilterRadius = 7 }, false},
		{"filter radius too big", func(p *Params) { p.FilterRadius = 8 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(&p)
			if err := p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_Models(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rvc/models" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, map[string]any{"models": []string{"miku.pth", "teto.pth"}, "count": 2})
	}, nil)

	models, err := c.Models(context.Background())
	if err != nil {
		t.Fatalf("Models: %v", err)
	}
	if len(models) != 2 || models[0] != "miku.pth" {
		t.Errorf("models = %v", models)
	}
}

func TestClient_ModelsUnavailable(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"detail": "RVC service unavailable"})
	}, nil)

	_, err := c.Models(context.Background())
	if tts.CodeOf(err) != tts.ErrorCodeNetwork {
		t.Fatalf("error = %v, want NETWORK", err)
	}
	if engines.StatusCode(err) != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", engines.StatusCode(err))
	}
}

func TestClient_LoadModel(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rvc/models/my voice.pth" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, LoadResult{Status: "loaded", Model: "my voice.pth", CacheSize: 1})
	}, nil)

	res, err := c.LoadModel(context.Background(), "my voice.pth")
	if err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if res.Status != "loaded" || res.CacheSize != 1 {
		t.Errorf("result = %+v", res)
	}

	for _, bad := range []string{" ", "../etc/passwd"} {
		if _, err := c.LoadModel(context.Background(), bad); tts.CodeOf(err) != tts.ErrorCodeInvalidInput {
			t.Errorf("LoadModel(%q) error = %v, want INVALID_INPUT", bad, err)
		}
	}
}

func TestClient_Convert(t *testing.T) {
	var got map[string]any
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rvc/convert" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		writeJSON(w, engines.TaskResponse{
			TaskID: "t1",
			Status: engines.TaskCompleted,
			Result: map[string]any{"audio_base64": base64.StdEncoding.EncodeToString(fakeWAV), "model": "miku.pth"},
		})
	}, nil)

	out, err := c.Convert(context.Background(), []byte("input"), "miku.pth", DefaultParams())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(out) != string(fakeWAV) {
		t.Errorf("audio = %q", out)
	}

	want := map[string]any{
		"audio_base64":  base64.StdEncoding.EncodeToString([]byte("input")),
		"model_name":    "miku.pth",
		"f0method":      "rmvpe",
		"protect":       0.5,
		"index_rate":    0.75,
		"filter_radius": float64(3),
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("request %s = %v, want %v", k, got[k], v)
		}
	}
}

func TestClient_ConvertNaiveTimestamps(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"task_id":"9a1b","type":"rvc","status":"completed","progress":1.0,` +
			`"result":{"audio_base64":"` + base64.StdEncoding.EncodeToString(fakeWAV) + `","model":"miku.pth"},` +
			`"error":null,"created_at":"2025-01-02T03:04:05.678901","updated_at":"2025-01-02T03:04:09.000001"}`))
	}, nil)

	out, err := c.Convert(context.Background(), []byte("input"), "miku.pth", DefaultParams())
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if string(out) != string(fakeWAV) {
		t.Errorf("audio = %q", out)
	}
}

func TestClient_ConvertErrors(t *testing.T) {
	failed := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, engines.TaskResponse{TaskID: "t2", Status: engines.TaskFailed, Error: "RVC service error"})
	}, nil)

	tests := []struct {
		name     string
		audio    []byte
		model    string
		params   Params
		wantCode tts.ErrorCode
	}{
		{"no audio", nil, "m.pth", DefaultParams(), tts.ErrorCodeInvalidInput},
		{"no model", []byte("a"), "", DefaultParams(), tts.ErrorCodeInvalidInput},
		{"bad params", []byte("a"), "m.pth", Params{F0Method: "yin"}, tts.ErrorCodeInvalidInput},
		{"task failed", []byte("a"), "m.pth", DefaultParams(), tts.ErrorCodeMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := failed.Convert(context.Background(), tt.audio, tt.model, tt.params)
			if got := tts.CodeOf(err); got != tt.wantCode {
				t.Errorf("code = %q, want %q (%v)", got, tt.wantCode, err)
			}
		})
	}
}

func TestClient_Separate(t *testing.T) {
	var got separateRequest
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("gateway called for separation: %s", r.URL.Path)
	}, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/separate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, separateResponse{
			Status:              "separated",
			VocalsBase64:        base64.StdEncoding.EncodeToString([]byte("vocals")),
			AccompanimentBase64: base64.StdEncoding.EncodeToString([]byte("backing")),
			Model:               got.Model,
		})
	})

	sep, err := c.Separate(context.Background(), []byte("song"), "")
	if err != nil {
		t.Fatalf("Separate: %v", err)
	}
	if got.Model != DefaultSeparationModel {
		t.Errorf("model = %q, want %q", got.Model, DefaultSeparationModel)
	}
	if string(sep.Vocals) != "vocals" || string(sep.Accompaniment) != "backing" {
		t.Errorf("separation = %+v", sep)
	}
}

func TestClient_SeparateWithoutService(t *testing.T) {
	c := newClient(t, func(http.ResponseWriter, *http.Request) {}, nil)
	if _, err := c.Separate(context.Background(), []byte("song"), ""); !errors.Is(err, ErrSeparationUnavailable) {
		t.Errorf("error = %v, want ErrSeparationUnavailable", err)
	}
}

func TestClient_Health(t *testing.T) {
	tests := []struct {
		name    string
		body    map[string]any
		wantErr bool
	}{
		{"healthy", map[string]any{"status": "healthy", "rvc_loaded": true}, false},
		{"unhealthy", map[string]any{"rvc": false, "status": "unhealthy", "error": "connection refused"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/rvc/health" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				writeJSON(w, tt.body)
			}, nil)

			err := c.Health(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Health() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
