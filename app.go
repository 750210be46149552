package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/miovo/miovo/internal/audio"
	"github.com/miovo/miovo/internal/cache"
	"github.com/miovo/miovo/internal/health"
	"github.com/miovo/miovo/internal/observe"
	"github.com/miovo/miovo/internal/rvc"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/tts/engines"
	"github.com/miovo/miovo/internal/ttypes"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// envKeyReplacer maps config keys to env names: tts.url is MIOVO_TTS_URL.
var envKeyReplacer = strings.NewReplacer(".", "_")

// defaultURLs are used when tts.url is empty.
var defaultURLs = map[ttypes.EngineType]string{
	ttypes.EngineGateway: "http://localhost:8000",
	ttypes.EngineAivis:   "http://localhost:10101",
}

// loadConfig builds the studio config from flags, env and the config file.
func loadConfig() (tts.Config, error) {
	engineType, err := tts.ValidateEngineSelection("", tts.Config{
		Engine: ttypes.EngineType(viper.GetString("tts.engine")),
	})
	if err != nil {
		return tts.Config{}, err
	}

	url := viper.GetString("tts.url")
	if url == "" {
		url = defaultURLs[engineType]
	}

	exportDir, err := homedir.Expand(viper.GetString("export.dir"))
	if err != nil {
		return tts.Config{}, fmt.Errorf("unable to expand export dir: %w", err)
	}

	config := tts.Config{
		Engine:            engineType,
		URL:               url,
		Timeout:           viper.GetDuration("tts.timeout"),
		RequestsPerMinute: viper.GetInt("tts.requests_per_minute"),
		Settings: ttypes.AudioSettings{
			SpeedScale:      viper.GetFloat64("tts.speed"),
			PitchScale:      viper.GetFloat64("tts.pitch"),
			IntonationScale: viper.GetFloat64("tts.intonation"),
			VolumeScale:     viper.GetFloat64("tts.volume"),
		},
		Voice:     viper.GetString("tts.voice"),
		ExportDir: exportDir,
	}
	if err := tts.ValidateConfig(config); err != nil {
		return tts.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// newEngine builds the configured backend wrapped with metrics.
func newEngine(config tts.Config) (*engines.InstrumentedEngine, error) {
	engine, err := engines.New(config.Engine, config, nil)
	if err != nil {
		return nil, err
	}
	log.Debug("engine ready", "engine", config.Engine, "url", config.URL)
	return engines.Instrument(engine, observe.DefaultMetrics()), nil
}

// newRVCClient builds the voice-conversion client. Without rvc.url it talks
// to the TTS gateway, which also serves the /rvc routes.
func newRVCClient() (*rvc.Client, error) {
	url := viper.GetString("rvc.url")
	if url == "" {
		url = viper.GetString("tts.url")
	}
	if url == "" {
		url = defaultURLs[ttypes.EngineGateway]
	}
	return rvc.New(rvc.Config{
		Gateway: engines.ClientConfig{
			BaseURL: url,
			Timeout: viper.GetDuration("tts.timeout"),
		},
		Service: engines.ClientConfig{
			BaseURL: viper.GetString("rvc.service_url"),
			Timeout: viper.GetDuration("tts.timeout"),
		},
	})
}

// openDevice opens the system audio output.
func openDevice() (*audio.Player, error) {
	config := audio.DefaultPlayerConfig()
	config.SampleRate = viper.GetInt("audio.sample_rate")
	config.Channels = viper.GetInt("audio.channels")
	config.BufferSize = viper.GetDuration("audio.buffer_size")

	p, err := audio.NewPlayer(config)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", tts.ErrAudioDeviceUnavailable, err)
	}
	return p, nil
}

// newStudio wires engine, cache and device into a studio.
func newStudio(config tts.Config, engine ttypes.TTSEngine, device ttypes.AudioPlayer) (*tts.Studio, error) {
	c, err := cache.NewMemoryCache(cache.Config{
		Compress:         viper.GetBool("cache.compress"),
		CompressionLevel: viper.GetInt("cache.level"),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create audio cache: %w", err)
	}

	return tts.NewStudio(tts.StudioConfig{
		Engine:         engine,
		Device:         device,
		Cache:          c,
		Settings:       config.Settings,
		PreferredVoice: config.Voice,
		ExportDir:      config.ExportDir,
		Metrics:        observe.DefaultMetrics(),
	})
}

// healthCheckers probes the engine and, when given, the RVC gateway.
func healthCheckers(engine *engines.InstrumentedEngine, rc *rvc.Client) []health.Checker {
	var checkers []health.Checker
	if engine != nil {
		checkers = append(checkers, health.Checker{
			Name:  "tts:" + engine.GetInfo().Name,
			Check: engine.Health,
		})
	}
	if rc != nil {
		checkers = append(checkers, health.Checker{
			Name:  "rvc",
			Check: rc.Health,
		})
	}
	return checkers
}

// startMetrics serves /metrics, /healthz and /readyz on metrics.addr. It is
// a no-op when the address is empty.
func startMetrics(ctx context.Context, checkers []health.Checker) (func(), error) {
	addr := viper.GetString("metrics.addr")
	if addr == "" {
		return func() {}, nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return nil, fmt.Errorf("unable to start metrics: %w", err)
	}
	srv, err := observe.Serve(addr, health.New(checkers...).Register)
	if err != nil {
		_ = shutdown(ctx)
		return nil, fmt.Errorf("unable to listen on %s: %w", addr, err)
	}
	log.Info("serving metrics", "addr", srv.Addr())

	return func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		_ = shutdown(sctx)
	}, nil
}
