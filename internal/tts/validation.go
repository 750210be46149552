package tts

import (
	"fmt"
	"strings"

	"github.com/miovo/miovo/internal/ttypes"
)

// ValidateEngineSelection resolves the synthesis backend. The CLI argument
// takes precedence over the config file. Returns ErrNoEngineConfigured if
// neither names an engine.
func ValidateEngineSelection(cliArg string, config Config) (ttypes.EngineType, error) {
	// 1. CLI argument takes precedence
	engineType := strings.ToLower(strings.TrimSpace(cliArg))

	// 2. Use config if no CLI arg
	if engineType == "" {
		engineType = strings.ToLower(strings.TrimSpace(string(config.Engine)))
	}

	if engineType == "" {
		return ttypes.EngineNone, fmt.Errorf("%w\n\nPlease specify an engine:\n  miovo --engine gateway script.txt   # Studio gateway (default port 8000)\n  miovo --engine aivis script.txt     # AivisSpeech engine (default port 10101)\n\nOr set a default in miovo.yml:\n  tts:\n    engine: gateway  # or \"aivis\"", ErrNoEngineConfigured)
	}

	// 3. Validate engine type (normalize aliases)
	switch engineType {
	case "gateway", "gw":
		return ttypes.EngineGateway, nil
	case "aivis", "aivisspeech", "voicevox":
		return ttypes.EngineAivis, nil
	default:
		return ttypes.EngineNone, fmt.Errorf("%w: %s\n\nSupported engines:\n  - gateway (studio gateway)\n  - aivis (AivisSpeech engine)", ErrInvalidEngine, engineType)
	}
}

// ValidateConfig checks the parts of a config that do not need a backend.
func ValidateConfig(config Config) error {
	if config.URL == "" {
		return fmt.Errorf("%w: backend URL is empty", ErrInvalidEngine)
	}
	if config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", config.Timeout)
	}
	if config.RequestsPerMinute < 0 {
		return fmt.Errorf("requests per minute must not be negative, got %d", config.RequestsPerMinute)
	}
	if err := config.Settings.Validate(); err != nil {
		return NewTTSError(ErrorCodeInvalidInput, "invalid voice settings", err)
	}
	return nil
}
