package engines

import (
	"context"
	"fmt"
	"net/http"

	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
)

// HealthChecker is implemented by engines that can probe their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// New builds the engine selected by engineType from the studio config.
// httpClient may be nil.
func New(engineType ttypes.EngineType, config tts.Config, httpClient *http.Client) (ttypes.TTSEngine, error) {
	cc := ClientConfig{
		Name:              string(engineType),
		BaseURL:           config.URL,
		Timeout:           config.Timeout,
		RequestsPerMinute: config.RequestsPerMinute,
		HTTPClient:        httpClient,
	}

	switch engineType {
	case ttypes.EngineGateway:
		return NewGatewayEngine(cc)
	case ttypes.EngineAivis:
		return NewAivisEngine(cc)
	case ttypes.EngineNone:
		return nil, tts.ErrNoEngineConfigured
	default:
		return nil, fmt.Errorf("%w: %s", tts.ErrInvalidEngine, engineType)
	}
}
