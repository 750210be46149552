package engines

import (
	"context"
	"time"

	"github.com/miovo/miovo/internal/observe"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
)

// InstrumentedEngine records latency and failures of another engine.
type InstrumentedEngine struct {
	ttypes.TTSEngine
	metrics *observe.Metrics
}

// Instrument wraps engine so every synthesis call is recorded in m.
func Instrument(engine ttypes.TTSEngine, m *observe.Metrics) *InstrumentedEngine {
	if m == nil {
		m = observe.DefaultMetrics()
	}
	return &InstrumentedEngine{TTSEngine: engine, metrics: m}
}

// Synthesize forwards to the wrapped engine.
func (e *InstrumentedEngine) Synthesize(ctx context.Context, text string, voice ttypes.Voice, settings ttypes.AudioSettings) ([]byte, error) {
	name := e.GetInfo().Name
	start := time.Now()
	audio, err := e.TTSEngine.Synthesize(ctx, text, voice, settings)

	// Record on a fresh context; a canceled ctx must still be counted.
	rec := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		e.metrics.RecordSynthesis(rec, name, "ok", time.Since(start))
	case tts.IsCanceled(err):
		e.metrics.RecordSynthesis(rec, name, "canceled", time.Since(start))
	default:
		e.metrics.RecordSynthesis(rec, name, "error", time.Since(start))
		e.metrics.RecordSynthesisError(rec, name, string(tts.CodeOf(err)))
	}
	return audio, err
}

// Health forwards to the wrapped engine when it supports probing.
func (e *InstrumentedEngine) Health(ctx context.Context) error {
	if hc, ok := e.TTSEngine.(HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}
