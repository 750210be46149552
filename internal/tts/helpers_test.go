package tts_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/miovo/miovo/internal/observe"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// fakeSource is an in-memory LineSource.
type fakeSource struct {
	mu       sync.Mutex
	lines    []ttypes.Line
	voice    *ttypes.Voice
	settings ttypes.AudioSettings
}

func newSource(texts ...string) *fakeSource {
	s := &fakeSource{
		voice:    &ttypes.Voice{ID: "v-1", Name: "Test", SpeakerID: 1},
		settings: ttypes.DefaultAudioSettings(),
	}
	for i, text := range texts {
		s.lines = append(s.lines, ttypes.Line{ID: fmt.Sprintf("l%d", i+1), Text: text})
	}
	return s
}

func (s *fakeSource) Lines() []ttypes.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ttypes.Line(nil), s.lines...)
}

func (s *fakeSource) Line(id string) (ttypes.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.ID == id {
			return l, true
		}
	}
	return ttypes.Line{}, false
}

func (s *fakeSource) Voice() (ttypes.Voice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.voice == nil {
		return ttypes.Voice{}, false
	}
	return *s.voice, true
}

func (s *fakeSource) Settings() ttypes.AudioSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *fakeSource) SetLineStatus(id string, status ttypes.LineStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if s.lines[i].ID == id {
			s.lines[i].Status = status
			s.lines[i].Error = errMsg
		}
	}
}

func (s *fakeSource) status(id string) ttypes.LineStatus {
	l, _ := s.Line(id)
	return l.Status
}

// fakeSynth returns "audio:<text>" unless the text is listed in fail.
// With block set, every call waits for ctx to end.
type fakeSynth struct {
	mu       sync.Mutex
	fail     map[string]error
	block    bool
	calls    []string
	settings []ttypes.AudioSettings
	started  chan string
}

func newSynth() *fakeSynth {
	return &fakeSynth{fail: map[string]error{}, started: make(chan string, 64)}
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string, _ ttypes.Voice, settings ttypes.AudioSettings) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.settings = append(f.settings, settings)
	err := f.fail[text]
	block := f.block
	f.mu.Unlock()

	f.started <- text
	if block {
		<-ctx.Done()
		return nil, tts.NewCanceledError(ctx.Err())
	}
	if err != nil {
		return nil, err
	}
	return []byte("audio:" + text), nil
}

func (f *fakeSynth) Voices(context.Context) ([]ttypes.Voice, error) {
	return nil, nil
}

func (f *fakeSynth) GetInfo() ttypes.EngineInfo {
	return ttypes.EngineInfo{Name: "fake"}
}

func (f *fakeSynth) Close() error {
	return nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSynth) lastSettings() ttypes.AudioSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.settings) == 0 {
		return ttypes.AudioSettings{}
	}
	return f.settings[len(f.settings)-1]
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []tts.Event
}

func (r *recorder) emit(e tts.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) highlights() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == tts.EventHighlight {
			out = append(out, e.LineID)
		}
	}
	return out
}

func (r *recorder) states() []ttypes.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ttypes.State
	for _, e := range r.events {
		if e.Type == tts.EventStateChanged {
			out = append(out, e.State)
		}
	}
	return out
}

func (r *recorder) count(t tts.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counterValue sums the data points of a counter carrying key=value.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not a sum", name)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}
