package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/miovo/miovo/internal/audio"
	"github.com/miovo/miovo/internal/cache"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
)

type stubEngine struct{}

func (stubEngine) Synthesize(_ context.Context, text string, _ ttypes.Voice, _ ttypes.AudioSettings) ([]byte, error) {
	return []byte("audio:" + text), nil
}

func (stubEngine) Voices(context.Context) ([]ttypes.Voice, error) {
	return []ttypes.Voice{
		{ID: "v-0", Name: "Mao (Normal)", SpeakerID: 0},
		{ID: "v-1", Name: "Mao (Whisper)", SpeakerID: 1},
	}, nil
}

func (stubEngine) GetInfo() ttypes.EngineInfo { return ttypes.EngineInfo{Name: "stub"} }
func (stubEngine) Close() error               { return nil }

func newTestModel(t *testing.T, text string) (model, *tts.Studio, *audio.MockPlayer) {
	t.Helper()
	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	if err != nil {
		t.Fatalf("NewMemoryCache: %v", err)
	}
	device := audio.DefaultMockPlayer()
	studio, err := tts.NewStudio(tts.StudioConfig{
		Engine:      stubEngine{},
		Device:      device,
		Cache:       c,
		ExportDir:   t.TempDir(),
		EventBuffer: 1024,
	})
	if err != nil {
		t.Fatalf("NewStudio: %v", err)
	}
	t.Cleanup(func() { _ = studio.Close() })

	if _, err := studio.LoadVoices(context.Background()); err != nil {
		t.Fatalf("LoadVoices: %v", err)
	}
	studio.Paste(text)

	m := newModel(Config{StatusMessageTimeout: time.Minute}, studio)
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	return m, studio, device
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm
}

func press(t *testing.T, m model, key string) (model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace}
	case "ctrl+s":
		msg = tea.KeyMsg{Type: tea.KeyCtrlS}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(model), cmd
}

func TestRenderLines(t *testing.T) {
	lines := []ttypes.Line{
		{ID: "l1", Text: "first", Status: ttypes.StatusDone},
		{ID: "l2", Text: "second", Status: ttypes.StatusError, Error: "boom"},
		{ID: "l3", Text: "third"},
	}

	out := renderLines(lines, 1, "l1", "", 60)
	rows := strings.Split(out, "\n")
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3:\n%s", len(rows), out)
	}
	if !strings.Contains(rows[0], "✓") || !strings.Contains(rows[0], "first") {
		t.Errorf("row 0 = %q", rows[0])
	}
	if !strings.Contains(rows[1], "›") || !strings.Contains(rows[1], "✗") {
		t.Errorf("selected error row = %q", rows[1])
	}
	if strings.Contains(rows[2], "›") {
		t.Errorf("unselected row carries the marker: %q", rows[2])
	}

	if got := renderLines(nil, -1, "", "", 60); !strings.Contains(got, "No lines") {
		t.Errorf("empty list = %q", got)
	}
}

func TestRenderLines_Truncates(t *testing.T) {
	long := strings.Repeat("あ", 40)
	out := renderLines([]ttypes.Line{{ID: "l1", Text: long}}, 0, "", "", 30)
	if strings.Contains(out, long) {
		t.Error("long line was not truncated")
	}
	if !strings.Contains(out, ellipsis) {
		t.Errorf("truncated line has no ellipsis: %q", out)
	}
}

func TestStatusIcon(t *testing.T) {
	tests := []struct {
		status ttypes.LineStatus
		busy   string
		want   string
	}{
		{ttypes.StatusNone, "", " "},
		{ttypes.StatusPending, "", "·"},
		{ttypes.StatusProcessing, "", "…"},
		{ttypes.StatusProcessing, "◐", "◐"},
		{ttypes.StatusDone, "", "✓"},
	}
	for _, tt := range tests {
		if got := statusIcon(tt.status, tt.busy); got != tt.want {
			t.Errorf("statusIcon(%q, %q) = %q, want %q", tt.status, tt.busy, got, tt.want)
		}
	}
}

func TestEnsureVisible(t *testing.T) {
	vp := viewport.New(10, 3)
	vp.SetContent(strings.Repeat("x\n", 9) + "x")

	ensureVisible(&vp, 5)
	if vp.YOffset != 3 {
		t.Errorf("YOffset = %d, want 3", vp.YOffset)
	}
	ensureVisible(&vp, 4)
	if vp.YOffset != 3 {
		t.Errorf("visible row moved the view to %d", vp.YOffset)
	}
	ensureVisible(&vp, 1)
	if vp.YOffset != 1 {
		t.Errorf("YOffset = %d, want 1", vp.YOffset)
	}
}

func TestModel_Selection(t *testing.T) {
	m, studio, _ := newTestModel(t, "a\nb\nc")

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	if got := studio.LineStore().SelectedIndex(); got != 2 {
		t.Errorf("selected = %d, want 2", got)
	}

	m, _ = press(t, m, "up")
	if got := studio.LineStore().SelectedIndex(); got != 1 {
		t.Errorf("selected = %d, want 1", got)
	}
	if !strings.Contains(m.View(), " 2/3 ") {
		t.Errorf("status bar does not show the position:\n%s", m.View())
	}
}

func TestModel_EditLine(t *testing.T) {
	m, studio, _ := newTestModel(t, "a\nb")

	m, _ = press(t, m, "i")
	if m.mode != modeEditLine {
		t.Fatalf("mode = %v, want %v", m.mode, modeEditLine)
	}
	if got := m.editor.Value(); got != "a" {
		t.Errorf("editor value = %q, want a", got)
	}

	// Shortcuts are suspended while typing.
	m, _ = press(t, m, "q")
	if m.mode != modeEditLine {
		t.Fatal("q left the editor")
	}

	m.editor.SetValue("changed")
	m, _ = press(t, m, "enter")
	if m.mode != modeBrowse {
		t.Errorf("mode = %v after enter", m.mode)
	}
	if got := studio.Lines()[0].Text; got != "changed" {
		t.Errorf("line text = %q, want changed", got)
	}
}

func TestModel_EditCancel(t *testing.T) {
	m, studio, _ := newTestModel(t, "a")

	m, _ = press(t, m, "i")
	m.editor.SetValue("nope")
	m, _ = press(t, m, "esc")

	if m.mode != modeBrowse {
		t.Errorf("mode = %v after esc", m.mode)
	}
	if got := studio.Lines()[0].Text; got != "a" {
		t.Errorf("line text = %q, want a", got)
	}
}

func TestModel_Clipboard(t *testing.T) {
	m, studio, _ := newTestModel(t, "")

	m = update(t, m, clipboardMsg{text: "one\ntwo\n\n three "})
	if n := len(studio.Lines()); n != 3 {
		t.Fatalf("lines = %d, want 3", n)
	}
	if !m.showStatus || m.statusMessage.message != "Pasted 3 lines" {
		t.Errorf("status = %+v", m.statusMessage)
	}

	// Without a clipboard the paste editor opens instead.
	m = update(t, m, clipboardMsg{err: errors.New("no clipboard utility")})
	if m.mode != modePaste {
		t.Fatalf("mode = %v, want %v", m.mode, modePaste)
	}
	m.editor.SetValue("x\ny")
	m, _ = press(t, m, "ctrl+s")
	if n := len(studio.Lines()); n != 2 {
		t.Errorf("lines = %d, want 2", n)
	}
}

func TestModel_SpeedKeys(t *testing.T) {
	m, studio, _ := newTestModel(t, "a")
	ctrl := studio.Controller()

	m, _ = press(t, m, "+")
	want := tts.NextSpeed(1.0)
	if got := ctrl.PlaybackSpeed(); got != want {
		t.Errorf("speed = %v, want %v", got, want)
	}
	if !strings.Contains(m.statusMessage.message, tts.SpeedDisplay(want)) {
		t.Errorf("status = %q", m.statusMessage.message)
	}

	_, _ = press(t, m, "-")
	if got := ctrl.PlaybackSpeed(); got != 1.0 {
		t.Errorf("speed = %v, want 1.0", got)
	}
}

func TestModel_SelectVoice(t *testing.T) {
	m, studio, _ := newTestModel(t, "a")

	m, _ = press(t, m, "2")
	v, ok := studio.Voice()
	if !ok || v.ID != "v-1" {
		t.Errorf("voice = %+v, want v-1", v)
	}
	if m.statusMessage.message != "Voice: Mao (Whisper)" {
		t.Errorf("status = %q", m.statusMessage.message)
	}

	m, _ = press(t, m, "9")
	if !m.statusMessage.isError {
		t.Error("missing voice preset not reported")
	}
	if v, _ := studio.Voice(); v.ID != "v-1" {
		t.Errorf("voice changed to %q", v.ID)
	}
}

func TestModel_TogglePlay(t *testing.T) {
	m, _, device := newTestModel(t, "a\nb")

	m, cmd := press(t, m, " ")
	if cmd == nil {
		t.Fatal("space returned no command")
	}
	if m.pending != 1 {
		t.Errorf("pending = %d, want 1", m.pending)
	}

	done, ok := cmd().(actionDoneMsg)
	if !ok {
		t.Fatalf("command returned %T", done)
	}
	if done.err != nil {
		t.Fatalf("play failed: %v", done.err)
	}
	if !device.WaitForPlays(1, time.Second) {
		t.Fatal("nothing reached the device")
	}

	m = update(t, m, done)
	if m.pending != 0 {
		t.Errorf("pending = %d after completion", m.pending)
	}
}

func TestModel_StudioEvents(t *testing.T) {
	m, studio, _ := newTestModel(t, "a\nb")
	id := studio.Lines()[1].ID

	m = update(t, m, studioEventMsg(tts.Event{Type: tts.EventStateChanged, State: ttypes.StatePlaying}))
	m = update(t, m, studioEventMsg(tts.Event{Type: tts.EventHighlight, LineID: id}))
	if m.state != ttypes.StatePlaying || m.playing != id {
		t.Errorf("state = %v playing = %q", m.state, m.playing)
	}

	m = update(t, m, studioEventMsg(tts.Event{Type: tts.EventError, Err: errors.New("backend down")}))
	if !strings.Contains(m.noteView(), "backend down") {
		t.Errorf("note = %q", m.noteView())
	}

	m = update(t, m, studioEventMsg(tts.Event{Type: tts.EventCompleted}))
	if m.statusMessage.message != "Finished reading" {
		t.Errorf("status = %q", m.statusMessage.message)
	}
}

func TestModel_Help(t *testing.T) {
	m, _, _ := newTestModel(t, "a")
	before := m.list.Height

	m, _ = press(t, m, "?")
	if !m.showHelp {
		t.Fatal("help not shown")
	}
	if m.list.Height >= before {
		t.Errorf("list height %d not reduced from %d", m.list.Height, before)
	}
	if !strings.Contains(m.View(), "toggle help") {
		t.Error("help view missing")
	}
}

func TestModel_Quit(t *testing.T) {
	m, _, _ := newTestModel(t, "a")

	_, cmd := press(t, m, "q")
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if m.ctx.Err() == nil {
		t.Error("quit did not cancel in-flight work")
	}
}

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(path, []byte("a\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	m, _, _ := newTestModel(t, "a")
	m.cfg.Path = path
	m.initWatcher()
	if m.watcher == nil {
		t.Fatal("watcher not started")
	}
	t.Cleanup(m.unwatchFile)

	got := make(chan tea.Msg, 1)
	go func() { got <- m.watchFile() }()

	if err := os.WriteFile(path, []byte("x\ny\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-got:
		reload, ok := msg.(reloadMsg)
		if !ok {
			t.Fatalf("got %T, want reloadMsg", msg)
		}
		if !strings.Contains(reload.text, "x") {
			t.Errorf("reload text = %q", reload.text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestIndent(t *testing.T) {
	if got := indent("a\nb", 2); got != "  a\n  b\n" {
		t.Errorf("indent = %q", got)
	}
	if got := indent("a", 0); got != "a" {
		t.Errorf("indent with 0 = %q", got)
	}
}
