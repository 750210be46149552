// Package ui provides the terminal studio for miovo.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/miovo/miovo/internal/keys"
	"github.com/miovo/miovo/internal/tts"
	"github.com/miovo/miovo/internal/ttypes"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"
)

// NewProgram returns a new Tea program driving studio.
func NewProgram(cfg Config, studio *tts.Studio) *tea.Program {
	log.Debug(
		"Starting miovo",
		"engine", cfg.Engine,
		"path", cfg.Path,
		"lines", len(studio.Lines()),
	)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, studio), opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	studioEventMsg  tts.Event
	eventsClosedMsg struct{}
	voicesLoadedMsg struct {
		voices []ttypes.Voice
		err    error
	}
	actionDoneMsg struct {
		action keys.Action
		err    error
	}
	exportDoneMsg struct {
		path string
		size int64
		err  error
	}
	clipboardMsg struct {
		text string
		err  error
	}
	reloadMsg struct {
		text string
	}
	statusMessageTimeoutMsg struct{}
)

// mode is what currently has keyboard focus.
type mode int

const (
	modeBrowse mode = iota
	modeEditLine
	modePaste
)

func (m mode) String() string {
	return map[mode]string{
		modeBrowse:   "browsing lines",
		modeEditLine: "editing line",
		modePaste:    "pasting lines",
	}[m]
}

type statusMessage struct {
	message string
	isError bool
}

type model struct {
	cfg    Config
	studio *tts.Studio
	ctx    context.Context
	cancel context.CancelFunc

	width    int
	height   int
	mode     mode
	fatalErr error
	showHelp bool

	list    viewport.Model
	editor  textarea.Model
	editing string // line being edited in modeEditLine
	spinner spinner.Model
	pending int    // generate and play commands in flight

	state   ttypes.State
	playing string
	lastErr error

	showStatus         bool
	statusMessage      statusMessage
	statusMessageTimer *time.Timer

	watcher *fsnotify.Watcher
}

func newModel(cfg Config, studio *tts.Studio) model {
	ctx, cancel := context.WithCancel(context.Background())

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "┃ "

	m := model{
		cfg:     cfg,
		studio:  studio,
		ctx:     ctx,
		cancel:  cancel,
		list:    viewport.New(0, 0),
		editor:  ta,
		spinner: spinner.New(spinner.WithSpinner(spinner.MiniDot)),
	}
	if cfg.StatusMessageTimeout <= 0 {
		m.cfg.StatusMessageTimeout = 3 * time.Second
	}
	if cfg.Path != "" {
		m.initWatcher()
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		loadVoices(m.ctx, m.studio),
		waitForEvent(m.studio.Events()),
		m.spinner.Tick,
	}
	if m.watcher != nil {
		cmds = append(cmds, m.watchFile)
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.fatalErr != nil {
			cmd := m.quit()
			return m, cmd
		}

		ev := keys.KeyEvent{Key: msg.String(), InTextInput: m.editorFocused()}
		if res, ok := keys.Route(ev); ok {
			cmd := m.handleAction(res)
			return m, cmd
		}
		if m.editorFocused() {
			cmd := m.updateEditor(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.setSize(msg.Width, msg.Height)
		m.refresh()

	case studioEventMsg:
		m.handleEvent(tts.Event(msg))
		cmds = append(cmds, waitForEvent(m.studio.Events()))

	case eventsClosedMsg:
		log.Debug("studio event stream closed")

	case voicesLoadedMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(statusMessage{"Voices unavailable, using defaults", true}))
		} else if v, ok := m.studio.Voice(); ok {
			cmds = append(cmds, m.showStatusMessage(statusMessage{
				fmt.Sprintf("%d voices, using %s", len(msg.voices), v.Name), false,
			}))
		}

	case actionDoneMsg:
		m.pending = max(0, m.pending-1)
		if msg.err != nil && !tts.IsCanceled(msg.err) {
			log.Debug("action failed", "action", msg.action, "error", msg.err)
			cmds = append(cmds, m.showStatusMessage(statusMessage{msg.err.Error(), true}))
		}
		m.refresh()

	case exportDoneMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(statusMessage{msg.err.Error(), true}))
		} else {
			cmds = append(cmds, m.showStatusMessage(statusMessage{
				fmt.Sprintf("Exported %s (%s)", msg.path, humanize.Bytes(uint64(msg.size))), false, //nolint:gosec
			}))
		}

	case clipboardMsg:
		if msg.err != nil || strings.TrimSpace(msg.text) == "" {
			if msg.err != nil {
				log.Debug("clipboard unavailable", "error", msg.err)
			}
			cmds = append(cmds, m.openEditor(modePaste, "", ""))
			cmds = append(cmds, m.showStatusMessage(statusMessage{"Clipboard is empty, type the lines instead", false}))
			break
		}
		lines := m.studio.Paste(msg.text)
		m.refresh()
		cmds = append(cmds, m.showStatusMessage(statusMessage{fmt.Sprintf("Pasted %d lines", len(lines)), false}))

	case reloadMsg:
		log.Info("reloading lines", "path", m.cfg.Path)
		lines := m.studio.Paste(msg.text)
		m.refresh()
		cmds = append(cmds,
			m.showStatusMessage(statusMessage{fmt.Sprintf("Reloaded %d lines", len(lines)), false}),
			m.watchFile,
		)

	case statusMessageTimeoutMsg:
		m.showStatus = false

	case errMsg:
		log.Error("error", "error", msg.err)
		cmds = append(cmds, m.showStatusMessage(statusMessage{msg.Error(), true}))
		if m.watcher != nil {
			cmds = append(cmds, m.watchFile)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.pending > 0 || m.state == ttypes.StateGenerating {
			m.refresh()
		}
		cmds = append(cmds, cmd)

	default:
		if m.editorFocused() {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// handleAction runs one routed shortcut.
func (m *model) handleAction(res keys.Result) tea.Cmd {
	ctx, studio := m.ctx, m.studio
	ctrl := studio.Controller()
	selected, hasSelection := studio.LineStore().Selected()

	switch res.Action {
	case keys.TogglePlay:
		m.pending++
		return runAction(keys.TogglePlay, func() error {
			return ctrl.TogglePlay(ctx)
		})

	case keys.Stop:
		ctrl.Stop()
		m.studio.StopLine()

	case keys.Skip:
		if err := ctrl.Skip(); err != nil {
			return m.showStatusMessage(statusMessage{err.Error(), true})
		}

	case keys.AccentPrev, keys.AccentNext:
		if !hasSelection {
			return nil
		}
		delta := 1
		if res.Action == keys.AccentPrev {
			delta = -1
		}
		if err := m.studio.AdjustAccent(selected.ID, 0, delta); err != nil {
			return m.showStatusMessage(statusMessage{err.Error(), true})
		}

	case keys.SelectPrev, keys.SelectNext:
		delta := 1
		if res.Action == keys.SelectPrev {
			delta = -1
		}
		m.studio.LineStore().MoveSelection(delta)
		m.refresh()

	case keys.SelectVoice:
		v, ok := m.studio.SelectVoicePreset(res.Voice)
		if !ok {
			return m.showStatusMessage(statusMessage{fmt.Sprintf("No voice %d", res.Voice), true})
		}
		return m.showStatusMessage(statusMessage{"Voice: " + v.Name, false})

	case keys.Regenerate:
		if !hasSelection {
			return nil
		}
		m.pending++
		m.refresh()
		id := selected.ID
		return runAction(keys.Regenerate, func() error {
			if _, err := studio.Generate(ctx, id); err != nil {
				return err
			}
			return studio.PlayLine(ctx, id)
		})

	case keys.SpeedUp, keys.SpeedDown:
		next := tts.NextSpeed(ctrl.PlaybackSpeed())
		if res.Action == keys.SpeedDown {
			next = tts.PrevSpeed(ctrl.PlaybackSpeed())
		}
		if err := ctrl.SetPlaybackSpeed(next); err != nil {
			return m.showStatusMessage(statusMessage{err.Error(), true})
		}
		return m.showStatusMessage(statusMessage{"Speed " + tts.SpeedDisplay(next), false})

	case keys.Export:
		return exportLines(ctx, studio)

	case keys.Edit:
		if !hasSelection {
			return m.openEditor(modePaste, "", "")
		}
		return m.openEditor(modeEditLine, selected.ID, selected.Text)

	case keys.PasteClipboard:
		return readClipboard

	case keys.Copy:
		lines := m.studio.Lines()
		texts := make([]string, len(lines))
		for i, l := range lines {
			texts[i] = l.Text
		}
		body := strings.Join(texts, "\n")
		// Copy using OSC 52
		termenv.Copy(body)
		// Copy using native system clipboard
		_ = clipboard.WriteAll(body)
		return m.showStatusMessage(statusMessage{fmt.Sprintf("Copied %d lines", len(lines)), false})

	case keys.Help:
		m.toggleHelp()

	case keys.Quit:
		return m.quit()
	}

	return nil
}

// updateEditor feeds keys to the textarea. ctrl+s commits in both modes;
// enter also commits a single-line edit.
func (m *model) updateEditor(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.closeEditor()
		return m.showStatusMessage(statusMessage{"Edit canceled", false})

	case "ctrl+s":
		return m.commitEditor()

	case "enter":
		if m.mode == modeEditLine {
			return m.commitEditor()
		}
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return cmd
}

func (m *model) commitEditor() tea.Cmd {
	value := m.editor.Value()
	md, id := m.mode, m.editing
	m.closeEditor()

	switch md {
	case modeEditLine:
		if err := m.studio.EditLine(id, strings.TrimSpace(value)); err != nil {
			return m.showStatusMessage(statusMessage{err.Error(), true})
		}
		m.refresh()
		return m.showStatusMessage(statusMessage{"Line updated", false})

	case modePaste:
		lines := m.studio.Paste(value)
		m.refresh()
		return m.showStatusMessage(statusMessage{fmt.Sprintf("Pasted %d lines", len(lines)), false})
	}
	return nil
}

func (m *model) openEditor(md mode, id, text string) tea.Cmd {
	m.mode = md
	m.editing = id
	m.editor.Reset()
	m.editor.SetValue(text)
	m.setSize(m.width, m.height)
	return m.editor.Focus()
}

func (m *model) closeEditor() {
	m.mode = modeBrowse
	m.editing = ""
	m.editor.Blur()
	m.editor.Reset()
}

func (m model) editorFocused() bool {
	return m.mode != modeBrowse
}

func (m *model) handleEvent(e tts.Event) {
	switch e.Type {
	case tts.EventStateChanged:
		m.state = e.State
	case tts.EventHighlight:
		m.playing = e.LineID
		if idx := m.studio.LineStore().Index(e.LineID); idx >= 0 {
			ensureVisible(&m.list, idx)
		}
	case tts.EventError:
		m.lastErr = e.Err
	case tts.EventCompleted:
		m.statusMessage = statusMessage{"Finished reading", false}
		m.showStatus = true
	}
	m.refresh()
}

// refresh re-renders the line list into the viewport.
func (m *model) refresh() {
	store := m.studio.LineStore()
	selected := store.SelectedIndex()
	m.list.SetContent(renderLines(m.studio.Lines(), selected, m.playing, m.spinner.View(), m.list.Width))
	ensureVisible(&m.list, selected)
}

func (m *model) setSize(w, h int) {
	m.list.Width = w
	m.list.Height = h - statusBarHeight

	if m.showHelp {
		m.list.Height -= statusBarHeight + strings.Count(m.helpView(), "\n")
	}
	m.list.Height = max(0, m.list.Height)

	m.editor.SetWidth(max(10, w-2))
	m.editor.SetHeight(max(1, h-statusBarHeight-3))
}

func (m *model) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.width, m.height)
	m.refresh()
}

func (m *model) showStatusMessage(msg statusMessage) tea.Cmd {
	m.showStatus = true
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(m.cfg.StatusMessageTimeout)

	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) quit() tea.Cmd {
	m.cancel()
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.unwatchFile()
	return tea.Quit
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	if m.editorFocused() {
		title := "Edit line"
		if m.mode == modePaste {
			title = "Paste lines"
		}
		fmt.Fprintf(&b, "%s %s\n\n%s\n",
			editorTitleStyle.Render(title),
			subtleStyle.Render("ctrl+s save • esc cancel"),
			m.editor.View(),
		)
	} else {
		fmt.Fprint(&b, m.list.View()+"\n")
	}

	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m model) statusBarView(b *strings.Builder) {
	logo := logoView()

	lines := m.studio.Lines()
	position := fmt.Sprintf(" %d/%d ", m.studio.LineStore().SelectedIndex()+1, len(lines))
	if len(lines) == 0 {
		position = " 0/0 "
	}

	var (
		note      string
		noteStyle = statusBarNoteStyle
		helpStyle = statusBarHelpStyle
	)
	switch {
	case m.showStatus && m.statusMessage.isError:
		note = m.statusMessage.message
		noteStyle = statusBarErrorStyle
	case m.showStatus:
		note = m.statusMessage.message
		noteStyle = statusBarMessageStyle
		helpStyle = statusBarMessageHelpStyle
	default:
		note = m.noteView()
		if m.lastErr != nil {
			noteStyle = statusBarErrorStyle
		}
	}

	position = statusBarPosStyle(position)
	helpNote := helpStyle(" ? Help ")

	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	note = noteStyle(note)

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(position)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := noteStyle(strings.Repeat(" ", padding))

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		position,
		helpNote,
	)
}

// noteView summarizes session state for the status bar.
func (m model) noteView() string {
	parts := []string{m.state.String()}
	if m.pending > 0 && m.state == ttypes.StateIdle {
		parts[0] = "working " + m.spinner.View()
	}
	if v, ok := m.studio.Voice(); ok {
		parts = append(parts, v.Name)
	} else {
		parts = append(parts, "no voice")
	}
	parts = append(parts, tts.SpeedDisplay(m.studio.Controller().PlaybackSpeed()))
	if stats := m.studio.CacheStats(); stats.Items > 0 {
		parts = append(parts, fmt.Sprintf("%d cached (%s)", stats.Items, humanize.Bytes(uint64(stats.Size)))) //nolint:gosec
	}
	if m.lastErr != nil {
		parts = append(parts, "error: "+m.lastErr.Error())
	}
	return strings.Join(parts, " • ")
}

func (m model) helpView() string {
	bindings := keys.Bindings()
	half := (len(bindings) + 1) / 2

	var b strings.Builder
	for i := 0; i < half; i++ {
		fmt.Fprintf(&b, "\n%-10s %-22s", bindings[i].Keys, bindings[i].Help)
		if j := i + half; j < len(bindings) {
			fmt.Fprintf(&b, "%-10s %s", bindings[j].Keys, bindings[j].Help)
		}
	}

	s := indent(b.String(), 2)
	return helpViewStyle(fillWidth(s, m.width))
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func loadVoices(ctx context.Context, studio *tts.Studio) tea.Cmd {
	return func() tea.Msg {
		voices, err := studio.LoadVoices(ctx)
		return voicesLoadedMsg{voices: voices, err: err}
	}
}

func waitForEvent(ch <-chan tts.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return studioEventMsg(e)
	}
}

func runAction(action keys.Action, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

func exportLines(ctx context.Context, studio *tts.Studio) tea.Cmd {
	return func() tea.Msg {
		path, size, err := studio.Export(ctx)
		return exportDoneMsg{path: path, size: size, err: err}
	}
}

func readClipboard() tea.Msg {
	text, err := clipboard.ReadAll()
	return clipboardMsg{text: text, err: err}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
