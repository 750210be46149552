// Package keys maps keyboard events to studio actions.
//
// Key names follow Bubble Tea's tea.KeyMsg.String() form ("space", "esc",
// "ctrl+s", "alt+right", "3").
package keys

// Action is something the studio can do in response to a key.
type Action int

const (
	// None is the zero Action; Route never returns it with ok set
	None Action = iota

	TogglePlay
	Stop
	Skip
	AccentPrev
	AccentNext
	SelectPrev
	SelectNext
	SelectVoice
	Regenerate
	SpeedUp
	SpeedDown
	Export
	Edit
	PasteClipboard
	Copy
	Help
	Quit
)

var actionNames = map[Action]string{
	None:           "none",
	TogglePlay:     "toggle-play",
	Stop:           "stop",
	Skip:           "skip",
	AccentPrev:     "accent-prev",
	AccentNext:     "accent-next",
	SelectPrev:     "select-prev",
	SelectNext:     "select-next",
	SelectVoice:    "select-voice",
	Regenerate:     "regenerate",
	SpeedUp:        "speed-up",
	SpeedDown:      "speed-down",
	Export:         "export",
	Edit:           "edit",
	PasteClipboard: "paste",
	Copy:           "copy",
	Help:           "help",
	Quit:           "quit",
}

// String returns the action name.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// KeyEvent is one key press.
type KeyEvent struct {
	// Key is the key name, e.g. "space" or "ctrl+s"
	Key string

	// Shift is set when shift was held and the terminal reported it
	Shift bool

	// InTextInput is set while a text field has focus
	InTextInput bool
}

// Result is a routed action. Voice is the 1-based preset for SelectVoice.
type Result struct {
	Action Action
	Voice  int
}

var bindings = map[string]Action{
	" ":         TogglePlay,
	"space":     TogglePlay,
	"esc":       Stop,
	"alt+right": Skip,
	"left":      AccentPrev,
	"right":     AccentNext,
	"up":        SelectPrev,
	"down":      SelectNext,
	"enter":     Regenerate,
	"+":         SpeedUp,
	"=":         SpeedUp,
	"-":         SpeedDown,
	"ctrl+s":    Export,
	"i":         Edit,
	"p":         PasteClipboard,
	"c":         Copy,
	"?":         Help,
	"q":         Quit,
	"ctrl+c":    Quit,
}

// Route maps a key press to an action. It reports false for unbound keys
// and for every key typed into a text field; the text field handles those
// itself, including esc.
func Route(ev KeyEvent) (Result, bool) {
	if ev.InTextInput {
		return Result{}, false
	}

	if len(ev.Key) == 1 && ev.Key[0] >= '1' && ev.Key[0] <= '9' {
		return Result{Action: SelectVoice, Voice: int(ev.Key[0] - '0')}, true
	}

	switch ev.Key {
	case "shift+enter":
		return Result{}, false
	case "enter":
		if ev.Shift {
			return Result{}, false
		}
	}

	action, ok := bindings[ev.Key]
	if !ok {
		return Result{}, false
	}
	return Result{Action: action}, true
}

// Binding describes one shortcut for help output.
type Binding struct {
	Keys string
	Help string
}

// Bindings lists the shortcuts in display order.
func Bindings() []Binding {
	return []Binding{
		{"space", "play all / pause"},
		{"esc", "stop"},
		{"alt+→", "skip"},
		{"↑/↓", "select line"},
		{"enter", "regenerate line"},
		{"←/→", "move accent"},
		{"1-9", "voice preset"},
		{"+/-", "speed"},
		{"i", "edit line"},
		{"p", "paste clipboard"},
		{"c", "copy lines"},
		{"ctrl+s", "export wav"},
		{"?", "toggle help"},
		{"q", "quit"},
	}
}
