package tts

import (
	"github.com/miovo/miovo/internal/ttypes"
)

// LineSource supplies the play-all controller with the lines to read and
// the voice parameters to read them with.
type LineSource interface {
	// Lines returns a snapshot of the line list in order.
	Lines() []ttypes.Line

	// Line returns the current state of one line.
	Line(id string) (ttypes.Line, bool)

	// Voice returns the selected voice, false when none is selected.
	Voice() (ttypes.Voice, bool)

	// Settings returns the voice controls applied to every request.
	Settings() ttypes.AudioSettings

	// SetLineStatus records the outcome of a generation attempt.
	SetLineStatus(id string, status ttypes.LineStatus, errMsg string)
}
