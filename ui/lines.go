package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/miovo/miovo/internal/ttypes"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

const (
	lineNumberWidth = 4
	gutterWidth     = 4 // marker + space + status icon + space
)

// statusIcon returns the one-cell glyph shown next to a line. busy is the
// current spinner frame, used for lines being synthesized.
func statusIcon(status ttypes.LineStatus, busy string) string {
	switch status {
	case ttypes.StatusPending:
		return "·"
	case ttypes.StatusProcessing:
		if busy != "" {
			return busy
		}
		return "…"
	case ttypes.StatusDone:
		return "✓"
	case ttypes.StatusError:
		return lineErrorStyle("✗")
	default:
		return " "
	}
}

// renderLines draws the line list. The selected line carries a marker and the
// playing line is highlighted across the full width.
func renderLines(lines []ttypes.Line, selected int, playing string, busy string, width int) string {
	if len(lines) == 0 {
		return subtleStyle.Render("  No lines. Press p to paste from the clipboard or i to type.")
	}

	textWidth := max(0, width-lineNumberWidth-gutterWidth)

	var b strings.Builder
	for i, line := range lines {
		marker := " "
		if i == selected {
			marker = selectedLineStyle("›")
		}

		text := truncate.StringWithTail(line.Text, uint(textWidth), ellipsis) //nolint:gosec
		switch {
		case line.ID == playing:
			pad := max(0, textWidth-runewidth.StringWidth(text))
			text = playingLineStyle(text + strings.Repeat(" ", pad))
		case i == selected:
			text = selectedLineStyle(text)
		}

		fmt.Fprintf(&b, "%s%s %s %s",
			lineNumberStyle(fmt.Sprintf("%"+fmt.Sprint(lineNumberWidth)+"d", i+1)),
			marker,
			statusIcon(line.Status, busy),
			text,
		)
		if i+1 < len(lines) {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// ensureVisible scrolls vp so that row is inside the visible window.
func ensureVisible(vp *viewport.Model, row int) {
	if vp.Height <= 0 || row < 0 {
		return
	}
	switch {
	case row < vp.YOffset:
		vp.SetYOffset(row)
	case row >= vp.YOffset+vp.Height:
		vp.SetYOffset(row - vp.Height + 1)
	}
}

// fillWidth pads every line of s to width so that background colours span
// the terminal.
func fillWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i := range lines {
		n := max(width-ansi.PrintableRuneWidth(lines[i]), 0)
		lines[i] += strings.Repeat(" ", n)
	}
	return strings.Join(lines, "\n")
}
