package tts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miovo/miovo/internal/ttypes"
	"golang.org/x/text/unicode/norm"
)

// ParseLines splits pasted text into line texts: one per non-blank row,
// trimmed and NFC-normalized so visually equal text is byte-equal.
func ParseLines(text string) []string {
	rows := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		row = strings.TrimSpace(norm.NFC.String(row))
		if row == "" {
			continue
		}
		out = append(out, row)
	}
	return out
}

// LineStore is the ordered list of lines the user is working on, plus the
// current selection.
type LineStore struct {
	mu       sync.RWMutex
	lines    []ttypes.Line
	selected int

	// now is swapped in tests
	now func() time.Time
}

// NewLineStore creates an empty store.
func NewLineStore() *LineStore {
	return &LineStore{selected: -1, now: time.Now}
}

// Replace discards every line and builds a new list from pasted text.
// It returns the new lines; ids are "line-<unix millis>-<index>".
func (s *LineStore) Replace(text string) []ttypes.Line {
	texts := ParseLines(text)
	stamp := s.now().UnixMilli()

	lines := make([]ttypes.Line, len(texts))
	for i, t := range texts {
		lines[i] = ttypes.Line{
			ID:   fmt.Sprintf("line-%d-%d", stamp, i),
			Text: t,
		}
	}

	s.mu.Lock()
	s.lines = lines
	s.selected = -1
	if len(lines) > 0 {
		s.selected = 0
	}
	s.mu.Unlock()

	return s.Lines()
}

// Lines returns a copy of the lines in order.
func (s *LineStore) Lines() []ttypes.Line {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ttypes.Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// IDs returns the line ids in order.
func (s *LineStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.lines))
	for i, l := range s.lines {
		ids[i] = l.ID
	}
	return ids
}

// Len returns the number of lines.
func (s *LineStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Get returns a line by id.
func (s *LineStore) Get(id string) (ttypes.Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.lines[i], true
	}
	return ttypes.Line{}, false
}

// Index returns the position of a line, or -1.
func (s *LineStore) Index(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

// UpdateText edits a line. The status is reset because any audio for the
// old text is stale.
func (s *LineStore) UpdateText(id, text string) error {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return NewTTSError(ErrorCodeInvalidInput, "line text cannot be empty", nil).WithContext("line", id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, id)
	}
	s.lines[i].Text = text
	s.lines[i].Status = ttypes.StatusNone
	s.lines[i].Error = ""
	return nil
}

// SetStatus records the outcome of a generation attempt.
func (s *LineStore) SetStatus(id string, status ttypes.LineStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, id)
	}
	s.lines[i].Status = status
	s.lines[i].Error = errMsg
	return nil
}

// Selected returns the selected line.
func (s *LineStore) Selected() (ttypes.Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.selected < 0 || s.selected >= len(s.lines) {
		return ttypes.Line{}, false
	}
	return s.lines[s.selected], true
}

// SelectedIndex returns the selected position, or -1.
func (s *LineStore) SelectedIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Select moves the selection to a line id.
func (s *LineStore) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.selected = i
	return true
}

// MoveSelection shifts the selection by delta, clamped to the list.
func (s *LineStore) MoveSelection(delta int) (ttypes.Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.lines) == 0 {
		return ttypes.Line{}, false
	}
	next := s.selected + delta
	if next < 0 {
		next = 0
	}
	if next >= len(s.lines) {
		next = len(s.lines) - 1
	}
	s.selected = next
	return s.lines[next], true
}

func (s *LineStore) indexOf(id string) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}
