package queue

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrOutOfRange is returned when a position is outside the queue
	ErrOutOfRange = errors.New("queue position out of range")

	// ErrEmptyEntry is returned when an entry has no line id or no audio
	ErrEmptyEntry = errors.New("queue entry needs a line id and audio")
)

// Entry is one synthesized line waiting to be played.
type Entry struct {
	LineID string
	Audio  []byte
}

// Stats tracks queue activity
type Stats struct {
	TotalAppended int64
	TotalCleared  int64
	CurrentSize   int
	PeakSize      int
	Bytes         int64
	LastAppend    time.Time
}

// Playback is an append-only, ordered list of entries. Positions are dense:
// a line whose synthesis failed is simply absent, so position i is not
// line i. Use LineID to map a position back to its line.
type Playback struct {
	entries []Entry
	index   map[string]int

	// Synchronization
	mu sync.RWMutex

	stats Stats
}

// NewPlayback creates an empty playback queue.
func NewPlayback() *Playback {
	return &Playback{
		index: make(map[string]int),
	}
}

// Append adds an entry after all existing entries and returns its position.
func (q *Playback) Append(lineID string, audio []byte) (int, error) {
	if lineID == "" || len(audio) == 0 {
		return 0, ErrEmptyEntry
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	pos := len(q.entries)
	q.entries = append(q.entries, Entry{LineID: lineID, Audio: audio})
	q.index[lineID] = pos

	q.stats.TotalAppended++
	q.stats.Bytes += int64(len(audio))
	q.stats.LastAppend = time.Now()
	q.stats.CurrentSize = len(q.entries)
	if q.stats.CurrentSize > q.stats.PeakSize {
		q.stats.PeakSize = q.stats.CurrentSize
	}
	return pos, nil
}

// At returns the entry at a position.
func (q *Playback) At(pos int) (Entry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if pos < 0 || pos >= len(q.entries) {
		return Entry{}, ErrOutOfRange
	}
	return q.entries[pos], nil
}

// LineID returns the line behind a position, or "" when out of range.
func (q *Playback) LineID(pos int) string {
	entry, err := q.At(pos)
	if err != nil {
		return ""
	}
	return entry.LineID
}

// PositionOf returns the position holding a line's audio.
func (q *Playback) PositionOf(lineID string) (int, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pos, ok := q.index[lineID]
	return pos, ok
}

// LineIDs returns the line ids in playback order.
func (q *Playback) LineIDs() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ids := make([]string, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.LineID
	}
	return ids
}

// Len returns the number of entries.
func (q *Playback) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// IsLast reports whether pos is the final entry.
func (q *Playback) IsLast(pos int) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return pos == len(q.entries)-1
}

// Clear drops every entry.
func (q *Playback) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) > 0 {
		q.stats.TotalCleared++
	}
	q.entries = nil
	q.index = make(map[string]int)
	q.stats.CurrentSize = 0
	q.stats.Bytes = 0
}

// GetStats returns a copy of the queue statistics.
func (q *Playback) GetStats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stats
}
