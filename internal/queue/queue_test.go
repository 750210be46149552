package queue

import (
	"sync"
	"testing"
)

func TestPlayback_AppendKeepsOrder(t *testing.T) {
	q := NewPlayback()

	for _, id := range []string{"line-1", "line-3", "line-4"} {
		if _, err := q.Append(id, []byte(id)); err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
	}

	if q.Len() != 3 {
		t.Fatalf("Len = %d, want 3", q.Len())
	}

	tests := []struct {
		pos  int
		want string
	}{
		{0, "line-1"},
		{1, "line-3"},
		{2, "line-4"},
		{3, ""},
		{-1, ""},
	}
	for _, tt := range tests {
		if got := q.LineID(tt.pos); got != tt.want {
			t.Errorf("LineID(%d) = %q, want %q", tt.pos, got, tt.want)
		}
	}

	if pos, ok := q.PositionOf("line-3"); !ok || pos != 1 {
		t.Errorf("PositionOf(line-3) = %d, %v; want 1, true", pos, ok)
	}
	if _, ok := q.PositionOf("line-2"); ok {
		t.Error("PositionOf found a line that was never appended")
	}
	if !q.IsLast(2) || q.IsLast(1) {
		t.Error("IsLast reports the wrong position")
	}
}

func TestPlayback_AtOutOfRange(t *testing.T) {
	q := NewPlayback()
	if _, err := q.At(0); err != ErrOutOfRange {
		t.Errorf("At(0) on empty queue error = %v, want ErrOutOfRange", err)
	}
}

func TestPlayback_RejectsEmptyEntries(t *testing.T) {
	q := NewPlayback()
	if _, err := q.Append("", []byte("x")); err != ErrEmptyEntry {
		t.Errorf("Append without id error = %v", err)
	}
	if _, err := q.Append("line-1", nil); err != ErrEmptyEntry {
		t.Errorf("Append without audio error = %v", err)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d after rejected appends", q.Len())
	}
}

func TestPlayback_Clear(t *testing.T) {
	q := NewPlayback()
	_, _ = q.Append("a", []byte("aa"))
	_, _ = q.Append("b", []byte("bbb"))

	q.Clear()

	if q.Len() != 0 {
		t.Errorf("Len = %d after Clear", q.Len())
	}
	if ids := q.LineIDs(); len(ids) != 0 {
		t.Errorf("LineIDs = %v after Clear", ids)
	}

	stats := q.GetStats()
	if stats.TotalAppended != 2 || stats.TotalCleared != 1 || stats.PeakSize != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.Bytes != 0 {
		t.Errorf("Bytes = %d after Clear", stats.Bytes)
	}
}

func TestPlayback_ConcurrentAccess(t *testing.T) {
	q := NewPlayback()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = q.Append("line", []byte{byte(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = q.LineID(i % 10)
			_ = q.Len()
		}
	}()
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("Len = %d, want 100", q.Len())
	}
}
