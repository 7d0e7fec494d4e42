package queue

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/tessro/encore/internal/core"
)

func songs(ids ...string) []core.Song {
	out := make([]core.Song, len(ids))
	for i, id := range ids {
		out[i] = core.Song{ID: id}
	}
	return out
}

func ids(q core.Queue) []string {
	return core.SongIDs(q.Songs())
}

func currentID(m *Manager) string {
	if e := m.Current(); e != nil {
		return e.Song.ID
	}
	return ""
}

func TestSetQueue(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		wantIndex int
	}{
		{"start", 0, 0},
		{"middle", 1, 1},
		{"negative clamps", -3, 0},
		{"past end clamps", 9, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(1)
			m.SetQueue(songs("A", "B", "C"), tt.start)
			if got := m.Snapshot().CurrentIndex; got != tt.wantIndex {
				t.Errorf("CurrentIndex = %d, want %d", got, tt.wantIndex)
			}
		})
	}

	m := New(1)
	m.SetQueue(songs("A"), 0)
	m.SetQueue(nil, 0)
	if m.Len() != 1 {
		t.Error("SetQueue(nil) should be a no-op")
	}
}

func TestAppendKeepsIndex(t *testing.T) {
	m := New(1)
	m.Append(core.Song{ID: "A"})
	if currentID(m) != "A" {
		t.Fatalf("current = %q, want A", currentID(m))
	}
	m.AppendMany(songs("B", "A"))
	q := m.Snapshot()
	if !slices.Equal(ids(q), []string{"A", "B", "A"}) || q.CurrentIndex != 0 {
		t.Errorf("queue = %v @ %d", ids(q), q.CurrentIndex)
	}
	if q.Entries[0].Key == q.Entries[2].Key {
		t.Error("duplicate songs share an entry key")
	}
}

func TestInsertAt(t *testing.T) {
	m := New(1)
	m.SetQueue(songs("A", "B", "C"), 1)

	m.InsertAt(core.Song{ID: "X"}, 1)
	if q := m.Snapshot(); q.CurrentIndex != 2 || currentID(m) != "B" {
		t.Errorf("insert at current: %v @ %d", ids(q), q.CurrentIndex)
	}

	m.InsertAt(core.Song{ID: "Y"}, 99)
	if q := m.Snapshot(); ids(q)[len(q.Entries)-1] != "Y" || q.CurrentIndex != 2 {
		t.Errorf("insert past end: %v @ %d", ids(q), q.CurrentIndex)
	}

	m.PlayNext(core.Song{ID: "N"})
	q := m.Snapshot()
	if q.Entries[3].Song.ID != "N" || currentID(m) != "B" {
		t.Errorf("play next: %v @ %d", ids(q), q.CurrentIndex)
	}
}

func TestRemoveAt(t *testing.T) {
	tests := []struct {
		name        string
		current     int
		remove      int
		wantIDs     []string
		wantIndex   int
		wantCurrent string
	}{
		{"before current", 1, 0, []string{"B", "C"}, 0, "B"},
		{"current middle", 1, 1, []string{"A", "C"}, 1, "C"},
		{"current last", 2, 2, []string{"A", "B"}, 1, "B"},
		{"after current", 0, 2, []string{"A", "B"}, 0, "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(1)
			m.SetQueue(songs("A", "B", "C"), tt.current)
			if err := m.RemoveAt(tt.remove); err != nil {
				t.Fatal(err)
			}
			q := m.Snapshot()
			if !slices.Equal(ids(q), tt.wantIDs) || q.CurrentIndex != tt.wantIndex || currentID(m) != tt.wantCurrent {
				t.Errorf("got %v @ %d (%s), want %v @ %d (%s)",
					ids(q), q.CurrentIndex, currentID(m), tt.wantIDs, tt.wantIndex, tt.wantCurrent)
			}
		})
	}

	m := New(1)
	m.SetQueue(songs("A"), 0)
	if err := m.RemoveAt(5); err != ErrOutOfRange {
		t.Errorf("RemoveAt(5) = %v, want ErrOutOfRange", err)
	}
	_ = m.RemoveAt(0)
	if m.Current() != nil || m.Snapshot().CurrentIndex != 0 {
		t.Error("removing the last entry should leave an empty queue at index 0")
	}
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		from, to int
		want     []string
	}{
		{"move current forward", 1, 1, 3, []string{"A", "C", "D", "B"}},
		{"move across current backward", 2, 3, 0, []string{"D", "A", "B", "C"}},
		{"move across current forward", 2, 0, 3, []string{"B", "C", "D", "A"}},
		{"move without crossing", 0, 2, 3, []string{"A", "B", "D", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(1)
			m.SetQueue(songs("A", "B", "C", "D"), tt.current)
			before := currentID(m)
			if err := m.Reorder(tt.from, tt.to); err != nil {
				t.Fatal(err)
			}
			if got := ids(m.Snapshot()); !slices.Equal(got, tt.want) {
				t.Errorf("order = %v, want %v", got, tt.want)
			}
			if currentID(m) != before {
				t.Errorf("current = %s, want %s", currentID(m), before)
			}
		})
	}
}

func TestWraparound(t *testing.T) {
	m := New(1)
	if m.Advance() != nil || m.Retreat() != nil {
		t.Error("Advance/Retreat on empty queue should return nil")
	}

	m.SetQueue(songs("A", "B", "C"), 2)
	if e := m.Advance(); e == nil || e.Song.ID != "A" {
		t.Errorf("Advance() from last = %v, want A", e)
	}
	if e := m.Retreat(); e == nil || e.Song.ID != "C" {
		t.Errorf("Retreat() from first = %v, want C", e)
	}
}

func TestAdvanceFrom(t *testing.T) {
	m := New(1)
	if m.AdvanceFrom("nope") != nil {
		t.Error("AdvanceFrom() on empty queue should return nil")
	}

	m.SetQueue(songs("A", "B", "C"), 0)
	first := m.Current().Key
	m.Advance()

	if e := m.AdvanceFrom(first); e != nil {
		t.Errorf("AdvanceFrom(stale key) = %v, want nil", e)
	}
	if got := currentID(m); got != "B" {
		t.Errorf("current = %s, want B", got)
	}

	if e := m.AdvanceFrom(m.Current().Key); e == nil || e.Song.ID != "C" {
		t.Errorf("AdvanceFrom(current key) = %v, want C", e)
	}
}

func TestIndexInvariant(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	m := New(3)

	for i := 0; i < 2000; i++ {
		n := m.Len()
		switch r.IntN(7) {
		case 0:
			m.Append(core.Song{ID: "s"})
		case 1:
			m.InsertAt(core.Song{ID: "i"}, r.IntN(n+3)-1)
		case 2:
			if n > 0 {
				_ = m.RemoveAt(r.IntN(n))
			}
		case 3:
			if n > 0 {
				_ = m.Reorder(r.IntN(n), r.IntN(n))
			}
		case 4:
			m.Advance()
		case 5:
			m.Retreat()
		case 6:
			m.SetShuffle(r.IntN(2) == 0)
		}

		q := m.Snapshot()
		if len(q.Entries) == 0 {
			if q.CurrentIndex != 0 || m.Current() != nil {
				t.Fatalf("step %d: empty queue with index %d", i, q.CurrentIndex)
			}
			continue
		}
		if q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Entries) {
			t.Fatalf("step %d: index %d out of [0,%d)", i, q.CurrentIndex, len(q.Entries))
		}
	}
}

func TestShuffleVisitsEveryEntry(t *testing.T) {
	m := New(42)
	m.SetQueue(songs("A", "B", "C", "D", "E"), 2)
	m.SetShuffle(true)

	order := m.Order()
	if len(order) != 5 || order[0] != 2 {
		t.Fatalf("Order() = %v, want 5 positions starting at current", order)
	}

	seen := map[string]bool{currentID(m): true}
	for i := 0; i < 4; i++ {
		seen[m.Advance().Song.ID] = true
	}
	if len(seen) != 5 {
		t.Errorf("visited %d distinct entries, want 5", len(seen))
	}
	if e := m.Advance(); e.Song.ID != "C" {
		t.Errorf("after a full lap current = %s, want C", e.Song.ID)
	}
	if got := ids(m.Snapshot()); !slices.Equal(got, []string{"A", "B", "C", "D", "E"}) {
		t.Errorf("physical order changed: %v", got)
	}

	m.SetShuffle(false)
	if m.Order() != nil {
		t.Error("Order() should be nil when shuffle is off")
	}
}

func TestShuffleIsDeterministic(t *testing.T) {
	a, b := New(9), New(9)
	for _, m := range []*Manager{a, b} {
		m.SetQueue(songs("A", "B", "C", "D", "E", "F"), 0)
		m.SetShuffle(true)
	}
	if !slices.Equal(a.Order(), b.Order()) {
		t.Errorf("orders differ for the same seed: %v vs %v", a.Order(), b.Order())
	}
}

func TestSubscribe(t *testing.T) {
	m := New(1)
	var changes []Change
	unsubscribe := m.Subscribe(func(c Change) {
		changes = append(changes, c)
		// Listeners may read the queue.
		_ = m.Len()
	})

	m.SetQueue(songs("A", "B"), 0)
	m.Advance()
	m.Clear()
	unsubscribe()
	m.Append(core.Song{ID: "C"})

	if len(changes) != 3 {
		t.Fatalf("got %d changes, want 3", len(changes))
	}
	if changes[1].Reason != ReasonAdvance || changes[1].Current.Song.ID != "B" {
		t.Errorf("advance change = %+v", changes[1])
	}
	if changes[2].Current != nil {
		t.Error("clear change should have no current entry")
	}
}
