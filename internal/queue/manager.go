// Package queue holds the play queue: an ordered list of entries, a pointer
// to the current entry, and an optional shuffle order.
package queue

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/tessro/encore/internal/core"
)

// ErrOutOfRange is returned for indices outside the queue.
var ErrOutOfRange = errors.New("queue index out of range")

// Reason describes the mutation that produced a Change.
type Reason string

const (
	ReasonSet     Reason = "set"
	ReasonAppend  Reason = "append"
	ReasonInsert  Reason = "insert"
	ReasonRemove  Reason = "remove"
	ReasonReorder Reason = "reorder"
	ReasonAdvance Reason = "advance"
	ReasonRetreat Reason = "retreat"
	ReasonJump    Reason = "jump"
	ReasonClear   Reason = "clear"
	ReasonShuffle Reason = "shuffle"
)

// Change is delivered to listeners after every mutation.
type Change struct {
	Reason  Reason
	Queue   core.Queue
	Current *core.QueueEntry
}

// Listener receives queue changes. Listeners run synchronously on the
// mutating goroutine after the queue lock is released, so they may call
// back into the Manager.
type Listener func(Change)

// Manager owns the play queue. All methods are safe for concurrent use.
// When non-empty, 0 <= current < len(entries); when empty, current is 0.
type Manager struct {
	mu      sync.Mutex
	entries []core.QueueEntry
	current int
	shuffle *shuffler

	listeners map[int]Listener
	nextID    int
}

// New returns an empty Manager. seed fixes the shuffle order; pass 0 for a
// time-derived seed.
func New(seed uint64) *Manager {
	return &Manager{
		shuffle:   newShuffler(seed),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for changes and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// unlockAndNotify releases the lock and delivers a change to listeners.
func (m *Manager) unlockAndNotify(reason Reason) {
	change := Change{Reason: reason, Queue: m.snapshotLocked()}
	change.Current = change.Queue.Current()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, id := range slices.Sorted(maps.Keys(m.listeners)) {
		listeners = append(listeners, m.listeners[id])
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(change)
	}
}

func newEntry(song core.Song) core.QueueEntry {
	return core.QueueEntry{Key: uuid.NewString(), Song: song}
}

// SetQueue replaces the queue with songs and makes start current. An empty
// songs list is a no-op. start is clamped into range.
func (m *Manager) SetQueue(songs []core.Song, start int) {
	if len(songs) == 0 {
		return
	}
	m.mu.Lock()
	m.entries = make([]core.QueueEntry, len(songs))
	for i, s := range songs {
		m.entries[i] = newEntry(s)
	}
	m.current = min(max(start, 0), len(songs)-1)
	m.shuffle.rebuild(len(m.entries), m.current)
	m.unlockAndNotify(ReasonSet)
}

// Append adds song to the end of the queue.
func (m *Manager) Append(song core.Song) {
	m.AppendMany([]core.Song{song})
}

// AppendMany adds songs to the end of the queue. The current index is
// unchanged; an empty queue gains its first entry as current.
func (m *Manager) AppendMany(songs []core.Song) {
	if len(songs) == 0 {
		return
	}
	m.mu.Lock()
	for _, s := range songs {
		m.entries = append(m.entries, newEntry(s))
	}
	m.shuffle.rebuild(len(m.entries), m.current)
	m.unlockAndNotify(ReasonAppend)
}

// InsertAt inserts song at index, clamped to [0, len]. Inserting at or
// before the current entry shifts the current index forward.
func (m *Manager) InsertAt(song core.Song, index int) {
	m.mu.Lock()
	index = min(max(index, 0), len(m.entries))
	wasEmpty := len(m.entries) == 0
	m.entries = slices.Insert(m.entries, index, newEntry(song))
	if !wasEmpty && index <= m.current {
		m.current++
	}
	m.shuffle.rebuild(len(m.entries), m.current)
	m.unlockAndNotify(ReasonInsert)
}

// PlayNext inserts song directly after the current entry.
func (m *Manager) PlayNext(song core.Song) {
	m.mu.Lock()
	index := 0
	if len(m.entries) > 0 {
		index = m.current + 1
	}
	m.mu.Unlock()
	m.InsertAt(song, index)
}

// RemoveAt removes the entry at index. Removing the current entry makes the
// entry now at min(current, len-1) current.
func (m *Manager) RemoveAt(index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.entries) {
		m.mu.Unlock()
		return ErrOutOfRange
	}
	m.entries = slices.Delete(m.entries, index, index+1)
	switch {
	case len(m.entries) == 0:
		m.current = 0
	case index < m.current:
		m.current--
	case index == m.current:
		m.current = min(m.current, len(m.entries)-1)
	}
	m.shuffle.rebuild(len(m.entries), m.current)
	m.unlockAndNotify(ReasonRemove)
	return nil
}

// Reorder moves the entry at from to to. The current index follows the
// current entry.
func (m *Manager) Reorder(from, to int) error {
	m.mu.Lock()
	n := len(m.entries)
	if from < 0 || from >= n || to < 0 || to >= n {
		m.mu.Unlock()
		return ErrOutOfRange
	}
	if from == to {
		m.mu.Unlock()
		return nil
	}

	moved := m.entries[from]
	m.entries = slices.Delete(m.entries, from, from+1)
	m.entries = slices.Insert(m.entries, to, moved)

	switch {
	case from == m.current:
		m.current = to
	case from < m.current && to >= m.current:
		m.current--
	case from > m.current && to <= m.current:
		m.current++
	}
	m.shuffle.rebuild(len(m.entries), m.current)
	m.unlockAndNotify(ReasonReorder)
	return nil
}

// Advance moves to the next entry, wrapping to the start. With shuffle
// enabled it follows the shuffle order. It returns the new current entry, or
// nil when the queue is empty.
func (m *Manager) Advance() *core.QueueEntry {
	return m.step(1, ReasonAdvance, nil)
}

// AdvanceFrom advances like Advance, but only while the entry with key is
// still current. It returns nil, leaving the queue alone, once the queue has
// moved on.
func (m *Manager) AdvanceFrom(key string) *core.QueueEntry {
	return m.step(1, ReasonAdvance, &key)
}

// Retreat moves to the previous entry, wrapping to the end.
func (m *Manager) Retreat() *core.QueueEntry {
	return m.step(-1, ReasonRetreat, nil)
}

func (m *Manager) step(delta int, reason Reason, from *string) *core.QueueEntry {
	m.mu.Lock()
	n := len(m.entries)
	if n == 0 || (from != nil && m.entries[m.current].Key != *from) {
		m.mu.Unlock()
		return nil
	}
	if m.shuffle.enabled {
		m.current = m.shuffle.step(m.current, delta)
	} else {
		m.current = ((m.current+delta)%n + n) % n
	}
	entry := m.entries[m.current]
	m.unlockAndNotify(reason)
	return &entry
}

// Jump makes the entry at index current.
func (m *Manager) Jump(index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.entries) {
		m.mu.Unlock()
		return ErrOutOfRange
	}
	m.current = index
	m.unlockAndNotify(ReasonJump)
	return nil
}

// Clear empties the queue.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.current = 0
	m.shuffle.rebuild(0, 0)
	m.unlockAndNotify(ReasonClear)
}

// SetShuffle enables or disables shuffled traversal. The physical order of
// entries is never changed.
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()
	if m.shuffle.enabled == enabled {
		m.mu.Unlock()
		return
	}
	m.shuffle.enabled = enabled
	m.shuffle.rebuild(len(m.entries), m.current)
	m.unlockAndNotify(ReasonShuffle)
}

// ShuffleEnabled reports whether shuffle is on.
func (m *Manager) ShuffleEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuffle.enabled
}

// Snapshot returns a copy of the queue.
func (m *Manager) Snapshot() core.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() core.Queue {
	return core.Queue{
		Entries:        slices.Clone(m.entries),
		CurrentIndex:   m.current,
		ShuffleEnabled: m.shuffle.enabled,
	}
}

// Current returns a copy of the current entry, or nil when empty.
func (m *Manager) Current() *core.QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil
	}
	e := m.entries[m.current]
	return &e
}

// Len returns the number of entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
