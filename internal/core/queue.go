package core

// QueueEntry is one slot in the play queue. Key is unique per slot, so the
// same song queued twice yields two distinct entries.
type QueueEntry struct {
	Key  string `json:"key"`
	Song Song   `json:"song"`
}

// Queue is a snapshot of the play queue.
type Queue struct {
	Entries        []QueueEntry `json:"entries"`
	CurrentIndex   int          `json:"current_index"`
	ShuffleEnabled bool         `json:"shuffle_enabled"`
}

// Current returns the current entry, or nil if the queue is empty.
func (q *Queue) Current() *QueueEntry {
	if q == nil || len(q.Entries) == 0 || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Entries) {
		return nil
	}
	return &q.Entries[q.CurrentIndex]
}

// Upcoming returns entries after the current position.
func (q *Queue) Upcoming() []QueueEntry {
	if q == nil || len(q.Entries) == 0 || q.CurrentIndex < 0 || q.CurrentIndex >= len(q.Entries)-1 {
		return nil
	}
	return q.Entries[q.CurrentIndex+1:]
}

// Songs returns the queued songs in order.
func (q *Queue) Songs() []Song {
	if q == nil {
		return nil
	}
	songs := make([]Song, len(q.Entries))
	for i, e := range q.Entries {
		songs[i] = e.Song
	}
	return songs
}

// Len returns the total number of entries in the queue.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.Entries)
}

// IsEmpty returns true if the queue has no entries.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}
