package stream

// History is a bounded FIFO of log entries. When full, appending evicts the
// oldest entry. It is not safe for concurrent use; the client guards it.
type History struct {
	items []LogEntry
	head  int // next write position
	size  int
}

// NewHistory creates a history holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{items: make([]LogEntry, capacity)}
}

// Append adds an entry and reports whether an older one was evicted.
func (h *History) Append(entry LogEntry) bool {
	evicted := h.size == len(h.items)
	h.items[h.head] = entry
	h.head = (h.head + 1) % len(h.items)
	if !evicted {
		h.size++
	}
	return evicted
}

// Snapshot returns a copy of the entries, oldest first.
func (h *History) Snapshot() []LogEntry {
	return h.Last(h.size)
}

// Last returns a copy of the newest n entries, oldest first.
func (h *History) Last(n int) []LogEntry {
	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return []LogEntry{}
	}
	out := make([]LogEntry, n)
	start := (h.head - n + len(h.items)) % len(h.items)
	for i := range out {
		out[i] = h.items[(start+i)%len(h.items)]
	}
	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int { return h.size }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.items) }

// Clear drops all entries.
func (h *History) Clear() {
	clear(h.items)
	h.head = 0
	h.size = 0
}
