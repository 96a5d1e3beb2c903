// Package dedup implements a bounded FIFO window of recently seen identifiers.
package dedup

// DefaultSize is the number of identifiers remembered by NewWindow(0).
const DefaultSize = 1000

// Window remembers the last N admitted identifiers. It is not safe for
// concurrent use; the owner serialises access.
type Window struct {
	size int
	ring []string
	head int // index of the oldest entry
	n    int
	seen map[string]struct{}
}

// NewWindow creates a window holding up to size identifiers. A size <= 0 uses DefaultSize.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultSize
	}
	return &Window{
		size: size,
		ring: make([]string, size),
		seen: make(map[string]struct{}, size),
	}
}

// Admit returns false if id is inside the window. Otherwise it records id,
// evicting the oldest identifier once the window is full, and returns true.
func (w *Window) Admit(id string) bool {
	if w.contains(id) {
		return false
	}

	if w.n == w.size {
		oldest := w.ring[w.head]
		delete(w.seen, oldest)
		w.ring[w.head] = id
		w.head = (w.head + 1) % w.size
	} else {
		w.ring[(w.head+w.n)%w.size] = id
		w.n++
	}
	w.seen[id] = struct{}{}
	return true
}

func (w *Window) contains(id string) bool {
	_, ok := w.seen[id]
	return ok
}

// Len returns the number of identifiers held.
func (w *Window) Len() int {
	return w.n
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.size
}
