package engine

const DefaultHistoryDepth = 100

// History is the undo stack, most recent last. When full, the oldest
// snapshot is dropped.
type History struct {
	items []Snapshot
	depth int
}

func NewHistory(depth int) *History {
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	return &History{depth: depth}
}

func (h *History) Push(s Snapshot) {
	if len(h.items) == h.depth {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}
	h.items = append(h.items, s)
}

func (h *History) Pop() (Snapshot, bool) {
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	top := h.items[len(h.items)-1]
	h.items[len(h.items)-1] = Snapshot{}
	h.items = h.items[:len(h.items)-1]
	return top, true
}

func (h *History) Len() int { return len(h.items) }

func (h *History) Depth() int { return h.depth }

func (h *History) Clear() {
	clear(h.items)
	h.items = h.items[:0]
}
