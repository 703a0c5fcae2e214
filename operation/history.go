package operation

import (
	"sync"

	"github.com/poiesic/notegen/core"
)

// history keeps the most recent statuses, evicting the oldest beyond size.
type history struct {
	mu    sync.RWMutex
	size  int
	order []string
	byID  map[string]*core.OperationStatus
}

func newHistory(size int) *history {
	return &history{size: size, byID: make(map[string]*core.OperationStatus)}
}

func (h *history) add(s core.OperationStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byID[s.ID] = &s
	h.order = append(h.order, s.ID)
	for len(h.order) > h.size {
		delete(h.byID, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *history) update(id string, fn func(*core.OperationStatus)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.byID[id]; ok {
		fn(s)
	}
}

func (h *history) get(id string) (core.OperationStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.byID[id]
	if !ok {
		return core.OperationStatus{}, false
	}
	return *s, true
}

// recent returns up to n statuses, newest first. n <= 0 returns all.
func (h *history) recent(n int) []core.OperationStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.order) {
		n = len(h.order)
	}
	out := make([]core.OperationStatus, 0, n)
	for i := len(h.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *h.byID[h.order[i]])
	}
	return out
}
