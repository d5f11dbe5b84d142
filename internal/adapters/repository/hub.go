package repository

import (
	"sync"

	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// Default watcher channel buffer. Small on purpose: a subscriber that falls
// this far behind only ever needs the latest record anyway.
const defaultWatchBuffer = 16

// watchHub fans record changes out to per-id watchers. Both store
// implementations layer it over their Put path, which keeps notification
// semantics identical regardless of the backing storage.
type watchHub struct {
	mu       sync.Mutex
	buffer   int
	watchers map[string]map[*watcher]struct{}
	count    int
	closed   bool
}

type watcher struct {
	ch chan record.RawRecord
}

func newWatchHub(buffer int) *watchHub {
	if buffer <= 0 {
		buffer = defaultWatchBuffer
	}
	return &watchHub{
		buffer:   buffer,
		watchers: make(map[string]map[*watcher]struct{}),
	}
}

// attach registers a watcher for id and returns it plus a detach function.
// Detach is idempotent and closes the watcher channel.
func (h *watchHub) attach(id string) (*watcher, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := &watcher{ch: make(chan record.RawRecord, h.buffer)}
	if h.closed {
		close(w.ch)
		return w, func() {}
	}
	set, ok := h.watchers[id]
	if !ok {
		set = make(map[*watcher]struct{})
		h.watchers[id] = set
	}
	set[w] = struct{}{}
	h.count++
	metrics.UpdateStoreWatcherCount(h.count)

	var once sync.Once
	detach := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.watchers[id]; ok {
				if _, ok := set[w]; ok {
					delete(set, w)
					h.count--
					metrics.UpdateStoreWatcherCount(h.count)
					if len(set) == 0 {
						delete(h.watchers, id)
					}
					close(w.ch)
				}
			}
		})
	}
	return w, detach
}

// seed delivers the current record to a single freshly-attached watcher.
// Callers serialize it against notify through the store's own lock.
func (h *watchHub) seed(w *watcher, rec record.RawRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	w.emit(rec)
}

// notify delivers rec to every watcher of its id. Callers must invoke it
// under the store's write path so per-id notifications keep emit order.
func (h *watchHub) notify(rec record.RawRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for w := range h.watchers[rec.ID] {
		w.emit(rec)
	}
}

// close detaches every watcher and closes their channels.
func (h *watchHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, set := range h.watchers {
		for w := range set {
			close(w.ch)
		}
		delete(h.watchers, id)
	}
	h.count = 0
	metrics.UpdateStoreWatcherCount(0)
}

// emit pushes rec to the watcher. A slow consumer loses its stalest pending
// update, never the latest one: the subscription contract is last-write-wins,
// not per-update acknowledgement.
func (w *watcher) emit(rec record.RawRecord) {
	select {
	case w.ch <- rec:
		return
	default:
	}
	select {
	case <-w.ch:
	default:
	}
	select {
	case w.ch <- rec:
	default:
	}
}
