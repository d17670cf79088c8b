package submhist

import (
	"context"
	"sync"

	"github.com/programme-lv/contest-client/subm"
)

type contestEntries struct {
	entries []subm.HistoryEntry
	// loaded is set once a bulk fetch has been merged in
	loaded bool
}

// Cache holds the submission history per contest id, most recent first.
// Only the Loader and the Reconciler mutate it.
type Cache struct {
	mu       sync.Mutex
	contests map[string]*contestEntries
	watchers map[*watcher]struct{}
}

func NewCache() *Cache {
	return &Cache{
		contests: make(map[string]*contestEntries),
		watchers: make(map[*watcher]struct{}),
	}
}

// Get returns a copy of the contest's history, empty if absent
func (c *Cache) Get(contestID string) []subm.HistoryEntry {
	entries, _ := c.Lookup(contestID)
	if entries == nil {
		return []subm.HistoryEntry{}
	}
	return entries
}

func (c *Cache) Lookup(contestID string) ([]subm.HistoryEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ce, ok := c.contests[contestID]
	if !ok {
		return nil, false
	}
	return cloneEntries(ce.entries), true
}

func (c *Cache) isLoaded(contestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ce, ok := c.contests[contestID]
	return ok && ce.loaded
}

// update replaces the contest's entries with fn's result atomically.
// Other contest ids are untouched.
func (c *Cache) update(contestID string, markLoaded bool, fn func([]subm.HistoryEntry) []subm.HistoryEntry) {
	c.mu.Lock()
	ce, ok := c.contests[contestID]
	if !ok {
		ce = &contestEntries{}
		c.contests[contestID] = ce
	}
	ce.entries = fn(cloneEntries(ce.entries))
	if markLoaded {
		ce.loaded = true
	}
	watchers := make([]*watcher, 0, len(c.watchers))
	for w := range c.watchers {
		watchers = append(watchers, w)
	}
	c.mu.Unlock()

	for _, w := range watchers {
		w.push(contestID)
	}
}

// Watch streams the ids of contests whose history changed.
// Ids queued while the receiver is busy are coalesced.
func (c *Cache) Watch(ctx context.Context) <-chan string {
	w := &watcher{
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
	}
	c.mu.Lock()
	c.watchers[w] = struct{}{}
	c.mu.Unlock()

	ch := make(chan string)
	go func() {
		defer close(ch)
		defer func() {
			c.mu.Lock()
			delete(c.watchers, w)
			c.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
			}
			for _, id := range w.drain() {
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}

type watcher struct {
	mu      sync.Mutex
	pending map[string]struct{}
	order   []string
	wake    chan struct{}
}

func (w *watcher) push(contestID string) {
	w.mu.Lock()
	if _, ok := w.pending[contestID]; !ok {
		w.pending[contestID] = struct{}{}
		w.order = append(w.order, contestID)
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) drain() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := w.order
	w.order = nil
	clear(w.pending)
	return ids
}

func cloneEntries(entries []subm.HistoryEntry) []subm.HistoryEntry {
	if entries == nil {
		return nil
	}
	res := make([]subm.HistoryEntry, len(entries))
	copy(res, entries)
	return res
}
