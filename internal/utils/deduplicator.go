package utils

import (
	"sync"
	"time"
)

// Deduplicator remembers message IDs for a window together with the result
// they produced, so a retried scanner submission gets the same answer.
type Deduplicator struct {
	mu     sync.Mutex
	seen   map[string]seenMsg
	window time.Duration
	max    int
	now    func() time.Time
}

type seenMsg struct {
	at    time.Time
	value interface{}
}

func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		seen:   make(map[string]seenMsg),
		window: window,
		max:    10000,
		now:    time.Now,
	}
}

// Lookup returns the value stored for msgID when it was seen within the
// window. An empty ID is never found.
func (d *Deduplicator) Lookup(msgID string) (interface{}, bool) {
	if msgID == "" {
		return nil, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	m, ok := d.seen[msgID]
	if !ok || d.now().Sub(m.at) >= d.window {
		return nil, false
	}
	return m.value, true
}

// Remember records msgID with the value it produced.
func (d *Deduplicator) Remember(msgID string, value interface{}) {
	if msgID == "" {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.seen[msgID] = seenMsg{at: now, value: value}

	if len(d.seen) > d.max {
		for k, v := range d.seen {
			if now.Sub(v.at) > 2*d.window {
				delete(d.seen, k)
			}
		}
	}
}

// Forget drops msgID.
func (d *Deduplicator) Forget(msgID string) {
	d.mu.Lock()
	delete(d.seen, msgID)
	d.mu.Unlock()
}
