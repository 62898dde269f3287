// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

package counter

import "sync"

// hub fans snapshots out to subscribers. Delivery is latest-wins: a slow
// subscriber never sees a stale tally once a newer one exists, and never
// blocks the producer or other subscribers.
type hub struct {
	mu   sync.Mutex
	subs map[int]chan Snapshot
	next int
	last *Snapshot
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Snapshot)}
}

// subscribe registers a new feed. The current snapshot, if any, is
// delivered immediately. cancel stops delivery for this subscriber only.
func (h *hub) subscribe() (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Snapshot, 1)
	if h.last != nil {
		ch <- *h.last
	}
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			close(c)
			delete(h.subs, id)
		}
	}
	return ch, cancel
}

// publish replaces any undelivered snapshot with the new one.
func (h *hub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &snap
	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// closeAll ends every feed. Used when the pipeline shuts down.
func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}
