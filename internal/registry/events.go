package registry

import (
	"sync"
	"time"
)

// Event describes one committed custody transfer. It carries everything a
// downstream consumer needs to mirror the transition without re-reading
// state: the new edition, its canonical owner set, the substrate transaction
// id, and the fingerprint of the certificate bytes after the append.
type Event struct {
	CertificateHash  string    `json:"certificateHash"`
	EditionHash      string    `json:"certificateEditionHash"`
	Owners           []string  `json:"owners"`
	Timestamp        time.Time `json:"timestamp"`
	TxID             string    `json:"txId"`
	StateFingerprint string    `json:"stateFingerprint"`
}

// Hub fans committed-transition events out to subscribers. Delivery is
// best-effort: a subscriber that stops draining its channel loses events
// rather than stalling commits.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewHub returns an empty hub ready for subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its event channel plus a
// cancel function. The channel is buffered; once the buffer is full further
// events are dropped for this subscriber. Cancel closes the channel and is
// safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers ev to every current subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

const subscriberBuffer = 16
