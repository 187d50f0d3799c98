// Package stream fans committed lending events out to live subscribers.
package stream

import (
	"strings"
	"sync"

	"crosslend/core/events"
	"crosslend/core/types"
)

const subscriberBuffer = 32

// Filter narrows a subscription. Empty fields match everything.
type Filter struct {
	Type    string
	LoanID  string
	OfferID string
}

func (f Filter) matches(evt *types.Event) bool {
	if t := strings.TrimSpace(f.Type); t != "" && evt.Type != t {
		return false
	}
	if id := strings.TrimSpace(f.LoanID); id != "" && evt.Attribute("loanId") != id {
		return false
	}
	if id := strings.TrimSpace(f.OfferID); id != "" && evt.Attribute("offerId") != id {
		return false
	}
	return true
}

type subscriber struct {
	filter  Filter
	updates chan *types.Event
}

// Hub is an events.Emitter that broadcasts to subscribers. A subscriber that
// falls a full buffer behind is disconnected by closing its channel; it can
// resume from the persisted event log.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Emit never blocks the committing transition.
func (h *Hub) Emit(evt events.Event) {
	if h == nil || evt == nil {
		return
	}
	record := evt.Event()
	if record == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sub := range h.subs {
		if !sub.filter.matches(record) {
			continue
		}
		select {
		case sub.updates <- record.Clone():
		default:
			delete(h.subs, id)
			close(sub.updates)
		}
	}
}

// Subscribe registers a subscriber. The returned cancel func is idempotent
// and must be called once the subscriber stops reading.
func (h *Hub) Subscribe(filter Filter) (<-chan *types.Event, func()) {
	updates := make(chan *types.Event, subscriberBuffer)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscriber{filter: filter, updates: updates}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.updates)
			}
			h.mu.Unlock()
		})
	}
	return updates, cancel
}

// Subscribers reports the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
