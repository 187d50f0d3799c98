package events

import (
	"sync"

	"crosslend/core/types"
)

// Event represents a structured record emitted after a committed transition.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream sinks (event store, logs).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MultiEmitter fans an event out to several emitters in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, e := range m {
		if e != nil {
			e.Emit(evt)
		}
	}
}

// Recorder keeps every emitted event in memory. Tests use it to assert on the
// exact sequence of committed events.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt.Event().Clone())
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Buffer collects events during a transition and flushes them to the
// underlying emitter only once the transition has committed.
type Buffer struct {
	pending []Event
}

func (b *Buffer) Add(evt Event) {
	if evt != nil {
		b.pending = append(b.pending, evt)
	}
}

// Flush emits buffered events in insertion order and clears the buffer.
func (b *Buffer) Flush(emitter Emitter) {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	for _, evt := range b.pending {
		emitter.Emit(evt)
	}
	b.pending = nil
}

// Discard drops buffered events from a failed transition.
func (b *Buffer) Discard() { b.pending = nil }
