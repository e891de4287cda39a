package events

import "timepresale/core/types"

// Event represents a structured state change emitted by the presale ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that can render themselves as a flat
// attribute map for journals and RPC consumers.
type Payload interface {
	Event
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. journal, RPC).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events until the surrounding write is committed. Events of a
// discarded write never reach subscribers.
type Buffer struct {
	pending []Event
}

// Emit queues the event.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Flush forwards queued events to the target in emission order and clears the
// buffer.
func (b *Buffer) Flush(target Emitter) {
	if b == nil {
		return
	}
	queued := b.pending
	b.pending = nil
	if target == nil {
		return
	}
	for _, evt := range queued {
		target.Emit(evt)
	}
}

// Reset drops queued events.
func (b *Buffer) Reset() {
	if b == nil {
		return
	}
	b.pending = nil
}

// Len reports the number of queued events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pending)
}

// Fanout delivers each event to every non-nil emitter.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}
