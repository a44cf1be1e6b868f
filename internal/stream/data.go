package stream

import (
	"context"
	"sync"
)

// EventType names a side-channel event understood by the block editor.
type EventType string

const (
	EventID         EventType = "id"
	EventTitle      EventType = "title"
	EventClear      EventType = "clear"
	EventTextDelta  EventType = "text-delta"
	EventSuggestion EventType = "suggestion"
	EventFinish     EventType = "finish"
)

// Event is a typed side-channel payload.
type Event struct {
	Type    EventType `json:"type"`
	Content any       `json:"content"`
}

// Data is the side channel tools use to push UI events alongside the
// primary stream. Events are sent as '2' parts in order of Append.
type Data struct {
	mu     sync.Mutex
	closed bool
	pipe   *Pipe
}

// NewData creates a side channel writing to pipe.
func NewData(pipe *Pipe) *Data {
	return &Data{pipe: pipe}
}

// Append emits one event. It returns ErrClosed after Close.
func (d *Data) Append(ctx context.Context, ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	part, err := NewPart(CodeData, []Event{ev})
	if err != nil {
		return err
	}
	return d.pipe.Send(ctx, part)
}

// Close marks the side channel finished. Only the first call has effect.
// It does not close the underlying pipe, which the primary stream still uses.
func (d *Data) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Closed reports whether Close has been called.
func (d *Data) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
