package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when writing to a pipe or side channel that has
// already been closed.
var ErrClosed = errors.New("stream closed")

// DefaultPipeSize is the buffer used by NewPipe when size <= 0.
const DefaultPipeSize = 64

// Pipe is a bounded, ordered channel of parts with a single producer and a
// single consumer. The producer closes it; the consumer ranges over Parts.
type Pipe struct {
	mu     sync.Mutex
	closed bool
	ch     chan Part
}

// NewPipe creates a pipe buffering up to size parts.
func NewPipe(size int) *Pipe {
	if size <= 0 {
		size = DefaultPipeSize
	}
	return &Pipe{ch: make(chan Part, size)}
}

// Send enqueues a part. It blocks while the buffer is full and gives up
// when ctx is done, so a consumer that went away never wedges the producer.
func (p *Pipe) Send(ctx context.Context, part Part) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	select {
	case p.ch <- part:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. Parts already sent are still delivered. Calling
// Close more than once has no further effect.
func (p *Pipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}

// Parts returns the receive side of the pipe. It is closed after Close once
// all buffered parts have been read.
func (p *Pipe) Parts() <-chan Part {
	return p.ch
}
