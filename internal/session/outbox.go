// Package session provides the connected-client directory and the
// room-ownership state each client carries.
package session

import (
	"fmt"
	"sync"
)

// Outbound delivers encoded frames to one connected client.
type Outbound interface {
	// Push enqueues data without blocking.
	Push(data []byte) error
	// Close stops further delivery.
	Close() error
}

// Outbox is an unbounded, non-blocking outbound queue for one client. A
// writer goroutine waits on Ready, then Drains and writes the frames to the
// transport.
type Outbox struct {
	uid    string
	mu     sync.Mutex
	queue  [][]byte
	ready  chan struct{}
	done   chan struct{}
	closed bool
}

// NewOutbox creates an Outbox for the given client ID.
//
// Postcondition: Returns an open Outbox with an empty queue.
func NewOutbox(uid string) *Outbox {
	return &Outbox{
		uid:   uid,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Push appends data to the queue and wakes the writer.
//
// Postcondition: data is queued, or an error is returned if the outbox is closed.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return fmt.Errorf("outbox %s is closed", o.uid)
	}
	o.queue = append(o.queue, data)
	o.mu.Unlock()

	select {
	case o.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready is signalled at least once after every Push.
func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

// Done is closed when the outbox is closed.
func (o *Outbox) Done() <-chan struct{} {
	return o.done
}

// Drain removes and returns every queued frame in push order.
func (o *Outbox) Drain() [][]byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	frames := o.queue
	o.queue = nil
	return frames
}

// Len returns the number of queued frames.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close marks the outbox closed. Frames still queued remain drainable.
//
// Postcondition: Further Push calls return an error. Safe to call more than once.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.done)
	}
	return nil
}
