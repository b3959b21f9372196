// Package events carries state changes from batch workers to a polling
// consumer.
//
// Producers publish into a bounded mailbox and never wait longer than the
// configured publish timeout; the consumer drains everything available on a
// fixed cadence and never blocks on the mailbox.
package events

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultCapacity bounds the mailbox when callers pass a non-positive size.
	DefaultCapacity = 1024
	// DefaultPublishTimeout is the longest a producer waits on a full mailbox.
	DefaultPublishTimeout = 100 * time.Millisecond
)

// Kind identifies the message type.
type Kind string

const (
	KindStdout     Kind = "stdout"
	KindStderr     Kind = "stderr"
	KindFileUpdate Kind = "file_update"
	KindDone       Kind = "done"
	KindError      Kind = "error"
	KindBatchDone  Kind = "batch_done"
)

// Event is a single message from the worker side.
type Event struct {
	Sequence uint64
	Time     time.Time
	Kind     Kind
	// Path is the job input path the event belongs to (empty for batch_done).
	Path     string
	Line     string
	ExitCode int
	Message  string
}

// Channel is a bounded multi-producer single-consumer mailbox. Sequence
// numbers follow mailbox order across all producers; a gap means the events
// in between were dropped.
type Channel struct {
	ch      chan Event
	timeout time.Duration
	// sendMu serializes numbering and enqueueing. It is a channel so that
	// acquiring it honours the publish timeout.
	sendMu chan struct{}

	seq     atomic.Uint64
	dropped atomic.Uint64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewChannel constructs a mailbox holding at most capacity pending events.
func NewChannel(capacity int, publishTimeout time.Duration) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if publishTimeout <= 0 {
		publishTimeout = DefaultPublishTimeout
	}
	return &Channel{
		ch:      make(chan Event, capacity),
		timeout: publishTimeout,
		sendMu:  make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
}

// Publish enqueues evt. When the mailbox is full it waits up to the publish
// timeout and then drops the event, reporting false. Publishing after Close
// is a no-op.
func (c *Channel) Publish(evt Event) bool {
	if c == nil {
		return false
	}
	select {
	case <-c.closed:
		return false
	default:
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now().UTC()
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	// wait starts the publish timeout on first use and shares it between
	// acquiring the send slot and enqueueing.
	wait := func() <-chan time.Time {
		if timer == nil {
			timer = time.NewTimer(c.timeout)
		}
		return timer.C
	}

	select {
	case c.sendMu <- struct{}{}:
	default:
		select {
		case c.sendMu <- struct{}{}:
		case <-wait():
			c.dropped.Add(1)
			return false
		case <-c.closed:
			return false
		}
	}
	defer func() { <-c.sendMu }()

	evt.Sequence = c.seq.Add(1)
	select {
	case c.ch <- evt:
		return true
	default:
	}
	select {
	case c.ch <- evt:
		return true
	case <-wait():
		c.dropped.Add(1)
		return false
	case <-c.closed:
		return false
	}
}

// Poll returns the events pending when it is called without blocking. Events
// published while it runs are left for the next call.
func (c *Channel) Poll() []Event {
	if c == nil {
		return nil
	}
	n := len(c.ch)
	if n == 0 {
		return nil
	}
	out := make([]Event, 0, n)
	for range n {
		select {
		case evt := <-c.ch:
			out = append(out, evt)
		default:
			return out
		}
	}
	return out
}

// Len reports the number of pending events.
func (c *Channel) Len() int {
	if c == nil {
		return 0
	}
	return len(c.ch)
}

// Dropped reports how many events were discarded because the mailbox stayed full.
func (c *Channel) Dropped() uint64 {
	if c == nil {
		return 0
	}
	return c.dropped.Load()
}

// Close rejects further publishes. Pending events remain pollable.
func (c *Channel) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() { close(c.closed) })
}
