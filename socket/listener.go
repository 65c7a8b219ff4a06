// Package socket defines the connection and lifecycle layer of the
// messaging core: the Socket abstraction over one bidirectional
// connection, the Context that owns a set of sockets, and the listener
// contracts through which both report new sockets, inbound messages,
// errors and shutdown.
//
// Delivery contract: events from one source (a Context or a Socket) are
// never delivered concurrently to the same listener; each
// (source, listener) pair has its own strictly ordered stream. Different
// listeners, and different sources, are notified in parallel. A slow
// listener therefore delays only its own stream from that one source.
package socket

import (
	"sync"

	"github.com/aoindustries/ao-messaging/message"
)

// ContextListener receives lifecycle notifications from a Context.
//
// None of the methods will be invoked concurrently on one listener by the
// same context, so implementations need no internal synchronization
// against overlap from that source. Listeners registered on the same or
// different contexts may run in parallel with each other.
type ContextListener interface {
	// OnNewSocket is called once per socket, before the socket starts
	// delivering its own traffic. Registering a socket listener here is
	// guaranteed not to miss any messages.
	OnNewSocket(sctx *Context, newSocket Socket)

	// OnError is called when the context hits an unrecoverable fault.
	// The context closes itself after the first error; later faults are
	// not reported separately.
	OnError(sctx *Context, err error)

	// OnClose is called exactly once, when the context has finished
	// shutting down, whether via Close or via the error path.
	OnClose(sctx *Context)
}

// Listener receives notifications from a single Socket, under the same
// serialized-delivery contract as ContextListener.
type Listener interface {
	// OnMessages is called with the messages decoded from one inbound
	// frame, in wire order.
	OnMessages(s Socket, msgs []message.Message)

	// OnError is called on the first unrecoverable socket fault; the
	// socket closes itself afterwards.
	OnError(s Socket, err error)

	// OnSocketClose is called exactly once when the socket has closed.
	OnSocketClose(s Socket)
}

// eventQueue is the per-(source, listener) serialization point: an
// unbounded FIFO consumed by a single goroutine, so queued notifications
// run strictly one after another. Enqueueing never blocks the source.
type eventQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []func()
	closed bool
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// enqueue appends fn to the stream. Reports false once the queue has
// been closed.
func (q *eventQueue) enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.events = append(q.events, fn)
	q.cond.Signal()
	return true
}

// close stops the queue after everything already enqueued has been
// delivered.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
}

func (q *eventQueue) run() {
	for {
		q.mu.Lock()
		for len(q.events) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.events) == 0 {
			q.mu.Unlock()
			return
		}
		batch := q.events
		q.events = nil
		q.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
	}
}
