package socket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aoindustries/ao-messaging/log"
	"github.com/aoindustries/ao-messaging/metrics"
)

// Context is the authority owning a set of sockets and the listeners
// observing their lifecycle. Transports attach sockets to it and report
// faults through it; it guarantees the delivery contract documented on
// ContextListener: per-listener serialized events, close after the first
// error, OnClose exactly once.
type Context struct {
	mu        sync.Mutex
	sockets   map[uint64]Socket
	listeners map[ContextListener]*eventQueue
	closed    bool

	nextSocketID atomic.Uint64
	closeOnce    sync.Once
	errorOnce    sync.Once
}

// NewContext creates an open context with no sockets or listeners.
func NewContext() *Context {
	return &Context{
		sockets:   make(map[uint64]Socket),
		listeners: make(map[ContextListener]*eventQueue),
	}
}

// NextSocketID allocates a context-unique socket identity.
func (c *Context) NextSocketID() uint64 {
	return c.nextSocketID.Add(1)
}

// AddListener registers a lifecycle listener. Fails with ErrClosed after
// close and with ErrListenerRegistered on double registration.
func (c *Context) AddListener(l ContextListener) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if _, ok := c.listeners[l]; ok {
		return ErrListenerRegistered
	}
	c.listeners[l] = newEventQueue()
	return nil
}

// RemoveListener deregisters l after delivering anything already queued.
func (c *Context) RemoveListener(l ContextListener) bool {
	c.mu.Lock()
	q, ok := c.listeners[l]
	if ok {
		delete(c.listeners, l)
	}
	c.mu.Unlock()
	if ok {
		q.close()
	}
	return ok
}

// AddSocket registers a freshly created socket and fires OnNewSocket.
// Transports must call this before the socket starts delivering traffic,
// so listeners can attach socket listeners without missing messages.
func (c *Context) AddSocket(s Socket) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.sockets[s.ID()] = s
	count := len(c.sockets)
	c.mu.Unlock()

	metrics.IncrCounterWithGroup("socket", "connection_open_total", 1)
	metrics.UpdateGaugeWithGroup("socket", "current_connections", metrics.Value(count))
	log.Debug().Uint64("socket", s.ID()).Str("remote", addrString(s.RemoteAddr())).Msg("socket added")

	c.dispatch(func(l ContextListener) { l.OnNewSocket(c, s) })
	return nil
}

// GetSocket looks a socket up by identity.
func (c *Context) GetSocket(id uint64) (Socket, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sockets[id]
	return s, ok
}

// Sockets returns a snapshot of the currently attached sockets.
func (c *Context) Sockets() []Socket {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]Socket, 0, len(c.sockets))
	for _, s := range c.sockets {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// SocketCount returns the number of attached sockets.
func (c *Context) SocketCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sockets)
}

// removeSocket deregisters a socket on its close path.
func (c *Context) removeSocket(id uint64) {
	c.mu.Lock()
	_, ok := c.sockets[id]
	if ok {
		delete(c.sockets, id)
	}
	count := len(c.sockets)
	c.mu.Unlock()

	if ok {
		metrics.IncrCounterWithGroup("socket", "connection_close_total", 1)
		metrics.UpdateGaugeWithGroup("socket", "current_connections", metrics.Value(count))
	}
}

// ReportError reports an unrecoverable fault to the listeners and closes
// the context. Only the first fault is delivered; every later one is
// logged and dropped.
func (c *Context) ReportError(err error) {
	if err == nil {
		return
	}
	if !errors.Is(err, ErrTransportFault) {
		err = fmt.Errorf("%w: %w", ErrTransportFault, err)
	}

	first := false
	c.errorOnce.Do(func() {
		first = true
		metrics.IncrCounterWithGroup("socket", "context_error_total", 1)
		log.Error().Err(err).Msg("socket context fault, closing")
		c.dispatch(func(l ContextListener) { l.OnError(c, err) })
		_ = c.Close()
	})
	if !first {
		log.Debug().Err(err).Msg("fault after first error, dropped")
	}
}

// Close shuts the context down: every socket is closed, OnClose is
// delivered exactly once to each listener and no further events follow.
// Idempotent.
func (c *Context) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		open := make([]Socket, 0, len(c.sockets))
		for _, s := range c.sockets {
			open = append(open, s)
		}
		c.mu.Unlock()

		for _, s := range open {
			if err := s.Close(); err != nil {
				log.Warn().Uint64("socket", s.ID()).Err(err).Msg("socket close failed")
			}
		}

		c.mu.Lock()
		queues := make([]*eventQueue, 0, len(c.listeners))
		for l, q := range c.listeners {
			listener := l
			q.enqueue(func() { listener.OnClose(c) })
			queues = append(queues, q)
		}
		c.mu.Unlock()

		for _, q := range queues {
			q.close()
		}

		log.Info().Msg("socket context closed")
	})
	return nil
}

// Flush blocks until every lifecycle listener has consumed the events
// enqueued before the call. Transports use it to hold a new socket's
// read loop until OnNewSocket observers have finished attaching their
// socket listeners.
func (c *Context) Flush() {
	c.mu.Lock()
	queues := make([]*eventQueue, 0, len(c.listeners))
	for _, q := range c.listeners {
		queues = append(queues, q)
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, q := range queues {
		wg.Add(1)
		if !q.enqueue(wg.Done) {
			wg.Done()
		}
	}
	wg.Wait()
}

// IsClosed reports whether Close has been initiated.
func (c *Context) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// dispatch fans fn out to every lifecycle listener, one serialized
// stream per listener.
func (c *Context) dispatch(fn func(l ContextListener)) {
	c.mu.Lock()
	queues := make(map[ContextListener]*eventQueue, len(c.listeners))
	for l, q := range c.listeners {
		queues[l] = q
	}
	c.mu.Unlock()

	for l, q := range queues {
		listener := l
		q.enqueue(func() { fn(listener) })
	}
}

func addrString(a interface{ String() string }) string {
	if a == nil {
		return ""
	}
	return a.String()
}
