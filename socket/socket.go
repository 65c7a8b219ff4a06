package socket

import (
	"net"
	"sync"

	"github.com/aoindustries/ao-messaging/message"
)

// Socket is one bidirectional connection owned by a Context. Only its
// identity matters to the core; how bytes physically move is the
// transport's business.
type Socket interface {
	// ID returns the context-unique identity of this socket.
	ID() uint64
	// LocalAddr returns the local endpoint address.
	LocalAddr() net.Addr
	// RemoteAddr returns the remote endpoint address.
	RemoteAddr() net.Addr
	// Context returns the owning context.
	Context() *Context
	// Send queues messages for transmission as one composite frame.
	Send(msgs ...message.Message) error
	// AddListener registers a listener for this socket's events.
	AddListener(l Listener) error
	// RemoveListener deregisters a listener; reports whether it was
	// registered.
	RemoveListener(l Listener) bool
	// Close shuts the socket down. Idempotent; OnSocketClose fires once.
	Close() error
	// IsClosed reports whether Close has been initiated.
	IsClosed() bool
}

// SocketBase carries the listener bookkeeping and close-once semantics
// shared by every Socket implementation. Transports embed it and supply
// the wire-level send and close behavior.
type SocketBase struct {
	id         uint64
	sctx       *Context
	localAddr  net.Addr
	remoteAddr net.Addr

	mu        sync.Mutex
	listeners map[Listener]*eventQueue
	closed    bool

	closeOnce sync.Once
	errorOnce sync.Once

	// onClose is the transport hook that tears down the physical
	// connection. Called exactly once.
	onClose func() error
}

// NewSocketBase builds the shared state for a socket of the given
// context. onClose may be nil.
func NewSocketBase(sctx *Context, id uint64, localAddr, remoteAddr net.Addr, onClose func() error) *SocketBase {
	return &SocketBase{
		id:         id,
		sctx:       sctx,
		localAddr:  localAddr,
		remoteAddr: remoteAddr,
		listeners:  make(map[Listener]*eventQueue),
		onClose:    onClose,
	}
}

// ID returns the context-unique socket identity.
func (s *SocketBase) ID() uint64 {
	return s.id
}

// LocalAddr returns the local endpoint address.
func (s *SocketBase) LocalAddr() net.Addr {
	return s.localAddr
}

// RemoteAddr returns the remote endpoint address.
func (s *SocketBase) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// Context returns the owning context.
func (s *SocketBase) Context() *Context {
	return s.sctx
}

// AddListener registers l. Fails with ErrClosed after close and with
// ErrListenerRegistered on double registration.
func (s *SocketBase) AddListener(l Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.listeners[l]; ok {
		return ErrListenerRegistered
	}
	s.listeners[l] = newEventQueue()
	return nil
}

// RemoveListener deregisters l after delivering anything already queued.
func (s *SocketBase) RemoveListener(l Listener) bool {
	s.mu.Lock()
	q, ok := s.listeners[l]
	if ok {
		delete(s.listeners, l)
	}
	s.mu.Unlock()
	if ok {
		q.close()
	}
	return ok
}

// IsClosed reports whether Close has been initiated.
func (s *SocketBase) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// dispatch fans fn out to every registered listener, one serialized
// stream per listener.
func (s *SocketBase) dispatch(fn func(l Listener)) {
	s.mu.Lock()
	queues := make(map[Listener]*eventQueue, len(s.listeners))
	for l, q := range s.listeners {
		queues[l] = q
	}
	s.mu.Unlock()

	for l, q := range queues {
		listener := l
		q.enqueue(func() { fn(listener) })
	}
}

// DeliverMessages hands one inbound frame's messages to the listeners.
// Transports call this from their read loop.
func (s *SocketBase) DeliverMessages(self Socket, msgs []message.Message) {
	if len(msgs) == 0 {
		return
	}
	s.dispatch(func(l Listener) { l.OnMessages(self, msgs) })
}

// ReportError reports the first unrecoverable socket fault and closes
// the socket. Later faults are swallowed.
func (s *SocketBase) ReportError(self Socket, err error) {
	s.errorOnce.Do(func() {
		s.dispatch(func(l Listener) { l.OnError(self, err) })
		_ = s.CloseSocket(self)
	})
}

// CloseSocket runs the close path for self: tears down the transport,
// deregisters from the context, fires OnSocketClose exactly once and
// drains the listener queues. Implementations' Close methods call this
// with themselves.
func (s *SocketBase) CloseSocket(self Socket) error {
	var closeErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.onClose != nil {
			closeErr = s.onClose()
		}
		s.sctx.removeSocket(s.id)

		s.mu.Lock()
		queues := make([]*eventQueue, 0, len(s.listeners))
		for l, q := range s.listeners {
			listener := l
			q.enqueue(func() { listener.OnSocketClose(self) })
			queues = append(queues, q)
		}
		s.mu.Unlock()

		for _, q := range queues {
			q.close()
		}
	})
	return closeErr
}
