package socket

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoindustries/ao-messaging/message"
)

// recordingSocketListener mirrors recordingListener for socket events.
type recordingSocketListener struct {
	mu       sync.Mutex
	events   []string
	inside   atomic.Int32
	overlaps atomic.Int32
	closes   atomic.Int32
}

func (r *recordingSocketListener) enter() {
	if r.inside.Add(1) > 1 {
		r.overlaps.Add(1)
	}
}

func (r *recordingSocketListener) exit() { r.inside.Add(-1) }

func (r *recordingSocketListener) record(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingSocketListener) OnMessages(s Socket, msgs []message.Message) {
	r.enter()
	defer r.exit()
	r.record(fmt.Sprintf("messages:%d", len(msgs)))
}

func (r *recordingSocketListener) OnError(s Socket, err error) {
	r.enter()
	defer r.exit()
	r.record("error")
}

func (r *recordingSocketListener) OnSocketClose(s Socket) {
	r.enter()
	defer r.exit()
	r.closes.Add(1)
	r.record("close")
}

func (r *recordingSocketListener) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func TestSocket_DeliverMessages(t *testing.T) {
	sctx := NewContext()
	s := newMemSocket(sctx)
	require.NoError(t, sctx.AddSocket(s))

	l := &recordingSocketListener{}
	require.NoError(t, s.AddListener(l))

	s.DeliverMessages(s, []message.Message{message.NewStringMessage("a")})
	s.DeliverMessages(s, []message.Message{
		message.NewStringMessage("b"),
		message.NewStringMessage("c"),
	})
	s.DeliverMessages(s, nil) // empty frames deliver nothing

	waitFor(t, func() bool { return len(l.snapshot()) == 2 })
	assert.Equal(t, []string{"messages:1", "messages:2"}, l.snapshot())
}

func TestSocket_FirstErrorClosesOnce(t *testing.T) {
	sctx := NewContext()
	s := newMemSocket(sctx)
	require.NoError(t, sctx.AddSocket(s))

	l := &recordingSocketListener{}
	require.NoError(t, s.AddListener(l))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.ReportError(s, fmt.Errorf("fault %d", n))
		}(i)
	}
	wg.Wait()

	waitFor(t, func() bool { return l.closes.Load() == 1 })
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"error", "close"}, l.snapshot())
	assert.Equal(t, int32(0), l.overlaps.Load())
	assert.True(t, s.IsClosed())
	assert.Equal(t, 0, sctx.SocketCount(), "socket deregistered on close")
}

func TestSocket_CloseIdempotent(t *testing.T) {
	sctx := NewContext()
	closeCalls := 0
	s := &memSocket{}
	s.SocketBase = NewSocketBase(sctx, sctx.NextSocketID(), fakeAddr("l"), fakeAddr("r"),
		func() error {
			closeCalls++
			return nil
		})
	require.NoError(t, sctx.AddSocket(s))

	l := &recordingSocketListener{}
	require.NoError(t, s.AddListener(l))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	waitFor(t, func() bool { return l.closes.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), l.closes.Load())
	assert.Equal(t, 1, closeCalls, "transport teardown runs once")

	assert.ErrorIs(t, s.Send(message.NewStringMessage("late")), ErrClosed)
	assert.ErrorIs(t, s.AddListener(&recordingSocketListener{}), ErrClosed)
}

func TestSocket_ListenerAccounting(t *testing.T) {
	sctx := NewContext()
	s := newMemSocket(sctx)

	l := &recordingSocketListener{}
	require.NoError(t, s.AddListener(l))
	assert.ErrorIs(t, s.AddListener(l), ErrListenerRegistered)
	assert.True(t, s.RemoveListener(l))
	assert.False(t, s.RemoveListener(l))

	s.DeliverMessages(s, []message.Message{message.NewStringMessage("x")})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, l.snapshot())
}

func TestSocket_Identity(t *testing.T) {
	sctx := NewContext()
	a := newMemSocket(sctx)
	b := newMemSocket(sctx)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Same(t, sctx, a.Context())
	assert.Equal(t, "local", a.LocalAddr().String())
	assert.Equal(t, "remote", a.RemoteAddr().String())
}

func TestSocket_ErrClosedSentinel(t *testing.T) {
	err := fmt.Errorf("wrap: %w", ErrClosed)
	assert.True(t, errors.Is(err, ErrClosed))
}
