package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/aoindustries/ao-messaging/log"
	"github.com/aoindustries/ao-messaging/message"
	"github.com/aoindustries/ao-messaging/metrics"
	"github.com/aoindustries/ao-messaging/socket"
)

// frameHeaderSize is the big-endian length prefix in front of every
// binary composite on the wire.
const frameHeaderSize = 4

// deadlineRefresh throttles how often the socket deadlines are pushed
// forward, so a busy connection is not hammering SetDeadline per frame.
const deadlineRefresh = 5 * time.Second

// tcpSocket is one TCP connection exposed as a socket.Socket. A send
// goroutine drains sendCh onto the wire; a receive goroutine turns wire
// frames back into message deliveries.
type tcpSocket struct {
	*socket.SocketBase

	conn      net.Conn
	transport *Transport
	cfg       *TransportCfg

	cancelCtx context.Context
	cancel    context.CancelFunc
	sendCh    chan *message.MultiMessage

	lastReadTime  time.Time
	lastWriteTime time.Time
}

func newTCPSocket(ctx context.Context, t *Transport, conn net.Conn, cfg *TransportCfg) *tcpSocket {
	cancelCtx, cancel := context.WithCancel(ctx)
	s := &tcpSocket{
		conn:      conn,
		transport: t,
		cfg:       cfg,
		cancelCtx: cancelCtx,
		cancel:    cancel,
		sendCh:    make(chan *message.MultiMessage, cfg.SendChannelSize),
	}
	sctx := t.sctx
	s.SocketBase = socket.NewSocketBase(sctx, sctx.NextSocketID(), conn.LocalAddr(), conn.RemoteAddr(),
		func() error {
			s.cancel()
			return s.conn.Close()
		})
	return s
}

// serve starts the connection goroutines. The read loop waits for the
// context's lifecycle listeners to finish observing OnNewSocket before
// consuming traffic, so they cannot miss the first frames.
func (s *tcpSocket) serve() {
	go s.serveSend()
	go func() {
		s.Context().Flush()
		s.serveRecv()
	}()
}

// Send queues msgs for transmission as one composite frame. It fails
// with ErrClosed after close and does not block: a full send channel is
// reported as a fault rather than stalling the caller.
func (s *tcpSocket) Send(msgs ...message.Message) error {
	if s.IsClosed() {
		return socket.ErrClosed
	}
	mm := message.NewMultiMessage(msgs)
	select {
	case s.sendCh <- mm:
		return nil
	default:
		metrics.IncrCounterWithGroup("tcp", "send_channel_full_total", 1)
		return fmt.Errorf("%w: send channel full", socket.ErrTransportFault)
	}
}

// Close shuts the connection down. Idempotent.
func (s *tcpSocket) Close() error {
	return s.CloseSocket(s)
}

func (s *tcpSocket) serveSend() {
	for {
		select {
		case <-s.cancelCtx.Done():
			return
		case mm := <-s.sendCh:
			if err := s.writeFrame(mm); err != nil {
				s.fail(fmt.Errorf("write frame: %w", err))
				return
			}
		}
	}
}

func (s *tcpSocket) writeFrame(mm *message.MultiMessage) error {
	encoded, err := mm.EncodeByteArray()
	if err != nil {
		return err
	}
	if uint32(encoded.Size()) > s.cfg.MaxFrameSize {
		metrics.IncrCounterWithGroup("tcp", "frame_oversize_total", 1)
		return fmt.Errorf("frame size %d exceeds limit %d", encoded.Size(), s.cfg.MaxFrameSize)
	}

	var hdr [frameHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(encoded.Size()))

	s.setWriteDeadline()
	if _, err := s.conn.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := s.conn.Write(encoded.Bytes()); err != nil {
		return err
	}

	metrics.IncrCounterWithGroup("tcp", "frames_sent_total", 1)
	metrics.IncrCounterWithGroup("tcp", "bytes_sent_total", metrics.Value(frameHeaderSize+encoded.Size()))
	return nil
}

func (s *tcpSocket) serveRecv() {
	defer func() { _ = s.CloseSocket(s) }()

	for {
		select {
		case <-s.cancelCtx.Done():
			return
		default:
		}

		mm, err := s.readFrame()
		if err != nil {
			if isClosedErr(err) || s.cancelCtx.Err() != nil {
				return
			}
			s.fail(fmt.Errorf("read frame: %w", err))
			return
		}

		if limiter := s.transport.recvLimiter(); limiter != nil {
			if err := limiter.Wait(s.cancelCtx); err != nil {
				return
			}
		}

		s.DeliverMessages(s, mm.Messages())
	}
}

func (s *tcpSocket) readFrame() (*message.MultiMessage, error) {
	s.setReadDeadline()

	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(hdr[:])
	if length > s.cfg.MaxFrameSize {
		metrics.IncrCounterWithGroup("tcp", "frame_oversize_total", 1)
		return nil, fmt.Errorf("frame size %d exceeds limit %d", length, s.cfg.MaxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(s.conn, body); err != nil {
		return nil, err
	}

	mm, err := message.DecodeMultiByteArray(message.WrapBytes(body))
	if err != nil {
		metrics.IncrCounterWithGroup("tcp", "frame_decode_error_total", 1)
		return nil, err
	}

	metrics.IncrCounterWithGroup("tcp", "frames_recv_total", 1)
	metrics.IncrCounterWithGroup("tcp", "bytes_recv_total", metrics.Value(frameHeaderSize+int(length)))
	return mm, nil
}

// fail routes a wire fault through the socket error path unless the
// socket is already closing, in which case the fault is just the echo of
// our own teardown.
func (s *tcpSocket) fail(err error) {
	if s.IsClosed() || s.cancelCtx.Err() != nil {
		return
	}
	log.Error().Uint64("socket", s.ID()).Str("remote", s.RemoteAddr().String()).Err(err).Msg("tcp socket fault")
	s.ReportError(s, fmt.Errorf("%w: %w", socket.ErrTransportFault, err))
}

func (s *tcpSocket) setReadDeadline() {
	if s.cfg.IdleTimeoutSec > 0 {
		n := time.Now()
		if n.Sub(s.lastReadTime) > deadlineRefresh {
			s.lastReadTime = n
			_ = s.conn.SetReadDeadline(n.Add(time.Duration(s.cfg.IdleTimeoutSec) * time.Second))
		}
	}
}

func (s *tcpSocket) setWriteDeadline() {
	if s.cfg.IdleTimeoutSec > 0 {
		n := time.Now()
		if n.Sub(s.lastWriteTime) > deadlineRefresh {
			s.lastWriteTime = n
			_ = s.conn.SetWriteDeadline(n.Add(time.Duration(s.cfg.IdleTimeoutSec) * time.Second))
		}
	}
}

// isClosedErr reports whether err is the normal end of a connection
// rather than a fault worth surfacing.
func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed)
}
