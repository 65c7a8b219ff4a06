// Package tcp is the TCP transport of the messaging core: a listener
// side that accepts connections and a dialer side that opens them, both
// producing Sockets attached to a socket.Context. Frames on the wire are
// a big-endian 4-byte length followed by the binary encoding of the
// composite message carrying that frame's messages.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/aoindustries/ao-messaging/config"
	"github.com/aoindustries/ao-messaging/log"
	"github.com/aoindustries/ao-messaging/metrics"
	"github.com/aoindustries/ao-messaging/socket"
)

// TransportCfg configures one TCP transport instance.
type TransportCfg struct {
	Addr            string `mapstructure:"addr"`
	SendChannelSize uint32 `mapstructure:"sendChannelSize"`
	MaxFrameSize    uint32 `mapstructure:"maxFrameSize"`
	IdleTimeoutSec  uint32 `mapstructure:"idleTimeoutSec"`
	MaxBufferSize   int    `mapstructure:"maxBufferSize"`
	RecvLimit       int    `mapstructure:"recvLimit"`
	RecvBurst       int    `mapstructure:"recvBurst"`
}

// GetName returns the configuration name for TransportCfg.
func (c *TransportCfg) GetName() string {
	return "tcp_transport"
}

// Validate validates the TransportCfg parameters.
func (c *TransportCfg) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("Addr cannot be empty")
	}
	if c.SendChannelSize == 0 {
		return fmt.Errorf("SendChannelSize must be positive")
	}
	if c.MaxFrameSize == 0 {
		return fmt.Errorf("MaxFrameSize must be positive")
	}
	if c.RecvLimit < 0 || c.RecvBurst < 0 {
		return fmt.Errorf("RecvLimit and RecvBurst cannot be negative")
	}
	return nil
}

// Transport accepts and dials TCP connections on behalf of one
// socket.Context. Every connection gets a send goroutine and a receive
// goroutine; the receive side registers the socket with the context
// before the first frame is read.
type Transport struct {
	sctx *socket.Context

	mu  sync.RWMutex
	cfg *TransportCfg

	limiter *RecvLimiter

	listener *net.TCPListener
	cancel   context.CancelFunc
	served   sync.WaitGroup
}

// NewTransport creates a transport bound to sctx with an explicit
// configuration.
func NewTransport(sctx *socket.Context, cfg *TransportCfg) (*Transport, error) {
	if sctx == nil {
		return nil, errors.New("socket context cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("TransportCfg cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Transport{sctx: sctx, cfg: cfg}
	if cfg.RecvLimit > 0 {
		t.limiter = NewRecvLimiter(cfg.RecvLimit, cfg.RecvBurst)
	}
	return t, nil
}

// NewTransportWithConfigManager creates a transport whose configuration
// is loaded from the config manager and hot-reloaded on change.
func NewTransportWithConfigManager(sctx *socket.Context, configManager config.ConfigManager) (*Transport, error) {
	if configManager == nil {
		return nil, errors.New("configManager cannot be nil")
	}

	cfg := &TransportCfg{}
	if err := configManager.LoadConfig("tcp_transport", cfg); err != nil {
		return nil, fmt.Errorf("failed to load tcp_transport config: %w", err)
	}

	t, err := NewTransport(sctx, cfg)
	if err != nil {
		return nil, err
	}
	configManager.AddChangeListener(t)
	return t, nil
}

// OnConfigChanged implements config.ConfigChangeListener. Address and
// channel sizing changes apply to connections opened afterwards; the
// receive rate limit is reloaded in place.
func (t *Transport) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "tcp_transport" {
		return nil
	}
	newCfg, ok := newConfig.(*TransportCfg)
	if !ok {
		return fmt.Errorf("invalid configuration type for tcp transport")
	}
	if err := newCfg.Validate(); err != nil {
		return fmt.Errorf("invalid tcp transport configuration: %w", err)
	}

	t.mu.Lock()
	t.cfg = newCfg
	if newCfg.RecvLimit > 0 {
		if t.limiter == nil {
			t.limiter = NewRecvLimiter(newCfg.RecvLimit, newCfg.RecvBurst)
		} else {
			t.limiter.Reload(newCfg.RecvLimit, newCfg.RecvBurst)
		}
	} else {
		t.limiter = nil
	}
	t.mu.Unlock()

	log.Info().Str("configName", configName).Msg("tcp transport configuration updated")
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (t *Transport) GetConfigName() string {
	return "tcp_transport"
}

func (t *Transport) config() *TransportCfg {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

func (t *Transport) recvLimiter() *RecvLimiter {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limiter
}

// Start listens on the configured address and begins accepting
// connections. Each accepted connection becomes a Socket on the context.
func (t *Transport) Start() error {
	metrics.IncrCounterWithGroup("tcp", "transport_start_total", 1)
	cfg := t.config()

	tcpAddr, err := net.ResolveTCPAddr("tcp", cfg.Addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("tcp", "transport_start_error_total", 1, map[string]string{"error_type": "resolve"})
		return fmt.Errorf("resolve %s: %w", cfg.Addr, err)
	}

	listener, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("tcp", "transport_start_error_total", 1, map[string]string{"error_type": "listen"})
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.listener = listener
	t.cancel = cancel
	t.mu.Unlock()

	t.served.Add(1)
	go t.serve(ctx, listener)

	log.Info().Str("addr", listener.Addr().String()).Msg("tcp transport listening")
	return nil
}

// Context returns the socket context this transport feeds.
func (t *Transport) Context() *socket.Context {
	return t.sctx
}

// Addr returns the listening address, or nil before Start.
func (t *Transport) Addr() net.Addr {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop closes the accept loop. Open sockets stay up; close them through
// the context.
func (t *Transport) Stop() error {
	t.mu.Lock()
	listener := t.listener
	cancel := t.cancel
	t.listener = nil
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		_ = listener.Close()
	}
	t.served.Wait()
	return nil
}

func (t *Transport) serve(ctx context.Context, listener *net.TCPListener) {
	defer t.served.Done()

	for {
		conn, err := listener.AcceptTCP()
		if err != nil {
			var e net.Error
			if errors.As(err, &e) && e.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			// A failing accept loop is unrecoverable for the context.
			t.sctx.ReportError(fmt.Errorf("accept: %w", err))
			return
		}

		if err := t.attach(ctx, conn); err != nil {
			log.Error().Str("remote", conn.RemoteAddr().String()).Err(err).Msg("attach connection failed")
			_ = conn.Close()
		}
	}
}

// Dial opens a client connection to addr and attaches it to the context
// as a Socket.
func (t *Transport) Dial(ctx context.Context, addr string) (socket.Socket, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("tcp", "dial_error_total", 1, map[string]string{"error_type": "connect"})
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	s, err := t.newSocket(context.Background(), conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (t *Transport) attach(ctx context.Context, conn *net.TCPConn) error {
	cfg := t.config()
	if cfg.MaxBufferSize > 0 {
		if err := conn.SetReadBuffer(cfg.MaxBufferSize); err != nil {
			return fmt.Errorf("set read buffer: %w", err)
		}
		if err := conn.SetWriteBuffer(cfg.MaxBufferSize); err != nil {
			return fmt.Errorf("set write buffer: %w", err)
		}
	}
	_, err := t.newSocket(ctx, conn)
	return err
}

// newSocket wraps conn as a Socket, registers it with the context and
// starts its send/receive goroutines. AddSocket runs before the first
// read so OnNewSocket observers never miss a message.
func (t *Transport) newSocket(ctx context.Context, conn net.Conn) (*tcpSocket, error) {
	cfg := t.config()
	s := newTCPSocket(ctx, t, conn, cfg)

	if err := t.sctx.AddSocket(s); err != nil {
		return nil, err
	}

	metrics.IncrCounterWithGroup("tcp", "connection_attach_total", 1)
	s.serve()
	return s, nil
}
