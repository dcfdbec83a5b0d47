// Package link carries Ethernet frames between data plane processes over
// UDP sockets: one datagram per frame, no extra framing. It stands in for
// the physical medium an interface would normally be attached to.
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/softroute/softroute/internal/proto/ethernet"
)

// DefaultReadBuffer is the read buffer size used when the configuration
// does not specify one. It comfortably fits a standard Ethernet MTU.
const DefaultReadBuffer = 4 * datasize.KB

// ErrMalformedFrame marks received datagrams that do not carry a parseable
// Ethernet frame. Callers may skip these and keep reading.
var ErrMalformedFrame = errors.New("malformed frame")

// Config describes one transport endpoint.
type Config struct {
	// Listen is the local UDP address frames are received on.
	Listen string `yaml:"listen"`
	// Peer is the remote UDP address frames are transmitted to.
	Peer string `yaml:"peer"`
	// ReadBuffer bounds the size of a receivable frame.
	ReadBuffer datasize.ByteSize `yaml:"read_buffer"`
}

// Transport is a bidirectional frame pipe over a bound UDP socket.
type Transport struct {
	conn *net.UDPConn
	peer *net.UDPAddr
	buf  []byte
	log  *zap.SugaredLogger
}

// Option is a functional option for the Transport.
type Option func(*Transport)

// WithLog sets the logger.
func WithLog(log *zap.SugaredLogger) Option {
	return func(m *Transport) {
		m.log = log
	}
}

// Open resolves the configured addresses and binds the local socket,
// retrying transient bind failures with exponential backoff until the
// context is cancelled. A just-restarted process racing its predecessor
// for the port is the expected case here.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Transport, error) {
	m := &Transport{
		log: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}

	readBuffer := cfg.ReadBuffer
	if readBuffer == 0 {
		readBuffer = DefaultReadBuffer
	}
	m.buf = make([]byte, readBuffer.Bytes())

	laddr, err := net.ResolveUDPAddr("udp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve listen address %q: %w", cfg.Listen, err)
	}
	m.peer, err = net.ResolveUDPAddr("udp", cfg.Peer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve peer address %q: %w", cfg.Peer, err)
	}

	ticker := backoff.NewTicker(&backoff.ExponentialBackOff{
		InitialInterval:     backoff.DefaultInitialInterval,
		RandomizationFactor: backoff.DefaultRandomizationFactor,
		Multiplier:          backoff.DefaultMultiplier,
		MaxInterval:         5 * time.Second,
	})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("bind of %q aborted: %w", cfg.Listen, ctx.Err())
		case <-ticker.C:
			conn, err := net.ListenUDP("udp", laddr)
			if err != nil {
				m.log.Warnw("failed to bind, retrying", zap.String("listen", cfg.Listen), zap.Error(err))
				continue
			}

			m.conn = conn
			m.log.Debugf("link bound on %s, peer %s", conn.LocalAddr(), m.peer)
			return m, nil
		}
	}
}

// ReadFrame blocks until a frame arrives and returns it. The frame's
// payload is an owned copy. Socket errors, including closure, propagate to
// the caller; malformed frames come back as an error the caller may log
// and skip.
func (m *Transport) ReadFrame() (ethernet.Frame, error) {
	n, _, err := m.conn.ReadFromUDP(m.buf)
	if err != nil {
		return ethernet.Frame{}, err
	}

	data := make([]byte, n)
	copy(data, m.buf[:n])

	frame, err := ethernet.Parse(data)
	if err != nil {
		return ethernet.Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return frame, nil
}

// WriteFrame transmits a frame to the peer.
func (m *Transport) WriteFrame(frame ethernet.Frame) error {
	if _, err := m.conn.WriteToUDP(frame.Marshal(), m.peer); err != nil {
		return fmt.Errorf("failed to transmit frame: %w", err)
	}
	return nil
}

// LocalAddr returns the bound local address.
func (m *Transport) LocalAddr() net.Addr {
	return m.conn.LocalAddr()
}

// Close releases the socket, unblocking any reader.
func (m *Transport) Close() error {
	return m.conn.Close()
}
