// Package socket implements the client's socket-variant abstraction: a
// small interface wrapping a real net.Conn, with helpers to reach it
// through a SOCKS5 proxy or an HTTP CONNECT tunnel, and to upgrade it to
// TLS in place. This is the concrete, real-socket rendition of the
// tagged-union "socket variant" the spec describes; the teacher repo's
// transport.Conn interface shape (Read/Write/Close/LocalAddr/RemoteAddr/
// deadlines) is what it is grounded on, generalized from the teacher's
// simulated network to a real net.Conn underneath.
package socket

import (
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrClosed          = errors.New("socket is closed")
	ErrDeadlineExceeded = errors.New("socket deadline exceeded")
)

// Socket is a single outbound connection, plain or already tunneled
// through a proxy, optionally upgradeable to TLS.
type Socket interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	// Shutdown half-closes the write side, the non-forceful counterpart to
	// Close used by the driver's graceful close().
	Shutdown() error

	SetDeadline(t time.Time) error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// UpgradeTLS wraps the current connection in a TLS client handshake
	// using serverName as SNI/certificate verification name.
	UpgradeTLS(ctx context.Context, cfg *tls.Config, serverName string) error
}

// Conn wraps a net.Conn (or, after UpgradeTLS, a *tls.Conn) established by
// one of the Dial* helpers in this package.
type Conn struct {
	mu     sync.Mutex
	raw    net.Conn
	closed bool
}

var _ Socket = (*Conn)(nil)

func Wrap(raw net.Conn) *Conn { return &Conn{raw: raw} }

// DialPlain opens a direct TCP connection to addr ("host:port"), optionally
// from a specific local address.
func DialPlain(ctx context.Context, dialer *net.Dialer, addr string) (*Conn, error) {
	c, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "dialing")
	}
	return Wrap(c), nil
}

func (c *Conn) current() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.raw, nil
}

func (c *Conn) Read(p []byte) (int, error) {
	raw, err := c.current()
	if err != nil {
		return 0, err
	}
	n, err := raw.Read(p)
	return n, translateNetErr(err)
}

func (c *Conn) Write(p []byte) (int, error) {
	raw, err := c.current()
	if err != nil {
		return 0, err
	}
	n, err := raw.Write(p)
	return n, translateNetErr(err)
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.raw.Close()
}

// Shutdown half-closes the write side when the underlying conn exposes
// CloseWrite (as *net.TCPConn and *tls.Conn do), falling back to a full
// close for any conn that doesn't.
func (c *Conn) Shutdown() error {
	raw, err := c.current()
	if err != nil {
		return err
	}
	if cw, ok := raw.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return c.Close()
}

func (c *Conn) SetDeadline(t time.Time) error {
	raw, err := c.current()
	if err != nil {
		return err
	}
	return raw.SetDeadline(t)
}

func (c *Conn) LocalAddr() net.Addr {
	raw, err := c.current()
	if err != nil {
		return nil
	}
	return raw.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	raw, err := c.current()
	if err != nil {
		return nil
	}
	return raw.RemoteAddr()
}

func (c *Conn) UpgradeTLS(ctx context.Context, cfg *tls.Config, serverName string) error {
	raw, err := c.current()
	if err != nil {
		return err
	}

	tlsCfg := cfg.Clone()
	if tlsCfg == nil {
		tlsCfg = &tls.Config{}
	}
	if tlsCfg.ServerName == "" {
		tlsCfg.ServerName = serverName
	}

	tlsConn := tls.Client(raw, tlsCfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return errors.Wrap(err, "TLS handshake")
	}

	c.mu.Lock()
	c.raw = tlsConn
	c.mu.Unlock()

	return nil
}

func translateNetErr(err error) error {
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrDeadlineExceeded
	}
	return err
}
