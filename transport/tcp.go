package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/venlet/go-armlink/link"
)

// DefaultDialTimeout bounds the TCP connection attempt.
const DefaultDialTimeout = 5 * time.Second

// TCP is a transport over a TCP stream, for bridges that expose a serial
// controller on a network socket.
type TCP struct {
	*conn
	addr        string
	dialTimeout time.Duration
}

var _ link.Transport = (*TCP)(nil)

// TCPOption configures a TCP transport.
type TCPOption interface {
	apply(*TCP) error
}

type tcpOptFunc func(*TCP) error

func (f tcpOptFunc) apply(t *TCP) error { return f(t) }

// WithDialTimeout sets the connection attempt timeout. The default is
// DefaultDialTimeout.
func WithDialTimeout(d time.Duration) TCPOption {
	return tcpOptFunc(func(t *TCP) error {
		if d <= 0 {
			return fmt.Errorf("transport: invalid dial timeout: %s", d)
		}
		t.dialTimeout = d

		return nil
	})
}

// NewTCP creates a TCP transport for the given host:port address. No
// connection is made until Open.
func NewTCP(addr string, opts ...TCPOption) (*TCP, error) {
	if addr == "" {
		return nil, errors.New("transport: tcp address is empty")
	}

	t := &TCP{
		addr:        addr,
		dialTimeout: DefaultDialTimeout,
	}

	for _, opt := range opts {
		if err := opt.apply(t); err != nil {
			return nil, err
		}
	}

	t.conn = newConn("tcp "+addr, t.dialTCP)

	return t, nil
}

// Addr returns the address the transport was created with.
func (t *TCP) Addr() string { return t.addr }

func (t *TCP) dialTCP(ctx context.Context) (io.ReadWriteCloser, error) {
	d := net.Dialer{Timeout: t.dialTimeout}

	nc, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", t.addr, err)
	}

	return nc, nil
}
