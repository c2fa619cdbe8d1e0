package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/venlet/go-armlink/logger"
)

const (
	// Terminator ends every outbound line.
	Terminator = "\n"

	// DefaultLineBuffer is the capacity of the inbound line channel.
	DefaultLineBuffer = 64

	// MaxLineSize bounds a single inbound line; a longer line is a
	// transport fault.
	MaxLineSize = 64 * 1024
)

// Transport errors.
var (
	// ErrAlreadyOpened is returned by Open when the transport was opened
	// before. Transports are single-use, like the link above them.
	ErrAlreadyOpened = errors.New("transport: already opened")

	// ErrNotOpened is returned by WriteLine before Open succeeded.
	ErrNotOpened = errors.New("transport: not opened")

	// ErrClosed is returned by WriteLine after Close.
	ErrClosed = errors.New("transport: closed")
)

// conn is the shared core of the byte-stream transports. It pumps inbound
// bytes through a line scanner into the line channel and serializes
// outbound writes.
type conn struct {
	name   string
	dial   func(ctx context.Context) (io.ReadWriteCloser, error)
	logger logger.Logger

	// writeMu guards rwc and serializes WriteLine calls.
	writeMu sync.Mutex
	rwc     io.ReadWriteCloser

	lines chan string
	done  chan struct{}

	errMu   sync.Mutex
	readErr error

	opened atomic.Bool
	closed atomic.Bool
}

func newConn(name string, dial func(ctx context.Context) (io.ReadWriteCloser, error)) *conn {
	return &conn{
		name:   name,
		dial:   dial,
		logger: logger.GetLogger(),
		lines:  make(chan string, DefaultLineBuffer),
		done:   make(chan struct{}),
	}
}

// Open dials the underlying byte stream and starts the read pump.
func (c *conn) Open(ctx context.Context) error {
	if !c.opened.CompareAndSwap(false, true) {
		return ErrAlreadyOpened
	}

	rwc, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	c.rwc = rwc
	c.writeMu.Unlock()

	go c.readPump(rwc)

	return nil
}

// readPump scans inbound bytes into lines until the stream ends. The line
// channel is closed on exit; a read failure that was not caused by Close is
// recorded for Err.
func (c *conn) readPump(r io.Reader) {
	defer close(c.lines)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), MaxLineSize)

	for scanner.Scan() {
		select {
		case c.lines <- scanner.Text():
		case <-c.done:
			return
		}
	}

	if err := scanner.Err(); err != nil && !c.closed.Load() {
		c.setReadErr(fmt.Errorf("transport: read %s: %w", c.name, err))
		c.logger.Debug("transport read failed", "transport", c.name, "error", err)
	}
}

// WriteLine writes one line with the terminator appended. Safe for
// concurrent use.
func (c *conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if c.rwc == nil {
		return ErrNotOpened
	}

	if _, err := io.WriteString(c.rwc, line+Terminator); err != nil {
		return fmt.Errorf("transport: write %s: %w", c.name, err)
	}

	return nil
}

// Lines returns the inbound line channel. The channel is closed when the
// stream ends or the transport is closed.
func (c *conn) Lines() <-chan string { return c.lines }

// Err reports the terminal read error after the line channel closed, nil
// on clean shutdown.
func (c *conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.readErr
}

func (c *conn) setReadErr(err error) {
	c.errMu.Lock()
	c.readErr = err
	c.errMu.Unlock()
}

// Close closes the underlying stream and stops the read pump. Close is
// idempotent.
func (c *conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(c.done)

	c.writeMu.Lock()
	rwc := c.rwc
	c.writeMu.Unlock()

	if rwc == nil {
		return nil
	}

	return rwc.Close()
}
