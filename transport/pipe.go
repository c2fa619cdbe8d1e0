package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"

	"github.com/venlet/go-armlink/link"
)

// PipeTransport is the link side of an in-memory transport pair.
type PipeTransport struct {
	*conn
}

var _ link.Transport = (*PipeTransport)(nil)

// PipeDevice is the device side of an in-memory transport pair. Tests and
// examples use it to script controller behavior without hardware.
type PipeDevice struct {
	nc      net.Conn
	scanner *bufio.Scanner

	writeMu sync.Mutex
}

// Pipe returns a connected transport and device endpoint.
//
// The pair is synchronous and unbuffered: a WriteLine on either side
// blocks until the other side reads. Device scripts should run in their
// own goroutine.
func Pipe() (*PipeTransport, *PipeDevice) {
	tc, dc := net.Pipe()

	t := &PipeTransport{}
	t.conn = newConn("pipe", func(ctx context.Context) (io.ReadWriteCloser, error) {
		return tc, nil
	})

	d := &PipeDevice{
		nc:      dc,
		scanner: bufio.NewScanner(dc),
	}

	return t, d
}

// ReadLine blocks until the link side writes a line, and returns it with
// the terminator stripped. It returns io.EOF after the link side closes.
func (d *PipeDevice) ReadLine() (string, error) {
	if !d.scanner.Scan() {
		if err := d.scanner.Err(); err != nil {
			return "", err
		}

		return "", io.EOF
	}

	return d.scanner.Text(), nil
}

// WriteLine writes one line toward the link side. Safe for concurrent use.
func (d *PipeDevice) WriteLine(line string) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	_, err := io.WriteString(d.nc, line+Terminator)

	return err
}

// Close closes the device side; the link side then observes a clean end
// of stream.
func (d *PipeDevice) Close() error { return d.nc.Close() }
