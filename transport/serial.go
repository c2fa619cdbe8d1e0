package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/venlet/go-armlink/link"
)

// DefaultBaudRate is the rate the arm controllers ship with.
const DefaultBaudRate = 115200

// Serial is a transport over a local serial port, 8N1 framing.
//
// Opening the port toggles DTR on most USB serial adapters, which resets
// the controller; the boot banner and readiness sentinel that follow are
// handled by the link layer.
type Serial struct {
	*conn
	portName string
	mode     *serial.Mode
}

var _ link.Transport = (*Serial)(nil)

// SerialOption configures a Serial transport.
type SerialOption interface {
	apply(*Serial) error
}

type serialOptFunc func(*Serial) error

func (f serialOptFunc) apply(s *Serial) error { return f(s) }

// WithBaudRate sets the baud rate. The default is DefaultBaudRate.
func WithBaudRate(rate int) SerialOption {
	return serialOptFunc(func(s *Serial) error {
		if rate <= 0 {
			return fmt.Errorf("transport: invalid baud rate: %d", rate)
		}
		s.mode.BaudRate = rate

		return nil
	})
}

// WithMode sets the full port mode, for controllers that deviate from 8N1.
func WithMode(mode *serial.Mode) SerialOption {
	return serialOptFunc(func(s *Serial) error {
		if mode == nil {
			return errors.New("transport: serial mode is nil")
		}
		s.mode = mode

		return nil
	})
}

// NewSerial creates a serial transport on the named port. The port is not
// touched until Open.
func NewSerial(portName string, opts ...SerialOption) (*Serial, error) {
	if portName == "" {
		return nil, errors.New("transport: serial port name is empty")
	}

	s := &Serial{
		portName: portName,
		mode: &serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}

	for _, opt := range opts {
		if err := opt.apply(s); err != nil {
			return nil, err
		}
	}

	s.conn = newConn("serial "+portName, s.dialSerial)

	return s, nil
}

// PortName returns the serial port name the transport was created with.
func (s *Serial) PortName() string { return s.portName }

func (s *Serial) dialSerial(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	port, err := serial.Open(s.portName, s.mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", s.portName, err)
	}

	return port, nil
}
