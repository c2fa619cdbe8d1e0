// Package discovery locates arm controllers among the serial ports of
// the host.
//
// Discovery is identity-based: it matches USB vendor and product ids (or
// product strings) against the known controller boards, without opening
// any port. Opening and probing what was found is the caller's job.
package discovery

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"

	"github.com/venlet/go-armlink/logger"
)

// ErrNoDevice is returned by Find when no port matches.
var ErrNoDevice = errors.New("discovery: no matching device")

// Port describes one serial port of the host. VID and PID are lowercase
// hex without a 0x prefix, empty for non-USB ports.
type Port struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// Predicate selects ports during discovery.
type Predicate func(Port) bool

// USB identities of the supported controller boards.
var knownArms = []struct{ vid, pid string }{
	{"2341", "0042"}, // mega2560-class controllers
	{"1a86", "7523"}, // CH340-bridged boards
}

// IsArm matches any known controller board identity.
func IsArm() Predicate {
	return func(p Port) bool {
		if !p.IsUSB {
			return false
		}

		for _, id := range knownArms {
			if strings.EqualFold(p.VID, id.vid) && strings.EqualFold(p.PID, id.pid) {
				return true
			}
		}

		return false
	}
}

// ByVIDPID matches a USB port by vendor and product id, case-insensitive.
func ByVIDPID(vid string, pid string) Predicate {
	return func(p Port) bool {
		return p.IsUSB && strings.EqualFold(p.VID, vid) && strings.EqualFold(p.PID, pid)
	}
}

// ByProduct matches a port whose product string contains substr,
// case-insensitive.
func ByProduct(substr string) Predicate {
	substr = strings.ToLower(substr)

	return func(p Port) bool {
		return strings.Contains(strings.ToLower(p.Product), substr)
	}
}

// AnyUSB matches every USB serial port.
func AnyUSB() Predicate {
	return func(p Port) bool { return p.IsUSB }
}

// Enumerator lists the serial ports of the host.
type Enumerator func() ([]Port, error)

// systemPorts is the default Enumerator.
func systemPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("discovery: enumerate ports: %w", err)
	}

	ports := make([]Port, 0, len(details))
	for _, d := range details {
		ports = append(ports, Port{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	return ports, nil
}

// Finder runs discovery against an Enumerator.
type Finder struct {
	enumerate Enumerator
	logger    logger.Logger
}

// FinderOption configures a Finder.
type FinderOption func(*Finder)

// WithEnumerator substitutes the port enumerator.
func WithEnumerator(e Enumerator) FinderOption {
	return func(f *Finder) {
		if e != nil {
			f.enumerate = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) FinderOption {
	return func(f *Finder) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFinder creates a Finder using the system enumerator unless overridden.
func NewFinder(opts ...FinderOption) *Finder {
	f := &Finder{
		enumerate: systemPorts,
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// List returns every serial port of the host.
func (f *Finder) List() ([]Port, error) {
	return f.enumerate()
}

// FindAll returns the ports matching pred, in enumeration order.
func (f *Finder) FindAll(pred Predicate) ([]Port, error) {
	ports, err := f.enumerate()
	if err != nil {
		return nil, err
	}

	var matches []Port
	for _, p := range ports {
		if pred(p) {
			matches = append(matches, p)
		}
	}

	f.logger.Debug("discovery scan", "ports", len(ports), "matches", len(matches))

	return matches, nil
}

// Find returns the first port matching pred, or ErrNoDevice.
func (f *Finder) Find(pred Predicate) (Port, error) {
	matches, err := f.FindAll(pred)
	if err != nil {
		return Port{}, err
	}
	if len(matches) == 0 {
		return Port{}, ErrNoDevice
	}

	return matches[0], nil
}

// Find locates the first known controller board with the system
// enumerator.
func Find() (Port, error) {
	return NewFinder().Find(IsArm())
}

// List returns every serial port of the host with the system enumerator.
func List() ([]Port, error) {
	return NewFinder().List()
}
