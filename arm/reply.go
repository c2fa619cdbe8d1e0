package arm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/venlet/go-armlink/wire"
)

var (
	// ErrBadReply indicates a command reply that is neither an
	// acknowledgment nor a recognizable failure.
	ErrBadReply = errors.New("arm: malformed reply")

	// ErrMissingField indicates a reply payload without a field the
	// parser requires.
	ErrMissingField = errors.New("arm: missing reply field")
)

// Position is a cartesian position of the effector in mm.
type Position struct {
	X float64
	Y float64
	Z float64
}

// String returns the position in the coordinate form commands use.
func (p Position) String() string {
	return fmt.Sprintf("X%.4f Y%.4f Z%.4f", p.X, p.Y, p.Z)
}

// Polar is a polar position of the effector: stretch and height in mm,
// rotation in degrees.
type Polar struct {
	Stretch  float64
	Rotation float64
	Height   float64
}

// String returns the polar position in the coordinate form commands use.
func (p Polar) String() string {
	return fmt.Sprintf("S%.4f R%.4f H%.4f", p.Stretch, p.Rotation, p.Height)
}

// DeviceInfo collects the identity replies of the controller.
type DeviceInfo struct {
	Name     string
	Hardware string
	Firmware string
	API      string
	UID      string
}

// ActuatorState is the reported state of the gripper or pump.
type ActuatorState uint8

const (
	ActuatorStopped ActuatorState = iota
	ActuatorWorking
	ActuatorHolding // gripping or suction engaged with an object
)

// String returns the name of the actuator state.
func (s ActuatorState) String() string {
	switch s {
	case ActuatorStopped:
		return "stopped"
	case ActuatorWorking:
		return "working"
	case ActuatorHolding:
		return "holding"
	default:
		return "unknown"
	}
}

// parseAck validates a command reply payload and returns the text after
// the acknowledgment. A payload carrying a failure code instead of an
// acknowledgment maps through the fault table to a *wire.DeviceError.
func parseAck(payload string) (string, error) {
	p := strings.TrimSpace(payload)
	switch {
	case p == "ok":
		return "", nil
	case strings.HasPrefix(p, "ok "):
		return strings.TrimSpace(p[len("ok "):]), nil
	}
	if rest, found := strings.CutPrefix(p, "E"); found {
		codeStr, detail, _ := strings.Cut(rest, " ")
		if code, err := strconv.Atoi(codeStr); err == nil {
			return "", wire.NewDeviceError(code, strings.TrimSpace(detail))
		}
	}
	return "", fmt.Errorf("%w: %q", ErrBadReply, payload)
}

// parseFields splits a payload of letter-keyed values, "X10.0 Y20.0", into
// a map from key letter to value text. Later duplicates win.
func parseFields(payload string) map[byte]string {
	fields := strings.Fields(payload)
	m := make(map[byte]string, len(fields))
	for _, f := range fields {
		if f[0] < 'A' || f[0] > 'Z' {
			continue
		}
		m[f[0]] = f[1:]
	}
	return m
}

func fieldFloat(m map[byte]string, key byte) (float64, error) {
	s, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: %c", ErrMissingField, key)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %c=%q", ErrBadReply, key, s)
	}
	return v, nil
}

func fieldInt(m map[byte]string, key byte) (int, error) {
	s, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: %c", ErrMissingField, key)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %c=%q", ErrBadReply, key, s)
	}
	return v, nil
}

func fieldBool(m map[byte]string, key byte) (bool, error) {
	v, err := fieldInt(m, key)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// parsePosition reads a cartesian coordinate payload such as
// "X10.0000 Y20.0000 Z30.0000".
func parsePosition(payload string) (Position, error) {
	m := parseFields(payload)
	var (
		pos Position
		err error
	)
	if pos.X, err = fieldFloat(m, 'X'); err != nil {
		return Position{}, err
	}
	if pos.Y, err = fieldFloat(m, 'Y'); err != nil {
		return Position{}, err
	}
	if pos.Z, err = fieldFloat(m, 'Z'); err != nil {
		return Position{}, err
	}
	return pos, nil
}

// parsePolar reads a polar coordinate payload such as
// "S150.0000 R90.0000 H30.0000".
func parsePolar(payload string) (Polar, error) {
	m := parseFields(payload)
	var (
		pol Polar
		err error
	)
	if pol.Stretch, err = fieldFloat(m, 'S'); err != nil {
		return Polar{}, err
	}
	if pol.Rotation, err = fieldFloat(m, 'R'); err != nil {
		return Polar{}, err
	}
	if pol.Height, err = fieldFloat(m, 'H'); err != nil {
		return Polar{}, err
	}
	return pol, nil
}

// trimVersion drops the conventional "V" prefix from version replies such
// as "V3.2.0". Payloads not shaped like that pass through unchanged.
func trimVersion(s string) string {
	if len(s) > 1 && s[0] == 'V' && s[1] >= '0' && s[1] <= '9' {
		return s[1:]
	}
	return s
}
