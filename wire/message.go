package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for line classification.
var (
	// ErrUnknownMarker indicates a line that starts with none of the
	// dialect's inbound markers.
	ErrUnknownMarker = errors.New("wire: line matches no marker")

	// ErrInvalidID indicates digits after a marker that do not parse as a
	// message id.
	ErrInvalidID = errors.New("wire: invalid message id")
)

// Kind identifies the message kind an inbound line was classified as.
type Kind uint8

const (
	// KindInvalid is the zero Kind; no classified line carries it.
	KindInvalid Kind = iota
	// KindStatus is an unsolicited telemetry line.
	KindStatus
	// KindError is a failure report, correlated to a command when it
	// carries an id.
	KindError
	// KindReply is the answer to a previously sent command.
	KindReply
)

// String returns string representation of the message kind.
func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	case KindReply:
		return "reply"
	default:
		return "invalid"
	}
}

// Message is one classified inbound line. It is a transient value: the
// correlation layer consumes it and never stores it.
type Message struct {
	// Kind is the classified message kind.
	Kind Kind

	// ID is the number parsed from the digits immediately after the marker;
	// valid only when HasID is true. For replies and errors it is a message
	// id. For status lines it is the firmware's report code.
	ID uint64

	// HasID reports whether the line carried digits after its marker.
	HasID bool

	// Payload is the text after the marker and optional digits, with
	// leading whitespace removed.
	Payload string

	// Raw is the original line as received.
	Raw string
}

// Parse classifies one inbound line against the dialect's grammar.
//
// The line must already be stripped of its terminator. Lines starting with
// none of the dialect's markers fail with ErrUnknownMarker; digits after a
// marker that overflow a message id fail with ErrInvalidID. Classification
// never panics, whatever the input.
func (d Dialect) Parse(raw string) (Message, error) {
	kind, rest, ok := d.match(raw)
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownMarker, raw)
	}

	msg := Message{Kind: kind, Raw: raw}

	if n := leadingDigits(rest); n > 0 {
		id, err := strconv.ParseUint(rest[:n], 10, 64)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %q", ErrInvalidID, rest[:n])
		}
		msg.ID = id
		msg.HasID = true
		rest = rest[n:]
	}

	msg.Payload = strings.TrimLeft(rest, " \t")

	return msg, nil
}

// leadingDigits returns the length of the run of ASCII digits at the start
// of s.
func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}

	return n
}
