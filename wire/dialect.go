package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect holds the marker characters of one framing grammar revision.
//
// Markers are protocol constants: swapping a Dialect changes how lines are
// framed and classified without touching the correlation logic above.
type Dialect struct {
	// SendPrefix is prepended to every outgoing command line, immediately
	// followed by the message id.
	SendPrefix string

	// ReplyMarker opens a solicited reply line. The digits after it are the
	// id of the command being answered.
	ReplyMarker string

	// StatusMarker opens an unsolicited telemetry line.
	StatusMarker string

	// ErrorMarker opens an error line.
	ErrorMarker string

	// ReadySentinel is the exact line the controller emits once per link
	// lifetime when its boot sequence has finished.
	ReadySentinel string
}

// DefaultDialect is the grammar spoken by current controller firmware.
//
//	$1 P2220                            outgoing command, id 1
//	refer:1 ok X10.0000 Y20.0000 ...    reply to command 1
//	@3 X10.0000 Y20.0000 Z30.0000       telemetry report, code 3
//	E7 21                               command 7 failed with code 21
//	@1                                  readiness sentinel
var DefaultDialect = Dialect{
	SendPrefix:    "$",
	ReplyMarker:   "refer:",
	StatusMarker:  "@",
	ErrorMarker:   "E",
	ReadySentinel: "@1",
}

// TickDialect is the grammar of the older word-prefixed firmware revision.
//
//	gcode:1 M114                        outgoing command, id 1
//	gcode:1 ok                          reply to command 1
//	tick: pos 10 20 30                  telemetry report
//	error:1 21                          command 1 failed with code 21
//	tick: ready                         readiness sentinel
var TickDialect = Dialect{
	SendPrefix:    "gcode:",
	ReplyMarker:   "gcode:",
	StatusMarker:  "tick:",
	ErrorMarker:   "error:",
	ReadySentinel: "tick: ready",
}

// Validate checks that the dialect is usable: all markers present, inbound
// markers pairwise distinct, and no marker ending in a digit (trailing digits
// would be indistinguishable from a message id).
func (d Dialect) Validate() error {
	if d.SendPrefix == "" {
		return fmt.Errorf("wire: dialect has empty send prefix")
	}
	if d.ReplyMarker == "" || d.StatusMarker == "" || d.ErrorMarker == "" {
		return fmt.Errorf("wire: dialect has an empty inbound marker")
	}
	if d.ReplyMarker == d.StatusMarker || d.ReplyMarker == d.ErrorMarker || d.StatusMarker == d.ErrorMarker {
		return fmt.Errorf("wire: dialect markers are not distinct")
	}
	for _, marker := range []string{d.SendPrefix, d.ReplyMarker, d.StatusMarker, d.ErrorMarker} {
		if last := marker[len(marker)-1]; last >= '0' && last <= '9' {
			return fmt.Errorf("wire: marker %q ends in a digit", marker)
		}
	}
	if d.ReadySentinel == "" {
		return fmt.Errorf("wire: dialect has empty readiness sentinel")
	}

	return nil
}

// Frame builds the outgoing line for a command with the given message id.
// The returned line carries no terminator; the transport appends it.
func (d Dialect) Frame(id uint64, command string) string {
	if command == "" {
		return d.SendPrefix + strconv.FormatUint(id, 10)
	}

	var b strings.Builder
	b.Grow(len(d.SendPrefix) + 20 + 1 + len(command))
	b.WriteString(d.SendPrefix)
	b.WriteString(strconv.FormatUint(id, 10))
	b.WriteByte(' ')
	b.WriteString(command)

	return b.String()
}

// match finds the inbound marker the line starts with, preferring the longest
// match so a marker that is a prefix of another never shadows it. It returns
// the classified kind and the remainder of the line after the marker.
func (d Dialect) match(raw string) (Kind, string, bool) {
	kind := KindInvalid
	marker := ""

	if len(d.StatusMarker) > len(marker) && strings.HasPrefix(raw, d.StatusMarker) {
		kind, marker = KindStatus, d.StatusMarker
	}
	if len(d.ErrorMarker) > len(marker) && strings.HasPrefix(raw, d.ErrorMarker) {
		kind, marker = KindError, d.ErrorMarker
	}
	if len(d.ReplyMarker) > len(marker) && strings.HasPrefix(raw, d.ReplyMarker) {
		kind, marker = KindReply, d.ReplyMarker
	}

	if kind == KindInvalid {
		return KindInvalid, "", false
	}

	return kind, raw[len(marker):], true
}
