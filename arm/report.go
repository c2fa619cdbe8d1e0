package arm

import (
	"strconv"
	"strings"

	"github.com/venlet/go-armlink/wire"
)

// Report is a parsed status tick pushed by the controller. Concrete types
// are ReadyReport, PositionReport, ButtonEvent, PowerEvent, LimitEvent and
// RawReport.
type Report interface {
	report()
}

// ReadyReport announces that the controller finished booting. The link
// consumes the first one to complete Open; later ones, emitted after a
// firmware-side reset, surface here.
type ReadyReport struct{}

// PositionReport carries the periodic effector position enabled by M2120.
// Rotation is the fourth-axis angle in degrees, zero on arms without one.
type PositionReport struct {
	Position Position
	Rotation float64
}

// ButtonEvent reports a press of an onboard button. Value distinguishes
// press kinds where the firmware does, with 1 meaning a short press.
type ButtonEvent struct {
	Button int
	Value  int
}

// PowerEvent reports the motor power supply being connected or dropped.
type PowerEvent struct {
	Connected bool
}

// LimitEvent reports a limit switch changing state.
type LimitEvent struct {
	Switch    int
	Triggered bool
}

// RawReport carries a status tick the parser does not recognize, keeping
// the message available to subscribers that know more than this package.
type RawReport struct {
	Msg wire.Message
}

func (ReadyReport) report()    {}
func (PositionReport) report() {}
func (ButtonEvent) report()    {}
func (PowerEvent) report()     {}
func (LimitEvent) report()     {}
func (RawReport) report()      {}

// ParseReport classifies a status message into a typed report. Unknown
// report numbers and payloads that do not parse come back as RawReport;
// the function never fails.
func ParseReport(msg wire.Message) Report {
	num, payload, ok := reportNumber(msg)
	if !ok {
		return RawReport{Msg: msg}
	}
	switch num {
	case 1:
		return ReadyReport{}
	case 3:
		pos, err := parsePosition(payload)
		if err != nil {
			return RawReport{Msg: msg}
		}
		r := PositionReport{Position: pos}
		if v, err := fieldFloat(parseFields(payload), 'R'); err == nil {
			r.Rotation = v
		}
		return r
	case 4:
		m := parseFields(payload)
		n, err1 := fieldInt(m, 'N')
		v, err2 := fieldInt(m, 'V')
		if err1 != nil || err2 != nil {
			return RawReport{Msg: msg}
		}
		return ButtonEvent{Button: n, Value: v}
	case 5:
		v, err := fieldBool(parseFields(payload), 'V')
		if err != nil {
			return RawReport{Msg: msg}
		}
		return PowerEvent{Connected: v}
	case 6:
		m := parseFields(payload)
		n, err1 := fieldInt(m, 'N')
		v, err2 := fieldBool(m, 'V')
		if err1 != nil || err2 != nil {
			return RawReport{Msg: msg}
		}
		return LimitEvent{Switch: n, Triggered: v}
	default:
		return RawReport{Msg: msg}
	}
}

// reportNumber extracts the report number. Dialects whose status marker
// embeds the number in the message id report it there; others leave it as
// the leading integer of the payload.
func reportNumber(msg wire.Message) (int, string, bool) {
	if msg.HasID {
		return int(msg.ID), msg.Payload, true
	}
	rest := msg.Payload
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, "", false
	}
	num, err := strconv.Atoi(rest[:n])
	if err != nil {
		return 0, "", false
	}
	return num, strings.TrimLeft(rest[n:], " \t"), true
}
