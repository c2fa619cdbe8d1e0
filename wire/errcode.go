package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// FaultKind is the symbolic classification of a controller error code.
type FaultKind uint8

const (
	// FaultUnknown marks a code absent from the fault table.
	FaultUnknown FaultKind = iota
	// FaultCommand indicates the controller did not recognize the command.
	FaultCommand
	// FaultParameter indicates a command parameter was rejected.
	FaultParameter
	// FaultAddress indicates an address outside the controller's range.
	FaultAddress
	// FaultBufferFull indicates the controller's command buffer is full.
	FaultBufferFull
	// FaultPower indicates the arm's motor power is not connected.
	FaultPower
	// FaultOperation indicates the requested operation failed on the device.
	FaultOperation
)

// String returns string representation of the fault kind.
func (k FaultKind) String() string {
	switch k {
	case FaultCommand:
		return "command"
	case FaultParameter:
		return "parameter"
	case FaultAddress:
		return "address"
	case FaultBufferFull:
		return "buffer-full"
	case FaultPower:
		return "power"
	case FaultOperation:
		return "operation"
	default:
		return "unknown"
	}
}

// NoCode is the DeviceError code for an error line that carried no numeric
// code at all.
const NoCode = -1

// DeviceError is a failure reported by the controller, classified against
// the fault table. Code is always the raw code from the wire (or NoCode);
// Kind and Message come from the table and are zero for codes it does not
// list.
type DeviceError struct {
	Code    int
	Kind    FaultKind
	Message string
	Detail  string
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	var b strings.Builder
	b.WriteString("wire: device error")
	if e.Code != NoCode {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(e.Code))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Kind == FaultUnknown {
		b.WriteString(": unclassified")
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (%s)", e.Detail)
	}

	return b.String()
}

// Unclassified reports whether the error's code was absent from the fault
// table.
func (e *DeviceError) Unclassified() bool {
	return e.Kind == FaultUnknown
}

type faultEntry struct {
	kind    FaultKind
	message string
}

// Error codes reported by controller firmware.
var faultTable = map[int]faultEntry{
	20: {FaultCommand, "unknown command"},
	21: {FaultParameter, "invalid parameter"},
	22: {FaultAddress, "address out of range"},
	23: {FaultBufferFull, "command buffer full"},
	24: {FaultPower, "power unconnected"},
	25: {FaultOperation, "operation failed"},
}

// LookupFault returns the symbolic kind and message for a controller error
// code. ok is false when the code is not in the table.
func LookupFault(code int) (kind FaultKind, message string, ok bool) {
	entry, ok := faultTable[code]
	if !ok {
		return FaultUnknown, "", false
	}

	return entry.kind, entry.message, true
}

// NewDeviceError builds a DeviceError for a raw controller error code. A
// code absent from the fault table yields an unclassified error that still
// carries the code.
func NewDeviceError(code int, detail string) *DeviceError {
	kind, message, ok := LookupFault(code)
	if !ok {
		return &DeviceError{Code: code, Kind: FaultUnknown, Detail: detail}
	}

	return &DeviceError{Code: code, Kind: kind, Message: message, Detail: detail}
}

// ClassifyFault builds a DeviceError from the payload of an error line.
//
// The payload's leading integer is the error code; any text after it is kept
// as detail. A payload without a leading integer produces an unclassified
// error with Code set to NoCode and the whole payload as detail. A code the
// fault table does not list produces an unclassified error carrying the raw
// code, never a lookup failure.
func ClassifyFault(payload string) *DeviceError {
	payload = strings.TrimSpace(payload)

	n := leadingDigits(payload)
	if n == 0 {
		return &DeviceError{Code: NoCode, Kind: FaultUnknown, Detail: payload}
	}

	code, err := strconv.Atoi(payload[:n])
	if err != nil {
		return &DeviceError{Code: NoCode, Kind: FaultUnknown, Detail: payload}
	}

	return NewDeviceError(code, strings.TrimLeft(payload[n:], " \t"))
}
