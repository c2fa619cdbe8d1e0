// Package arm provides the typed command surface of an arm controller on
// top of a link.
//
// The package has three layers:
//
//   - Command builders named after the firmware codes (G0, M2231, P2220),
//     one short function per operation, returning the command text to
//     send.
//   - Reply and report parsers that turn the textual payloads back into
//     Go values (Position, DeviceInfo, typed status reports).
//   - The Arm facade, which binds builders and parsers to a link.Link and
//     fans status ticks out to report subscribers.
//
// All blocking operations take a context.Context and return the device's
// failure as a *wire.DeviceError when the controller rejects a command.
package arm
