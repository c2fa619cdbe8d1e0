// Package transport provides line-oriented byte transports for an arm link.
//
// A transport carries framed command lines to the controller and yields
// inbound lines to the link layer. It knows nothing about message ids,
// readiness, or line classification; those are the link's concern.
//
// # Implementations
//
//   - Serial: a USB serial port, the native attachment of a desktop arm.
//   - TCP: a TCP stream, for serial-over-network bridges.
//   - WebSocket: a websocket client, for controllers exposed behind an
//     HTTP server.
//   - Pipe: an in-memory pair for tests and examples.
//
// All implementations satisfy link.Transport. Outbound lines are written
// with a trailing newline; inbound lines are delivered with line endings
// stripped, tolerating both LF and CRLF framing.
package transport
