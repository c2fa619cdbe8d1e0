package link

import (
	"errors"
	"fmt"
)

// Sentinel errors for the link layer.
var (
	// ErrNotReady indicates a send attempt before the controller announced
	// readiness (or after the link closed). The command was not written.
	ErrNotReady = errors.New("link: not ready")

	// ErrClosed indicates the link has been closed. Pending requests are
	// settled with ErrClosed when the link goes down without their reply.
	ErrClosed = errors.New("link: closed")

	// ErrAlreadyOpened indicates a second Open call; a link is single-use.
	ErrAlreadyOpened = errors.New("link: already opened")

	// ErrInvalidTransition indicates a link state transition that the state
	// machine does not allow.
	ErrInvalidTransition = errors.New("link: invalid state transition")

	// ErrTransport indicates the underlying transport failed. The cause is
	// appended to the message.
	ErrTransport = errors.New("link: transport fault")

	// ErrReplyTimeout indicates the configured reply timeout elapsed before
	// the controller answered. The request stays pending; a late reply still
	// settles it.
	ErrReplyTimeout = errors.New("link: reply timeout")

	// ErrNotSettled indicates Result was called before the request settled.
	ErrNotSettled = errors.New("link: request not settled")
)

// ProtocolError reports an inbound line that violated the protocol: a reply
// referencing an id with no pending request, or a line matching none of the
// dialect's markers. Protocol errors are recoverable; the link logs them,
// notifies the error handler, and keeps processing subsequent lines.
type ProtocolError struct {
	Reason string
	Line   string
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("link: protocol violation: %s: %q", e.Reason, e.Line)
}
