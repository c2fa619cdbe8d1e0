// Package link implements the correlation and readiness layer of the arm
// protocol: it opens a line transport, gates it behind the controller's
// readiness handshake, frames outgoing commands with message ids, and matches
// every inbound reply to the command that caused it.
//
// # Readiness
//
// A freshly powered controller streams a boot banner before it is usable.
// The link therefore distinguishes the transport handle being open from the
// link being usable: [Link.Open] resolves only after the readiness sentinel
// line has been observed. Lines received before the sentinel are dropped and
// never reach classification. Sending before the link is ready fails with
// [ErrNotReady] rather than silently dropping the write.
//
// # Correlation
//
// Every command is assigned the next message id, starting at 1, and recorded
// in a pending table before it is written. The controller may answer out of
// send order; replies resolve pending requests purely by id. Each pending
// request settles exactly once: removal from the table is the settlement
// gate, and a second settlement attempt is reported as a programming error,
// never silently absorbed.
//
// # Inbound Classification
//
// Once ready, each inbound line is classified by the configured
// [wire.Dialect] into a reply, an error, or a status tick. Replies must
// reference a pending id; a reply that references none is a recoverable
// protocol violation (logged, reported to the error handler, processing
// continues). Error lines settle the referenced pending request when one
// exists and always notify the link-level error handler. Status ticks go to
// the status handler and never touch the pending table.
//
// Lines are processed strictly one at a time by a single read loop, so the
// pending table sees no concurrent classification. A link is single-use:
// once closed it stays closed, and no reconnection is attempted.
package link
