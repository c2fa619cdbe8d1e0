// Package wire defines the line grammar spoken by the arm controller: the
// marker characters that open each line, the message-id framing of outgoing
// commands, and the numeric error codes the firmware reports.
//
// # Line Grammar
//
// Every inbound line starts with a marker identifying its kind, optionally
// followed by digits and a payload:
//
//	line := marker digits? whitespace? payload?
//
// The three inbound kinds are:
//
//   - status: unsolicited telemetry; the digits are the firmware's report
//     code, not a correlation id
//   - error: a failure report; the digits, when present, are the id of the
//     command that caused it
//   - reply: the answer to a previously sent command; the digits are the id
//     of that command
//
// Outgoing commands are framed as the send prefix, the message id, a space,
// and the command text.
//
// # Dialects
//
// The exact marker characters differ between firmware revisions. A Dialect
// bundles one revision's markers plus its readiness sentinel, so the
// correlation layer above never hard-codes a marker. DefaultDialect matches
// current firmware; TickDialect matches the older word-prefixed revision.
package wire
