package link

import (
	"context"
	"sync/atomic"
	"time"
)

// Pending is the handle for one in-flight command awaiting its reply.
//
// A Pending settles exactly once: with the reply payload on success, a
// classified device error on failure, or ErrClosed if the link goes down
// first. Callers wait on Done or Wait; once sent, a command cannot be
// withdrawn, at most its settlement can be ignored.
type Pending struct {
	id       uint64
	command  string
	issuedAt time.Time

	settled atomic.Bool
	done    chan struct{}
	payload string
	err     error
}

func newPending(id uint64, command string) *Pending {
	return &Pending{
		id:       id,
		command:  command,
		issuedAt: time.Now(),
		done:     make(chan struct{}),
	}
}

// ID returns the message id assigned to the command.
func (p *Pending) ID() uint64 { return p.id }

// Command returns the raw command text as sent, without framing.
func (p *Pending) Command() string { return p.command }

// IssuedAt returns the time the command was sent. No timeout is enforced
// from it; it is retained for diagnostics and caller-side timeout policy.
func (p *Pending) IssuedAt() time.Time { return p.issuedAt }

// Done returns a channel that is closed when the request settles.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled payload and error. Before settlement it returns
// ErrNotSettled.
func (p *Pending) Result() (string, error) {
	select {
	case <-p.done:
		return p.payload, p.err
	default:
		return "", ErrNotSettled
	}
}

// Wait blocks until the request settles or the context is done.
//
// A context failure does not withdraw the command; a late reply still
// settles the request.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-p.done:
		return p.payload, p.err
	}
}

// settle completes the request exactly once and reports whether this call
// was the settling one.
func (p *Pending) settle(payload string, err error) bool {
	if !p.settled.CompareAndSwap(false, true) {
		return false
	}

	p.payload = payload
	p.err = err
	close(p.done)

	return true
}
